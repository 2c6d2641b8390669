package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/driftboard/presenced/internal/core"
)

var (
	// ErrMissingConfig is returned when the verifier cannot run because a
	// required server setting is absent.
	ErrMissingConfig = errors.New("verification endpoint not configured")
	// ErrInvalidCredential is returned when the credential was presented but
	// rejected.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Verifier checks a bearer credential against a room and resolves the
// caller's identity. The room identifier is part of the check so a credential
// cannot be replayed against an unrelated room.
type Verifier interface {
	Verify(ctx context.Context, token, roomID string) (core.Identity, error)
}

// DefaultVerifyTimeout bounds a single verification round-trip.
const DefaultVerifyTimeout = 10 * time.Second

type verifyRequest struct {
	RoomID string `json:"roomId"`
}

type verifyResponse struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserImage string `json:"userImage"`
}

// HTTPVerifier verifies credentials by calling an external identity service:
// POST {base}/collaboration/verify with the credential as a bearer header.
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier builds a verifier for the given base URL. An empty base URL
// is allowed at construction time; Verify reports it per connection as a
// configuration error.
func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &HTTPVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Verify resolves the identity behind the credential for the given room.
func (v *HTTPVerifier) Verify(ctx context.Context, token, roomID string) (core.Identity, error) {
	if v.baseURL == "" {
		return core.Identity{}, ErrMissingConfig
	}

	body, err := json.Marshal(verifyRequest{RoomID: roomID})
	if err != nil {
		return core.Identity{}, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/collaboration/verify", bytes.NewReader(body))
	if err != nil {
		return core.Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return core.Identity{}, fmt.Errorf("send verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Identity{}, fmt.Errorf("%w: verify endpoint returned %d", ErrInvalidCredential, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.Identity{}, fmt.Errorf("decode verify response: %w", err)
	}
	if out.UserID == "" {
		return core.Identity{}, fmt.Errorf("verify response missing userId")
	}

	name := out.UserName
	if name == "" {
		name = out.UserID
	}
	return core.Identity{
		UserID:    out.UserID,
		UserName:  name,
		UserImage: out.UserImage,
	}, nil
}
