package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/auth"
	"github.com/driftboard/presenced/internal/config"
	"github.com/driftboard/presenced/internal/core"
	"github.com/driftboard/presenced/internal/metrics"
	"github.com/driftboard/presenced/internal/proto"
)

// fakeVerifier resolves tokens from a fixed table, or fails with a canned
// error, standing in for the external identity service.
type fakeVerifier struct {
	identities map[string]core.Identity
	err        error
}

func (f *fakeVerifier) Verify(_ context.Context, token, _ string) (core.Identity, error) {
	if f.err != nil {
		return core.Identity{}, f.err
	}
	identity, ok := f.identities[token]
	if !ok {
		return core.Identity{}, auth.ErrInvalidCredential
	}
	return identity, nil
}

// startTestServer builds a server with the given verifier and a fresh
// registry.
func startTestServer(t *testing.T, verifier auth.Verifier) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	m := metrics.New()
	registry := core.NewRegistry(&logger, m)
	t.Cleanup(registry.Close)

	server := NewServer(registry, verifier, m, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		SessionBuffer:     16,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func dialRoom(t *testing.T, ctx context.Context, ts *httptest.Server, room, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/" + room
	if token != "" {
		wsURL += "?token=" + token
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	return conn
}

// wireMessage covers every outbound shape, so tests can read without knowing
// the type in advance.
type wireMessage struct {
	Type         string               `json:"type"`
	Code         string               `json:"code,omitempty"`
	Users        []proto.PresenceUser `json:"users,omitempty"`
	UserID       string               `json:"userId,omitempty"`
	UserName     string               `json:"userName,omitempty"`
	UserImage    string               `json:"userImage,omitempty"`
	CurrentPath  string               `json:"currentPath,omitempty"`
	ResourceType string               `json:"resourceType,omitempty"`
	ResourceID   string               `json:"resourceId,omitempty"`
}

func readWire(t *testing.T, ctx context.Context, conn *websocket.Conn) wireMessage {
	t.Helper()

	var msg wireMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	return msg
}

func sendUpdate(t *testing.T, ctx context.Context, conn *websocket.Conn, path, resourceType, resourceID string) {
	t.Helper()

	err := wsjson.Write(ctx, conn, proto.Inbound{
		Type:         proto.TypePresenceUpdate,
		CurrentPath:  path,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
	if err != nil {
		t.Fatalf("send update: %v", err)
	}
}

// expectClose reads until the connection fails and returns the close status.
func expectClose(t *testing.T, ctx context.Context, conn *websocket.Conn) websocket.StatusCode {
	t.Helper()

	for {
		var discard wireMessage
		err := wsjson.Read(ctx, conn, &discard)
		if err == nil {
			continue
		}
		status := websocket.CloseStatus(err)
		if status == -1 {
			t.Fatalf("connection failed without close status: %v", err)
		}
		return status
	}
}
