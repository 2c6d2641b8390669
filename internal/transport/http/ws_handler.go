package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/auth"
	"github.com/driftboard/presenced/internal/core"
	"github.com/driftboard/presenced/internal/metrics"
	"github.com/driftboard/presenced/internal/proto"
)

const refusalWriteTimeout = 2 * time.Second

// WSHandler upgrades HTTP connections, runs the credential handshake, and
// bridges authenticated connections to their room.
type WSHandler struct {
	registry      *core.Registry
	verifier      auth.Verifier
	metrics       *metrics.Metrics
	sessionBuffer int
	log           *zerolog.Logger
}

// NewWSHandler builds a new websocket handler.
func NewWSHandler(registry *core.Registry, verifier auth.Verifier, m *metrics.Metrics, sessionBuffer int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		registry:      registry,
		verifier:      verifier,
		metrics:       m,
		sessionBuffer: sessionBuffer,
		log:           logger,
	}
}

// Handle serves GET /ws/:room. The bearer credential arrives as the "token"
// query parameter; the connection joins the room only after the credential is
// verified for that room.
func (h *WSHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	roomKey := c.Param("room")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	token := c.Query("token")
	if token == "" {
		h.refuse(ctx, conn, proto.AuthError{Type: proto.TypeAuthError, Code: proto.CodeAuthMissing},
			websocket.StatusPolicyViolation, "missing credential")
		return
	}

	// The verification call is the only blocking step of the handshake; it
	// runs on this connection's goroutine and never holds up the room.
	identity, err := h.verifier.Verify(ctx, token, roomKey)
	if err != nil {
		h.refuseVerifyError(ctx, conn, err)
		return
	}

	room := h.registry.Room(roomKey)
	if room == nil {
		h.refuse(ctx, conn, proto.ServerError{Type: proto.TypeError, Code: proto.CodeInternalError},
			websocket.StatusInternalError, "shutting down")
		return
	}

	sess := core.NewSession(uuid.NewString(), identity, h.sessionBuffer)
	room.Join(sess)
	defer room.Leave(sess)

	h.metrics.ConnectionsActive.Inc()
	defer h.metrics.ConnectionsActive.Dec()

	h.log.Info().Str("room", roomKey).Str("user", identity.UserID).Str("session", sess.ID).Msg("presence session started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, room, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session", sess.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// refuseVerifyError maps a verification failure onto the wire taxonomy:
// rejected credentials and missing server configuration get their own codes,
// everything else is reported generically.
func (h *WSHandler) refuseVerifyError(ctx context.Context, conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		h.refuse(ctx, conn, proto.AuthError{Type: proto.TypeAuthError, Code: proto.CodeAuthInvalid},
			websocket.StatusPolicyViolation, "invalid credential")
	case errors.Is(err, auth.ErrMissingConfig):
		h.log.Error().Err(err).Msg("presence verification is not configured")
		h.refuse(ctx, conn, proto.ServerError{Type: proto.TypeError, Code: proto.CodeConfigError},
			websocket.StatusInternalError, "server misconfigured")
	default:
		h.log.Error().Err(err).Msg("credential verification failed")
		h.refuse(ctx, conn, proto.ServerError{Type: proto.TypeError, Code: proto.CodeInternalError},
			websocket.StatusInternalError, "verification failed")
	}
}

// refuse notifies the client and closes the connection. Both steps are
// best-effort: the socket may already be gone, and that must not propagate.
func (h *WSHandler) refuse(ctx context.Context, conn *websocket.Conn, payload any, status websocket.StatusCode, reason string) {
	if code, ok := refusalCode(payload); ok {
		h.metrics.HandshakeRejections.WithLabelValues(code).Inc()
	}

	writeCtx, cancel := context.WithTimeout(ctx, refusalWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, payload); err != nil {
		h.log.Debug().Err(err).Msg("could not deliver refusal message")
	}
	_ = conn.Close(status, reason)
}

func refusalCode(payload any) (string, bool) {
	switch p := payload.(type) {
	case proto.AuthError:
		return p.Code, true
	case proto.ServerError:
		return p.Code, true
	default:
		return "", false
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, room *core.Room, sess *core.Session) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		// Malformed or unrecognized messages are dropped without punishing
		// the connection.
		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("session", sess.ID).Msg("dropping malformed message")
			continue
		}

		switch inbound.Type {
		case proto.TypePresenceUpdate:
			room.Update(sess, core.UpdatePayload{
				CurrentPath:  inbound.CurrentPath,
				ResourceType: inbound.ResourceType,
				ResourceID:   inbound.ResourceID,
			})
		default:
			h.log.Debug().Str("session", sess.ID).Str("type", inbound.Type).Msg("dropping unrecognized message type")
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	for {
		select {
		case ev := <-sess.Events:
			outbound := outboundFromEvent(ev)
			if outbound == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, outbound); err != nil {
				h.log.Error().Err(err).Str("session", sess.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
