package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/auth"
	"github.com/driftboard/presenced/internal/config"
	"github.com/driftboard/presenced/internal/core"
	"github.com/driftboard/presenced/internal/metrics"
)

// NewServer builds the HTTP server: health and metrics endpoints, a read-only
// presence snapshot API, and the websocket presence endpoint.
func NewServer(registry *core.Registry, verifier auth.Verifier, m *metrics.Metrics, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/healthz", healthHandler)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/api/rooms/:room/presence", presenceSnapshotHandler(registry))

	wsHandler := NewWSHandler(registry, verifier, m, cfg.SessionBuffer, logger)
	router.GET("/ws/:room", wsHandler.Handle)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

// presenceSnapshotHandler serves the room's current entries. The read goes
// through the room's processing loop, so it cannot observe a half-applied
// mutation. A room that was never joined reports an empty user list without
// being created.
func presenceSnapshotHandler(registry *core.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := registry.Lookup(c.Param("room"))
		if !ok {
			c.JSON(stdhttp.StatusOK, snapshotResponse{Users: []presenceUserJSON{}})
			return
		}

		entries, err := room.Entries(c.Request.Context())
		if err != nil {
			c.JSON(stdhttp.StatusServiceUnavailable, ErrorResponse{Error: "room unavailable"})
			return
		}

		users := make([]presenceUserJSON, 0, len(entries))
		for _, entry := range entries {
			users = append(users, presenceUserFromEntry(entry))
		}
		c.JSON(stdhttp.StatusOK, snapshotResponse{Users: users})
	}
}

type snapshotResponse struct {
	Users []presenceUserJSON `json:"users"`
}

type presenceUserJSON struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserImage    string `json:"userImage,omitempty"`
	CurrentPath  string `json:"currentPath"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

func presenceUserFromEntry(entry core.PresenceEntry) presenceUserJSON {
	return presenceUserJSON{
		UserID:       entry.UserID,
		UserName:     entry.UserName,
		UserImage:    entry.UserImage,
		CurrentPath:  entry.CurrentPath,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
	}
}

// ErrorResponse is the JSON error body for REST endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
