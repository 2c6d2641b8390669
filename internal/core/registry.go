package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/metrics"
)

// Registry owns every room in the process, keyed by the room's opaque
// identifier. Rooms are created lazily on first use and live until the
// registry is closed; an empty room simply holds empty maps.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool

	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		log:     logger,
		metrics: m,
	}
}

// Room returns the room for the given key, creating and starting it if this
// is the first connection for that context. Returns nil after Close.
func (g *Registry) Room(key string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	room, ok := g.rooms[key]
	if !ok {
		room = NewRoom(key, g.log, g.metrics)
		g.rooms[key] = room
		go room.Run()
		g.log.Info().Str("room", key).Msg("room created")
	}
	return room
}

// Lookup returns the room for the given key without creating it.
func (g *Registry) Lookup(key string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[key]
	return room, ok
}

// Close stops every room's processing loop. Presence state is volatile and
// is lost with the process, matching the restart-loses-state contract.
func (g *Registry) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, room := range g.rooms {
		room.Close()
	}
}
