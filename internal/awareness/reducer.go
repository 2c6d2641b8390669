// Package awareness derives a UI-ready view of ephemeral peer state (cursors,
// element locks) from a shared awareness feed. It filters peers that have gone
// silent and flags peers whose pointer has stopped moving, compensating for
// transports that can lose disconnect notifications.
package awareness

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Reference thresholds. Staleness hides a peer entirely; idleness only dims
// it, so the idle window is deliberately the longer of the two.
const (
	DefaultStaleAfter   = 10 * time.Second
	DefaultIdleAfter    = 30 * time.Second
	DefaultTickInterval = time.Second
)

// Point is a pointer position in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// UserInfo is the display identity a peer announces about itself.
type UserInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LockedElements lists the element ids a peer currently holds locks on.
type LockedElements struct {
	ElementIDs []string `json:"elementIds"`
}

// State is one peer's raw record as observed on the awareness feed. All
// fields are optional; a peer may be present without an active pointer.
type State struct {
	User           *UserInfo       `json:"user,omitempty"`
	Pointer        *Point          `json:"pointer,omitempty"`
	LockedElements *LockedElements `json:"lockedElements,omitempty"`
}

// ChangeEvent is the added/updated/removed notification delivered by the
// awareness transport alongside the full keyed state map.
type ChangeEvent struct {
	Added   []string
	Updated []string
	Removed []string
}

// Peer is one remote participant in the derived view.
type Peer struct {
	ClientID       string
	Name           string
	Color          string
	Pointer        *Point
	LockedElements []string
	LastUpdate     time.Time
	IsIdle         bool
}

type pointerMark struct {
	pos Point
	at  time.Time
}

// Reducer folds raw awareness states into the derived peer view. One reducer
// serves one joined session; the event path and the periodic tick share a
// mutex so their recomputations cannot race.
type Reducer struct {
	mu sync.Mutex

	self         string
	staleAfter   time.Duration
	idleAfter    time.Duration
	tickInterval time.Duration
	now          func() time.Time

	states   map[string]State
	lastSeen map[string]time.Time
	marks    map[string]pointerMark
}

// Config carries reducer settings. Zero values fall back to the defaults.
type Config struct {
	// SelfID is the local client identifier; it is always excluded from the
	// derived view.
	SelfID string

	StaleAfter   time.Duration
	IdleAfter    time.Duration
	TickInterval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New constructs a reducer with no observed peers.
func New(cfg Config) *Reducer {
	r := &Reducer{
		self:         cfg.SelfID,
		staleAfter:   cfg.StaleAfter,
		idleAfter:    cfg.IdleAfter,
		tickInterval: cfg.TickInterval,
		now:          cfg.Now,
		states:       make(map[string]State),
		lastSeen:     make(map[string]time.Time),
		marks:        make(map[string]pointerMark),
	}
	if r.staleAfter <= 0 {
		r.staleAfter = DefaultStaleAfter
	}
	if r.idleAfter <= 0 {
		r.idleAfter = DefaultIdleAfter
	}
	if r.tickInterval <= 0 {
		r.tickInterval = DefaultTickInterval
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// ApplyChange folds a transport notification into the reducer: added and
// updated identifiers are (re)read from the supplied state map and their
// timers advanced; removed identifiers are forgotten. It returns the freshly
// derived view.
func (r *Reducer) ApplyChange(states map[string]State, ev ChangeEvent) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, id := range ev.Added {
		r.observe(id, states[id], now)
	}
	for _, id := range ev.Updated {
		r.observe(id, states[id], now)
	}
	for _, id := range ev.Removed {
		delete(r.states, id)
		delete(r.lastSeen, id)
		delete(r.marks, id)
	}

	return r.derive(now)
}

// Peers recomputes the derived view against the current clock without any
// transport event. Staleness and idleness are judged at read time, so a peer
// can disappear or go idle between two identical transport states.
func (r *Reducer) Peers() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.derive(r.now())
}

// Run drives the periodic recomputation tick until the context is cancelled,
// invoking onChange with each derived view. Time-based transitions happen
// even when the transport stays silent.
func (r *Reducer) Run(ctx context.Context, onChange func([]Peer)) {
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			onChange(r.Peers())
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reducer) observe(id string, st State, now time.Time) {
	r.states[id] = st
	r.lastSeen[id] = now

	if st.Pointer == nil {
		delete(r.marks, id)
		return
	}
	// Idle detection keys off exact coordinate equality: any movement,
	// however small, restarts the idle window.
	mark, ok := r.marks[id]
	if !ok || mark.pos != *st.Pointer {
		r.marks[id] = pointerMark{pos: *st.Pointer, at: now}
	}
}

func (r *Reducer) derive(now time.Time) []Peer {
	peers := make([]Peer, 0, len(r.states))
	for id, st := range r.states {
		if id == r.self {
			continue
		}
		seen, ok := r.lastSeen[id]
		if !ok || now.Sub(seen) > r.staleAfter {
			continue
		}

		peer := Peer{
			ClientID:   id,
			LastUpdate: seen,
		}
		if st.User != nil {
			peer.Name = st.User.Name
			peer.Color = st.User.Color
		}
		if st.LockedElements != nil {
			peer.LockedElements = st.LockedElements.ElementIDs
		}
		if st.Pointer != nil {
			p := *st.Pointer
			peer.Pointer = &p
			if mark, ok := r.marks[id]; ok && now.Sub(mark.at) > r.idleAfter {
				peer.IsIdle = true
			}
		}
		peers = append(peers, peer)
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].ClientID < peers[j].ClientID })
	return peers
}
