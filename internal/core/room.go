package core

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/metrics"
)

type commandKind int

const (
	commandJoin commandKind = iota
	commandLeave
	commandUpdate
	commandSnapshot
)

type command struct {
	kind   commandKind
	sess   *Session
	update UpdatePayload
	reply  chan []PresenceEntry
}

// Room owns one isolated presence partition. All mutations go through the
// commands channel and are applied by a single goroutine, so concurrent
// joins, updates and disconnects for the same user cannot race.
type Room struct {
	Key string

	commands  chan command
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the Run goroutine; never touched from outside dispatch.
	entries map[string]PresenceEntry       // userID -> latest state
	tabs    map[string]map[string]*Session // userID -> open sessions

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewRoom constructs a room with empty state. The caller is expected to start
// Run in its own goroutine.
func NewRoom(key string, logger *zerolog.Logger, m *metrics.Metrics) *Room {
	return &Room{
		Key:      key,
		commands: make(chan command),
		done:     make(chan struct{}),
		entries:  make(map[string]PresenceEntry),
		tabs:     make(map[string]map[string]*Session),
		log:      logger.With().Str("room", key).Logger(),
		metrics:  m,
	}
}

// Run processes commands until the room is closed.
func (r *Room) Run() {
	for {
		select {
		case cmd := <-r.commands:
			r.dispatch(cmd)
		case <-r.done:
			return
		}
	}
}

// Close stops the room's processing loop. State is volatile and simply dropped.
func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Join registers an authenticated session and sends it the current room
// snapshot. No broadcast is emitted; peers learn about the user on their
// first update.
func (r *Room) Join(s *Session) {
	r.send(command{kind: commandJoin, sess: s})
}

// Update replaces the session user's entry wholesale and notifies every other
// connection in the room.
func (r *Room) Update(s *Session, upd UpdatePayload) {
	r.send(command{kind: commandUpdate, sess: s, update: upd})
}

// Leave removes the session from its user's open-connection set. The user's
// entry is removed, and a leave broadcast, only when the last connection closes.
func (r *Room) Leave(s *Session) {
	r.send(command{kind: commandLeave, sess: s})
}

// Entries returns a copy of every user's current entry, serialized through
// the room's processing loop.
func (r *Room) Entries(ctx context.Context) ([]PresenceEntry, error) {
	reply := make(chan []PresenceEntry, 1)
	select {
	case r.commands <- command{kind: commandSnapshot, reply: reply}:
	case <-r.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Room) send(cmd command) {
	select {
	case r.commands <- cmd:
	case <-r.done:
	}
}

func (r *Room) dispatch(cmd command) {
	switch cmd.kind {
	case commandJoin:
		r.handleJoin(cmd.sess)
	case commandUpdate:
		r.handleUpdate(cmd.sess, cmd.update)
	case commandLeave:
		r.handleLeave(cmd.sess)
	case commandSnapshot:
		cmd.reply <- r.snapshot("")
	}
}

func (r *Room) handleJoin(s *Session) {
	uid := s.Identity.UserID

	// The snapshot excludes the joiner's own entry so a second tab still
	// sees exactly its peers.
	snap := r.snapshot(uid)

	set, ok := r.tabs[uid]
	if !ok {
		set = make(map[string]*Session)
		r.tabs[uid] = set
	}
	set[s.ID] = s

	// First tab for this user: seed the entry from the verified identity.
	// A second tab must not clobber the latest reported state.
	if _, ok := r.entries[uid]; !ok {
		r.entries[uid] = entryFromIdentity(s.Identity)
	}

	r.deliver(s, Event{Kind: EventSnapshot, Users: snap})
	r.log.Debug().Str("user", uid).Str("session", s.ID).Int("tabs", len(set)).Msg("session joined")
}

func (r *Room) handleUpdate(s *Session, upd UpdatePayload) {
	uid := s.Identity.UserID
	set, ok := r.tabs[uid]
	if !ok {
		return
	}
	if _, ok := set[s.ID]; !ok {
		return
	}

	entry := entryFromUpdate(s.Identity, upd)
	r.entries[uid] = entry
	r.metrics.PresenceUpdates.WithLabelValues(r.Key).Inc()

	r.broadcast(Event{Kind: EventPresenceChanged, Entry: entry}, s.ID)
}

func (r *Room) handleLeave(s *Session) {
	uid := s.Identity.UserID
	set, ok := r.tabs[uid]
	if !ok {
		return
	}
	if _, ok := set[s.ID]; !ok {
		return
	}

	delete(set, s.ID)
	if len(set) > 0 {
		// Another tab is still open; the user remains present.
		r.log.Debug().Str("user", uid).Str("session", s.ID).Int("tabs", len(set)).Msg("session left")
		return
	}

	delete(r.tabs, uid)
	delete(r.entries, uid)
	r.broadcast(Event{Kind: EventUserLeft, UserID: uid}, "")
	r.log.Debug().Str("user", uid).Msg("user left room")
}

func (r *Room) broadcast(ev Event, excludeSessionID string) {
	for _, set := range r.tabs {
		for id, sess := range set {
			if id == excludeSessionID {
				continue
			}
			r.deliver(sess, ev)
		}
	}
	r.metrics.BroadcastEvents.WithLabelValues(r.Key).Inc()
}

// deliver is best-effort: a session whose buffer is full loses the event
// rather than blocking the room's processing loop.
func (r *Room) deliver(s *Session, ev Event) {
	select {
	case s.Events <- ev:
	default:
		r.metrics.DroppedEvents.WithLabelValues(r.Key).Inc()
		r.log.Warn().Str("session", s.ID).Msg("dropping event for slow session")
	}
}

func (r *Room) snapshot(excludeUserID string) []PresenceEntry {
	out := make([]PresenceEntry, 0, len(r.entries))
	for uid, entry := range r.entries {
		if uid == excludeUserID {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
