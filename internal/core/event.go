package core

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventSnapshot delivers the full room state to a joining session.
	EventSnapshot EventKind = iota
	// EventPresenceChanged notifies peers about one user's updated state.
	EventPresenceChanged
	// EventUserLeft notifies peers that a user's last connection closed.
	EventUserLeft
)

// Event describes what happened in a room.
type Event struct {
	Kind   EventKind
	Users  []PresenceEntry // EventSnapshot
	Entry  PresenceEntry   // EventPresenceChanged
	UserID string          // EventUserLeft
}
