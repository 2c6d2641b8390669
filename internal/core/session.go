package core

// DefaultSessionBuffer is the event buffer size used when none is configured.
const DefaultSessionBuffer = 16

// Session is one authenticated transport connection as seen by the core
// layer. A session belongs to exactly one room for its lifetime.
type Session struct {
	ID       string
	Identity Identity
	Events   chan Event
}

// NewSession constructs a session with a buffered event channel.
func NewSession(id string, identity Identity, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Session{
		ID:       id,
		Identity: identity,
		Events:   make(chan Event, buffer),
	}
}
