package proto

// Message type discriminators.
const (
	// TypePresenceUpdate is sent by clients to report their current location.
	TypePresenceUpdate = "presence_update"

	// TypeAuthError reports a credential problem during the handshake.
	TypeAuthError = "auth_error"
	// TypeError reports a server-side failure during the handshake.
	TypeError = "error"
	// TypePresenceSnapshot delivers the full room state to a joining connection.
	TypePresenceSnapshot = "presence_snapshot"
	// TypePresenceChanged notifies peers about one user's updated state.
	TypePresenceChanged = "presence_changed"
	// TypeUserLeft notifies peers that a user's last connection closed.
	TypeUserLeft = "user_left_presence"
)

// Error codes carried by auth_error and error messages.
const (
	CodeAuthMissing   = "AUTH_MISSING"
	CodeAuthInvalid   = "AUTH_INVALID"
	CodeConfigError   = "SERVER_CONFIG_ERROR"
	CodeInternalError = "SERVER_INTERNAL_ERROR"
)

// Inbound is the envelope for messages coming from the client. Unknown types
// and malformed payloads are dropped by the handler without closing the
// connection.
type Inbound struct {
	Type         string `json:"type"`
	CurrentPath  string `json:"currentPath"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

// AuthError tells the client its credential was missing or rejected.
type AuthError struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// ServerError tells the client the handshake failed for a non-credential reason.
type ServerError struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// PresenceUser is one user's state as it appears on the wire.
type PresenceUser struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserImage    string `json:"userImage,omitempty"`
	CurrentPath  string `json:"currentPath"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

// PresenceSnapshot is sent once to a joining connection and never broadcast.
type PresenceSnapshot struct {
	Type  string         `json:"type"`
	Users []PresenceUser `json:"users"`
}

// PresenceChanged is broadcast to every connection in the room except the sender.
type PresenceChanged struct {
	Type         string `json:"type"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserImage    string `json:"userImage,omitempty"`
	CurrentPath  string `json:"currentPath"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

// UserLeft is broadcast when a user's last open connection closes.
type UserLeft struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}
