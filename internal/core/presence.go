package core

// Identity is the verified identity attached to a connection after the
// handshake succeeds.
type Identity struct {
	UserID    string
	UserName  string
	UserImage string
}

// PresenceEntry is one user's latest reported state within a room. It is
// replaced wholesale on every update from that user; there is no partial merge.
type PresenceEntry struct {
	UserID       string
	UserName     string
	UserImage    string
	CurrentPath  string
	ResourceType string
	ResourceID   string
}

// UpdatePayload carries the client-supplied fields of a presence update.
// Identity fields are never taken from the client; they come from the
// session's verified identity.
type UpdatePayload struct {
	CurrentPath  string
	ResourceType string
	ResourceID   string
}

func entryFromIdentity(id Identity) PresenceEntry {
	return PresenceEntry{
		UserID:    id.UserID,
		UserName:  id.UserName,
		UserImage: id.UserImage,
	}
}

func entryFromUpdate(id Identity, upd UpdatePayload) PresenceEntry {
	return PresenceEntry{
		UserID:       id.UserID,
		UserName:     id.UserName,
		UserImage:    id.UserImage,
		CurrentPath:  upd.CurrentPath,
		ResourceType: upd.ResourceType,
		ResourceID:   upd.ResourceID,
	}
}
