package http

import (
	"github.com/driftboard/presenced/internal/core"
	"github.com/driftboard/presenced/internal/proto"
)

func wireUserFromEntry(entry core.PresenceEntry) proto.PresenceUser {
	return proto.PresenceUser{
		UserID:       entry.UserID,
		UserName:     entry.UserName,
		UserImage:    entry.UserImage,
		CurrentPath:  entry.CurrentPath,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
	}
}

func outboundFromEvent(ev core.Event) any {
	switch ev.Kind {
	case core.EventSnapshot:
		users := make([]proto.PresenceUser, 0, len(ev.Users))
		for _, entry := range ev.Users {
			users = append(users, wireUserFromEntry(entry))
		}
		return proto.PresenceSnapshot{
			Type:  proto.TypePresenceSnapshot,
			Users: users,
		}
	case core.EventPresenceChanged:
		return proto.PresenceChanged{
			Type:         proto.TypePresenceChanged,
			UserID:       ev.Entry.UserID,
			UserName:     ev.Entry.UserName,
			UserImage:    ev.Entry.UserImage,
			CurrentPath:  ev.Entry.CurrentPath,
			ResourceType: ev.Entry.ResourceType,
			ResourceID:   ev.Entry.ResourceID,
		}
	case core.EventUserLeft:
		return proto.UserLeft{
			Type:   proto.TypeUserLeft,
			UserID: ev.UserID,
		}
	default:
		return nil
	}
}
