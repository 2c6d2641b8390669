package core

import (
	"context"
	"testing"
	"time"
)

func newTestSession(id, userID, userName string) *Session {
	return NewSession(id, Identity{UserID: userID, UserName: userName}, 0)
}

// checkEntryTabInvariant asserts that a user has an entry exactly when their
// open-connection set is non-empty.
func checkEntryTabInvariant(t *testing.T, r *Room) {
	t.Helper()

	for uid := range r.entries {
		if len(r.tabs[uid]) == 0 {
			t.Fatalf("user %q has an entry but no open connections", uid)
		}
	}
	for uid, set := range r.tabs {
		if len(set) == 0 {
			t.Fatalf("user %q has an empty connection set left behind", uid)
		}
		if _, ok := r.entries[uid]; !ok {
			t.Fatalf("user %q has open connections but no entry", uid)
		}
	}
}

func TestRoomEntryExistsIffTabsOpen(t *testing.T) {
	r := newTestRoom("w1")

	a1 := newTestSession("c1", "alice", "Alice")
	a2 := newTestSession("c2", "alice", "Alice")
	b1 := newTestSession("c3", "bob", "Bob")

	steps := []command{
		{kind: commandJoin, sess: a1},
		{kind: commandJoin, sess: b1},
		{kind: commandUpdate, sess: a1, update: UpdatePayload{CurrentPath: "/docs/1"}},
		{kind: commandJoin, sess: a2},
		{kind: commandLeave, sess: a1},
		{kind: commandUpdate, sess: a2, update: UpdatePayload{CurrentPath: "/docs/2"}},
		{kind: commandLeave, sess: b1},
		{kind: commandLeave, sess: a2},
	}

	for _, cmd := range steps {
		r.dispatch(cmd)
		checkEntryTabInvariant(t, r)
	}

	if len(r.entries) != 0 || len(r.tabs) != 0 {
		t.Fatalf("room not empty after all sessions left: entries=%d tabs=%d", len(r.entries), len(r.tabs))
	}
}

func TestRoomJoinSendsSnapshotToJoinerOnly(t *testing.T) {
	r := newTestRoom("w1")

	alice := newTestSession("c1", "alice", "Alice")
	bob := newTestSession("c2", "bob", "Bob")
	r.dispatch(command{kind: commandJoin, sess: alice})
	r.dispatch(command{kind: commandJoin, sess: bob})
	r.dispatch(command{kind: commandUpdate, sess: alice, update: UpdatePayload{CurrentPath: "/boards/7"}})
	r.dispatch(command{kind: commandUpdate, sess: bob, update: UpdatePayload{CurrentPath: "/docs/1"}})

	carol := newTestSession("c3", "carol", "Carol")
	r.dispatch(command{kind: commandJoin, sess: carol})

	snap := mustEvent(t, carol.Events, EventSnapshot)
	if len(snap.Users) != 2 {
		t.Fatalf("expected snapshot with 2 entries, got %d", len(snap.Users))
	}
	if snap.Users[0].UserID != "alice" || snap.Users[1].UserID != "bob" {
		t.Fatalf("unexpected snapshot contents: %+v", snap.Users)
	}
	if snap.Users[0].CurrentPath != "/boards/7" {
		t.Fatalf("snapshot lost alice's path: %+v", snap.Users[0])
	}
	mustNoEvent(t, carol.Events, 50*time.Millisecond)

	// Existing peers learn nothing from the join itself.
	for {
		select {
		case ev := <-alice.Events:
			if ev.Entry.UserID == "carol" || ev.UserID == "carol" {
				t.Fatalf("join must not broadcast: %+v", ev)
			}
			continue
		default:
		}
		break
	}
}

func TestRoomSnapshotExcludesOwnUserForSecondTab(t *testing.T) {
	r := newTestRoom("w1")

	tab1 := newTestSession("c1", "alice", "Alice")
	r.dispatch(command{kind: commandJoin, sess: tab1})
	r.dispatch(command{kind: commandUpdate, sess: tab1, update: UpdatePayload{CurrentPath: "/docs/1"}})

	tab2 := newTestSession("c2", "alice", "Alice")
	r.dispatch(command{kind: commandJoin, sess: tab2})

	snap := mustEvent(t, tab2.Events, EventSnapshot)
	if len(snap.Users) != 0 {
		t.Fatalf("second tab snapshot should not contain own user: %+v", snap.Users)
	}

	// The existing state must survive the second join.
	if r.entries["alice"].CurrentPath != "/docs/1" {
		t.Fatalf("second tab join clobbered entry: %+v", r.entries["alice"])
	}
}

func TestRoomUpdateBroadcastExcludesSender(t *testing.T) {
	r := newTestRoom("w1")

	alice := newTestSession("c1", "alice", "Alice")
	bob := newTestSession("c2", "bob", "Bob")
	r.dispatch(command{kind: commandJoin, sess: alice})
	r.dispatch(command{kind: commandJoin, sess: bob})
	mustEvent(t, alice.Events, EventSnapshot)
	mustEvent(t, bob.Events, EventSnapshot)

	r.dispatch(command{kind: commandUpdate, sess: alice, update: UpdatePayload{
		CurrentPath:  "/docs/1",
		ResourceType: "document",
		ResourceID:   "d1",
	}})

	ev := mustEvent(t, bob.Events, EventPresenceChanged)
	if ev.Entry.UserID != "alice" || ev.Entry.CurrentPath != "/docs/1" || ev.Entry.ResourceID != "d1" {
		t.Fatalf("unexpected change event: %+v", ev.Entry)
	}
	mustNoEvent(t, alice.Events, 50*time.Millisecond)
}

func TestRoomLastTabCloseBroadcastsLeaveOnce(t *testing.T) {
	r := newTestRoom("w1")

	tab1 := newTestSession("c1", "alice", "Alice")
	tab2 := newTestSession("c2", "alice", "Alice")
	bob := newTestSession("c3", "bob", "Bob")
	r.dispatch(command{kind: commandJoin, sess: tab1})
	r.dispatch(command{kind: commandJoin, sess: tab2})
	r.dispatch(command{kind: commandJoin, sess: bob})
	mustEvent(t, bob.Events, EventSnapshot)

	r.dispatch(command{kind: commandLeave, sess: tab1})
	mustNoEvent(t, bob.Events, 50*time.Millisecond)

	r.dispatch(command{kind: commandLeave, sess: tab2})
	ev := mustEvent(t, bob.Events, EventUserLeft)
	if ev.UserID != "alice" {
		t.Fatalf("unexpected leave event: %+v", ev)
	}
	mustNoEvent(t, bob.Events, 50*time.Millisecond)
}

func TestRoomDuplicateLeaveIsNoOp(t *testing.T) {
	r := newTestRoom("w1")

	alice := newTestSession("c1", "alice", "Alice")
	bob := newTestSession("c2", "bob", "Bob")
	r.dispatch(command{kind: commandJoin, sess: alice})
	r.dispatch(command{kind: commandJoin, sess: bob})
	mustEvent(t, bob.Events, EventSnapshot)

	r.dispatch(command{kind: commandLeave, sess: alice})
	mustEvent(t, bob.Events, EventUserLeft)

	r.dispatch(command{kind: commandLeave, sess: alice})
	mustNoEvent(t, bob.Events, 50*time.Millisecond)
	checkEntryTabInvariant(t, r)
}

func TestRoomUpdateFromUnknownSessionIgnored(t *testing.T) {
	r := newTestRoom("w1")

	bob := newTestSession("c2", "bob", "Bob")
	r.dispatch(command{kind: commandJoin, sess: bob})
	mustEvent(t, bob.Events, EventSnapshot)

	ghost := newTestSession("c9", "ghost", "Ghost")
	r.dispatch(command{kind: commandUpdate, sess: ghost, update: UpdatePayload{CurrentPath: "/x"}})

	mustNoEvent(t, bob.Events, 50*time.Millisecond)
	if _, ok := r.entries["ghost"]; ok {
		t.Fatal("update from unknown session must not create an entry")
	}
}

func TestRoomEntriesThroughRunLoop(t *testing.T) {
	r := newTestRoom("w1")
	go r.Run()
	defer r.Close()

	alice := newTestSession("c1", "alice", "Alice")
	r.Join(alice)
	r.Update(alice, UpdatePayload{CurrentPath: "/docs/1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	entries, err := r.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "alice" || entries[0].CurrentPath != "/docs/1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestRoomEntriesAfterClose(t *testing.T) {
	r := newTestRoom("w1")
	go r.Run()
	r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := r.Entries(ctx); err != ErrRoomClosed {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}
