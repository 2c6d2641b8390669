package core

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/metrics"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return NewRegistry(&logger, metrics.New())
}

func TestRegistryCreatesRoomLazily(t *testing.T) {
	reg := newTestRegistry()
	defer reg.Close()

	if _, ok := reg.Lookup("w1"); ok {
		t.Fatal("room should not exist before first use")
	}

	room := reg.Room("w1")
	if room == nil {
		t.Fatal("expected room")
	}
	if again := reg.Room("w1"); again != room {
		t.Fatal("expected the same room instance for the same key")
	}

	got, ok := reg.Lookup("w1")
	if !ok || got != room {
		t.Fatal("lookup should return the created room")
	}
}

func TestRegistryRoomsAreIndependent(t *testing.T) {
	reg := newTestRegistry()
	defer reg.Close()

	if reg.Room("w1") == reg.Room("w2") {
		t.Fatal("distinct keys must map to distinct rooms")
	}
}

func TestRegistryCloseStopsRooms(t *testing.T) {
	reg := newTestRegistry()
	room := reg.Room("w1")

	reg.Close()

	select {
	case <-room.done:
	default:
		t.Fatal("close should stop room processing")
	}

	if reg.Room("w2") != nil {
		t.Fatal("closed registry must not create rooms")
	}
}
