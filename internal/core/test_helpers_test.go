package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftboard/presenced/internal/metrics"
)

func newTestRoom(key string) *Room {
	logger := zerolog.Nop()
	return NewRoom(key, &logger, metrics.New())
}

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return Event{}
}

func mustNoEvent(t *testing.T, ch <-chan Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got kind %v: %+v", ev.Kind, ev)
	case <-time.After(wait):
	}
}
