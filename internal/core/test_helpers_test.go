package core

import (
	"context"
	"testing"
	"time"
)

type testSubscriber struct {
	id     string
	events chan Event
}

func newTestSubscriber(id string, buffer int) *testSubscriber {
	return &testSubscriber{id: id, events: make(chan Event, buffer)}
}

func (s *testSubscriber) ID() string { return s.id }

func (s *testSubscriber) Deliver(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func startHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(nil, nil)
	go hub.Run(ctx)
	return hub, ctx
}

func mustEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event not received")
		return Event{}
	}
}

func mustNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
