package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHubJoinBroadcastAndLeave(t *testing.T) {
	hub, ctx := startHub(t)

	alice := newTestSubscriber("a", 8)
	bob := newTestSubscriber("b", 8)

	if err := hub.Join(ctx, "general", alice); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if err := hub.Join(ctx, "general", bob); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	if err := hub.Publish(ctx, "general", NewChatEvent("general", "alice", "hi", "en")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The sender receives its own event too.
	for _, sub := range []*testSubscriber{alice, bob} {
		ev := mustEvent(t, sub.events)
		if ev.Kind != EventChatMessage || ev.Chat.Text != "hi" || ev.Chat.Username != "alice" || ev.Chat.SourceLanguage != "en" {
			t.Fatalf("unexpected event for %s: %+v", sub.id, ev)
		}
	}

	if err := hub.Leave(ctx, "general", alice); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := hub.Publish(ctx, "general", NewChatEvent("general", "bob", "still here?", "es")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mustEvent(t, bob.events)
	mustNoEvent(t, alice.events)
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub, ctx := startHub(t)

	alice := newTestSubscriber("a", 8)
	bob := newTestSubscriber("b", 8)
	_ = hub.Join(ctx, "lobby", alice)
	_ = hub.Join(ctx, "games", bob)

	if err := hub.Publish(ctx, "lobby", NewChatEvent("lobby", "alice", "hello", "en")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	mustEvent(t, alice.events)
	mustNoEvent(t, bob.events)
}

func TestHubMembersLifecycle(t *testing.T) {
	hub, ctx := startHub(t)

	alice := newTestSubscriber("a", 1)
	if n, _ := hub.Members(ctx, "lobby"); n != 0 {
		t.Fatalf("expected empty room, got %d", n)
	}

	_ = hub.Join(ctx, "lobby", alice)
	// Joining twice does not duplicate membership.
	_ = hub.Join(ctx, "lobby", alice)
	if n, _ := hub.Members(ctx, "lobby"); n != 1 {
		t.Fatalf("expected 1 member, got %d", n)
	}

	_ = hub.Leave(ctx, "lobby", alice)
	_ = hub.Leave(ctx, "lobby", alice)
	if n, _ := hub.Members(ctx, "lobby"); n != 0 {
		t.Fatalf("expected 0 members, got %d", n)
	}

	// Leaving an unknown room is a no-op.
	if err := hub.Leave(ctx, "ghost", alice); err != nil {
		t.Fatalf("leave unknown room: %v", err)
	}
}

func TestHubPreservesPublishOrderPerSubscriber(t *testing.T) {
	hub, ctx := startHub(t)

	const total = 200
	subs := []*testSubscriber{
		newTestSubscriber("a", total),
		newTestSubscriber("b", total),
		newTestSubscriber("c", total),
	}
	for _, s := range subs {
		_ = hub.Join(ctx, "lobby", s)
	}

	for i := range total {
		if err := hub.Publish(ctx, "lobby", NewChatEvent("lobby", "alice", fmt.Sprint(i), "en")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	for _, s := range subs {
		for i := range total {
			ev := mustEvent(t, s.events)
			if ev.Chat.Text != fmt.Sprint(i) {
				t.Fatalf("subscriber %s: expected message %d, got %s", s.id, i, ev.Chat.Text)
			}
		}
	}
}

func TestHubDropsForFullMailbox(t *testing.T) {
	hub, ctx := startHub(t)

	slow := newTestSubscriber("slow", 1)
	fast := newTestSubscriber("fast", 4)
	_ = hub.Join(ctx, "lobby", slow)
	_ = hub.Join(ctx, "lobby", fast)

	for i := range 3 {
		_ = hub.Publish(ctx, "lobby", NewChatEvent("lobby", "alice", fmt.Sprint(i), "en"))
	}

	for i := range 3 {
		if ev := mustEvent(t, fast.events); ev.Chat.Text != fmt.Sprint(i) {
			t.Fatalf("fast subscriber out of order: %+v", ev)
		}
	}
	if ev := mustEvent(t, slow.events); ev.Chat.Text != "0" {
		t.Fatalf("slow subscriber should keep the first event, got %+v", ev)
	}
	mustNoEvent(t, slow.events)
}

func TestHubConcurrentJoinLeave(t *testing.T) {
	hub, ctx := startHub(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newTestSubscriber(fmt.Sprintf("s%d", i), 16)
			for range 10 {
				_ = hub.Join(ctx, "lobby", s)
				_ = hub.Publish(ctx, "lobby", NewChatEvent("lobby", s.id, "x", "en"))
				_ = hub.Leave(ctx, "lobby", s)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := hub.Members(ctx, "lobby"); n != 0 {
		t.Fatalf("expected membership to return to zero, got %d", n)
	}
}

func TestHubRejectsInvalidRequests(t *testing.T) {
	hub, ctx := startHub(t)

	if err := hub.Join(ctx, "", newTestSubscriber("a", 1)); !errors.Is(err, ErrEmptyRoom) {
		t.Fatalf("expected ErrEmptyRoom, got %v", err)
	}
	if err := hub.Join(ctx, "lobby", nil); !errors.Is(err, ErrNilSubscriber) {
		t.Fatalf("expected ErrNilSubscriber, got %v", err)
	}
	if err := hub.Publish(ctx, "lobby", Event{Kind: EventChatMessage}); err == nil {
		t.Fatalf("expected invalid event to be rejected")
	}
}

func TestHubClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, nil)

	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	reqCtx, reqCancel := context.WithTimeout(context.Background(), time.Second)
	defer reqCancel()

	if err := hub.Join(reqCtx, "lobby", newTestSubscriber("a", 1)); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}
