package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/babelchat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == 0 || created.Username != "alice" {
		t.Fatalf("unexpected user: %+v", created)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("expected id %d, got %d", created.ID, byName.ID)
	}

	if _, err := s.CreateUser(ctx, "alice", "hash"); err == nil {
		t.Fatalf("expected duplicate username to fail")
	}

	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLanguagePreference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	tests := []struct {
		name     string
		set      string
		expected string
	}{
		{name: "first preference", set: "en", expected: "en"},
		{name: "replace preference", set: "fr", expected: "fr"},
	}

	if _, err := s.GetLanguage(ctx, user.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any preference, got %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := s.SetLanguage(ctx, user.ID, tt.set)
			if err != nil {
				t.Fatalf("set language: %v", err)
			}
			if profile.Language != tt.expected || profile.UserID != user.ID {
				t.Fatalf("unexpected profile: %+v", profile)
			}

			got, err := s.GetLanguage(ctx, user.ID)
			if err != nil {
				t.Fatalf("get language: %v", err)
			}
			if got != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
