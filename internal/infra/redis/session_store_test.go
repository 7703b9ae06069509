package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSessionStoreCountsAndClears(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	if err := store.Register(ctx, 1, "s1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = store.Register(ctx, 1, "s2")
	if !mr.Exists("quiz:1:sessions") {
		t.Fatalf("expected redis key to be set")
	}
	if n, err := store.Count(ctx, 1); err != nil || n != 2 {
		t.Fatalf("expected 2 sessions, got %d (%v)", n, err)
	}

	store.Unregister(ctx, 1, "s1")
	if n, _ := store.Count(ctx, 1); n != 1 {
		t.Fatalf("expected 1 session after unregister, got %d", n)
	}
}

func TestSessionStoreDropsExpiredMembers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewSessionStore(newClient(mr), time.Minute)
	store.clock = func() time.Time { return now }

	_ = store.Register(ctx, 1, "s1")
	now = now.Add(2 * time.Minute)
	if n, _ := store.Count(ctx, 1); n != 0 {
		t.Fatalf("expected stale session to age out, got %d", n)
	}
}
