package memory

import (
	"context"
	"testing"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
)

func TestIdempotencyStoreClaimCompleteRelease(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)

	if _, claimed, _ := store.Claim(ctx, "k"); !claimed {
		t.Fatalf("expected first claim to succeed")
	}
	if receipt, claimed, _ := store.Claim(ctx, "k"); claimed || receipt.AttemptID != 0 {
		t.Fatalf("expected in-flight key, got %+v claimed=%v", receipt, claimed)
	}

	_ = store.Complete(ctx, "k", domain.AttemptReceipt{AttemptID: 42, AnswersStored: 3, Score: 67})
	receipt, claimed, _ := store.Claim(ctx, "k")
	if claimed || receipt != (domain.AttemptReceipt{AttemptID: 42, AnswersStored: 3, Score: 67}) {
		t.Fatalf("expected completed attempt 42, got %+v claimed=%v", receipt, claimed)
	}

	_ = store.Release(ctx, "k")
	if _, claimed, _ := store.Claim(ctx, "k"); !claimed {
		t.Fatalf("expected released key to be claimable")
	}
}

func TestIdempotencyStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(time.Minute)
	store.clock = func() time.Time { return now }

	_, _, _ = store.Claim(ctx, "k")
	now = now.Add(2 * time.Minute)
	if _, claimed, _ := store.Claim(ctx, "k"); !claimed {
		t.Fatalf("expected expired key to be claimable")
	}
}
