package memory

import (
	"context"
	"sync"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
)

// IdempotencyStore keeps submission tokens in process memory with a TTL.
type IdempotencyStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.Mutex
	keys map[string]idempotencyEntry
}

type idempotencyEntry struct {
	receipt   domain.AttemptReceipt
	expiresAt time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, clock: time.Now, keys: make(map[string]idempotencyEntry)}
}

func (s *IdempotencyStore) Claim(_ context.Context, key string) (domain.AttemptReceipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	if entry, ok := s.keys[key]; ok && entry.expiresAt.After(now) {
		return entry.receipt, false, nil
	}
	s.keys[key] = idempotencyEntry{expiresAt: now.Add(s.ttl)}
	return domain.AttemptReceipt{}, true, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key string, receipt domain.AttemptReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = idempotencyEntry{receipt: receipt, expiresAt: s.clock().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
