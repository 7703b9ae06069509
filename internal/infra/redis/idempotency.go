package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itsrohit2904/Quiz-App/internal/domain"
	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// IdempotencyStore records submission tokens in Redis:
//
//	SET idempotency:{key} pending NX EX ttl    (claim)
//	SET idempotency:{key} {receipt JSON} EX ttl (complete)
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) Claim(ctx context.Context, key string) (domain.AttemptReceipt, bool, error) {
	k := s.key(key)
	// A second round covers a key that expired between SETNX and GET.
	for i := 0; i < 2; i++ {
		ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
		if err != nil {
			return domain.AttemptReceipt{}, false, err
		}
		if ok {
			return domain.AttemptReceipt{}, true, nil
		}
		val, err := s.client.Get(ctx, k).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return domain.AttemptReceipt{}, false, err
		}
		if val == pendingMarker {
			return domain.AttemptReceipt{}, false, nil
		}
		var receipt domain.AttemptReceipt
		if err := json.Unmarshal([]byte(val), &receipt); err != nil {
			return domain.AttemptReceipt{}, false, fmt.Errorf("idempotency key %q holds %q: %w", key, val, err)
		}
		return receipt, false, nil
	}
	return domain.AttemptReceipt{}, false, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, key string, receipt domain.AttemptReceipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), payload, s.ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *IdempotencyStore) key(key string) string {
	return "idempotency:" + key
}
