package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis implementation of app.SessionRegistry, so every
// instance sees the same live-session count.
// Each quiz has a sorted set whose members are session IDs scored by their
// expiry (unix millis):
//
//	ZADD quiz:{quizID}:sessions {expiresAt} {sessionID}
//
// Registering again refreshes the expiry. Members of crashed instances
// age out after ttl.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl, clock: time.Now}
}

func (s *SessionStore) Register(ctx context.Context, quizID int64, sessionID string) error {
	key := s.key(quizID)
	expiresAt := s.clock().Add(s.ttl)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(expiresAt.UnixMilli()), Member: sessionID})
	pipe.Expire(ctx, key, 2*s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Unregister(ctx context.Context, quizID int64, sessionID string) {
	// best-effort; stale members expire on their own
	_ = s.client.ZRem(ctx, s.key(quizID), sessionID).Err()
}

func (s *SessionStore) Count(ctx context.Context, quizID int64) (int, error) {
	key := s.key(quizID)
	now := strconv.FormatInt(s.clock().UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", now).Err(); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SessionStore) key(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":sessions"
}
