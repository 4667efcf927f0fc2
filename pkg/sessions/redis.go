package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKeyPrefix prefixes every session key
const RedisKeyPrefix = "sess:"

// RedisStore keeps sessions as JSON values that expire with the session
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a store over client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func redisKey(sid string) string {
	return RedisKeyPrefix + sid
}

// Get returns an unexpired session
func (s *RedisStore) Get(ctx context.Context, sid string) (*Session, error) {
	raw, err := s.client.Get(ctx, redisKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Save writes session with a TTL matching its expiry
func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	ttl := session.Expires.Sub(s.now())
	if ttl <= 0 {
		return s.Destroy(ctx, session.ID)
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(session.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy deletes a session
func (s *RedisStore) Destroy(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, redisKey(sid)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Purge is a no-op, Redis expires session keys itself
func (s *RedisStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
