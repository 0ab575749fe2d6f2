// Package dedupe remembers which events were already handled so a redelivered
// Kafka message does not send a second e-mail.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notified:"

type Store interface {
	// Claim reports whether the caller is the first to handle id.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a retry can claim it again.
	Release(ctx context.Context, id string) error
}

type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, Key(id), time.Now().UTC().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func Key(id string) string {
	return keyPrefix + id
}

// Noop claims every id. It is used when no Redis is configured.
type Noop struct{}

func (Noop) Claim(context.Context, string) (bool, error) { return true, nil }

func (Noop) Release(context.Context, string) error { return nil }
