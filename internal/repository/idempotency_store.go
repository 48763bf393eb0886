package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrIdempotencyConflict indicates the key was already used.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore reserves client-supplied request keys in Redis. A nil
// store accepts every key.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if client == nil {
		return nil
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(scope, key string) string {
	return "idem:" + scope + ":" + key
}

// Reserve claims key within scope, failing with ErrIdempotencyConflict if it
// is already held.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope, key string) error {
	if s == nil || key == "" {
		return nil
	}
	ok, err := s.client.SetNX(ctx, idempotencyKey(scope, key), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release drops a reservation, typically after the guarded work failed.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if s == nil || key == "" {
		return nil
	}
	return s.client.Del(ctx, idempotencyKey(scope, key)).Err()
}
