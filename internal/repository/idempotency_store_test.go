package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewIdempotencyStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "orders", "abc"))
	assert.ErrorIs(t, store.Reserve(ctx, "orders", "abc"), ErrIdempotencyConflict)
	assert.NoError(t, store.Reserve(ctx, "checks", "abc"), "scopes are independent")

	require.NoError(t, store.Release(ctx, "orders", "abc"))
	assert.NoError(t, store.Reserve(ctx, "orders", "abc"))

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, store.Reserve(ctx, "checks", "abc"), "reservation expires with the TTL")
}

func TestIdempotencyStore_Nil(t *testing.T) {
	var store *IdempotencyStore
	assert.Nil(t, NewIdempotencyStore(nil, time.Minute))
	assert.NoError(t, store.Reserve(context.Background(), "orders", "abc"))
	assert.NoError(t, store.Release(context.Background(), "orders", "abc"))
}
