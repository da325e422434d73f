package shared

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyLifecycle(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()

	id, err := store.Reserve(ctx, "orders", "k1")
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = store.Reserve(ctx, "orders", "k1")
	require.ErrorIs(t, err, ErrIdempotencyConflict)

	require.NoError(t, store.Complete(ctx, "orders", "k1", "ord-7"))
	id, err = store.Reserve(ctx, "orders", "k1")
	require.NoError(t, err)
	assert.Equal(t, "ord-7", id)

	id, err = store.Reserve(ctx, "expenses", "k1")
	require.NoError(t, err)
	assert.Empty(t, id, "keys are scoped per module")
}

func TestIdempotencyDeleteReleasesKey(t *testing.T) {
	store, _ := newIdempotencyStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "orders", "k2")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "orders", "k2"))

	id, err := store.Reserve(ctx, "orders", "k2")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestIdempotencyKeysExpire(t *testing.T) {
	store, mr := newIdempotencyStore(t)
	ctx := context.Background()

	require.NoError(t, store.Complete(ctx, "orders", "k3", "ord-1"))
	mr.FastForward(2 * time.Hour)

	id, err := store.Reserve(ctx, "orders", "k3")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestNilIdempotencyStorePassesThrough(t *testing.T) {
	var store *IdempotencyStore
	id, err := store.Reserve(context.Background(), "orders", "k")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, store.Complete(context.Background(), "orders", "k", "x"))

	id, err = NewIdempotencyStore(nil, 0).Reserve(context.Background(), "orders", "k")
	require.NoError(t, err)
	assert.Empty(t, id)
}
