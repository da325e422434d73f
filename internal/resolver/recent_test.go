package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

func newRedisRecent(t *testing.T) (*RedisRecentStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRecentStore(client), mr
}

func TestClampRecentLimit(t *testing.T) {
	assert.Equal(t, DefaultRecentLimit, ClampRecentLimit(0))
	assert.Equal(t, MinRecentLimit, ClampRecentLimit(2))
	assert.Equal(t, 7, ClampRecentLimit(7))
	assert.Equal(t, MaxRecentLimit, ClampRecentLimit(50))
}

func TestRedisRecentStoreBoundsAndDedup(t *testing.T) {
	store, mr := newRedisRecent(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		opt := RecentOption{ID: fmt.Sprintf("c%d", i), Label: fmt.Sprintf("Client %d", i), UsedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.Push(ctx, backend.EntityClient, opt, 8))
	}
	require.NoError(t, store.Push(ctx, backend.EntityClient, RecentOption{ID: "c7", Label: "Client 7"}, 8))

	list, err := store.List(ctx, backend.EntityClient)
	require.NoError(t, err)
	require.Len(t, list, 8)
	assert.Equal(t, "c7", list[0].ID)
	assert.Equal(t, "c11", list[1].ID)

	seen := map[string]bool{}
	for _, opt := range list {
		assert.False(t, seen[opt.ID], "duplicate %s", opt.ID)
		seen[opt.ID] = true
	}
	assert.True(t, mr.Exists("recent:client"))
}

func TestRedisRecentStoreEmptyList(t *testing.T) {
	store, _ := newRedisRecent(t)
	list, err := store.List(context.Background(), backend.EntitySize)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRedisRecentStoreRecoversFromCorruptValue(t *testing.T) {
	store, mr := newRedisRecent(t)
	require.NoError(t, mr.Set("recent:size", "not json"))

	_, err := store.List(context.Background(), backend.EntitySize)
	require.Error(t, err)

	require.NoError(t, store.Push(context.Background(), backend.EntitySize, RecentOption{ID: "s1", Label: "A4"}, 5))
	list, err := store.List(context.Background(), backend.EntitySize)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRedisRecentStoreKeepsListWhenReadFails(t *testing.T) {
	store, mr := newRedisRecent(t)
	ctx := context.Background()
	require.NoError(t, store.Push(ctx, backend.EntitySize, RecentOption{ID: "s1", Label: "A4"}, 5))
	require.NoError(t, store.Push(ctx, backend.EntitySize, RecentOption{ID: "s2", Label: "A3"}, 5))

	mr.SetError("ERR injected failure")
	require.Error(t, store.Push(ctx, backend.EntitySize, RecentOption{ID: "s3", Label: "A5"}, 5))
	mr.SetError("")

	list, err := store.List(ctx, backend.EntitySize)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)
	assert.Equal(t, "s1", list[1].ID)
}

type failingRecent struct{}

func (failingRecent) Push(context.Context, backend.EntityType, RecentOption, int) error {
	return errors.New("redis down")
}

func (failingRecent) List(context.Context, backend.EntityType) ([]RecentOption, error) {
	return nil, errors.New("redis down")
}

func TestResolverRecentFailures(t *testing.T) {
	r := newTestResolver(nil, Config{Recent: failingRecent{}})
	r.remember(context.Background(), backend.EntityClient, "c1", "Acme")

	_, err := r.Recent(context.Background(), backend.EntityClient)
	require.Error(t, err)
}
