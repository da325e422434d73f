package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultIdempotencyTTL is how long a processed key is remembered.
const DefaultIdempotencyTTL = 24 * time.Hour

const pendingMarker = "pending"

// ErrIdempotencyConflict indicates the key is held by a request that has not
// finished yet.
var ErrIdempotencyConflict = errors.New("idempotent request already in progress")

// IdempotencyStore remembers Idempotency-Key headers in Redis so a retried
// create returns the record made by the first attempt. A nil store or a
// store without a client lets every request through.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func (s *IdempotencyStore) enabled() bool {
	return s != nil && s.client != nil
}

func idempotencyKey(module, key string) string {
	return "idempotency:" + module + ":" + key
}

// Reserve claims key for module. When the key was already completed it
// returns the stored result id; a key still pending yields
// ErrIdempotencyConflict.
func (s *IdempotencyStore) Reserve(ctx context.Context, module, key string) (string, error) {
	if !s.enabled() {
		return "", nil
	}
	if key == "" || module == "" {
		return "", errors.New("idempotency key and module required")
	}
	k := idempotencyKey(module, key)
	ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("shared: reserve idempotency key: %w", err)
	}
	if ok {
		return "", nil
	}
	val, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.Reserve(ctx, module, key)
	}
	if err != nil {
		return "", fmt.Errorf("shared: read idempotency key: %w", err)
	}
	if val == pendingMarker {
		return "", ErrIdempotencyConflict
	}
	return strings.TrimPrefix(val, "done:"), nil
}

// Complete records resultID as the outcome for key.
func (s *IdempotencyStore) Complete(ctx context.Context, module, key, resultID string) error {
	if !s.enabled() || key == "" {
		return nil
	}
	return s.client.Set(ctx, idempotencyKey(module, key), "done:"+resultID, s.ttl).Err()
}

// Delete releases key, typically after failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, module, key string) error {
	if !s.enabled() || key == "" {
		return nil
	}
	return s.client.Del(ctx, idempotencyKey(module, key)).Err()
}
