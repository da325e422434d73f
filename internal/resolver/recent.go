package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// Recent list bounds.
const (
	DefaultRecentLimit = 8
	MinRecentLimit     = 5
	MaxRecentLimit     = 10
)

// ClampRecentLimit maps n into the allowed range; zero or negative selects
// the default.
func ClampRecentLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultRecentLimit
	case n < MinRecentLimit:
		return MinRecentLimit
	case n > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return n
	}
}

// RecentOption is a recently resolved reference.
type RecentOption struct {
	ID     string    `json:"id"`
	Label  string    `json:"label"`
	UsedAt time.Time `json:"used_at"`
}

// RecentStore persists the per entity recent list. Writers race; the last
// one wins.
type RecentStore interface {
	Push(ctx context.Context, entity backend.EntityType, opt RecentOption, limit int) error
	List(ctx context.Context, entity backend.EntityType) ([]RecentOption, error)
}

// pushRecent puts opt first, drops any older entry with the same id and
// trims to limit.
func pushRecent(list []RecentOption, opt RecentOption, limit int) []RecentOption {
	out := make([]RecentOption, 0, limit)
	out = append(out, opt)
	for _, existing := range list {
		if len(out) >= limit {
			break
		}
		if existing.ID == opt.ID {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// MemoryRecentStore keeps recent lists in process.
type MemoryRecentStore struct {
	mu    sync.Mutex
	lists map[backend.EntityType][]RecentOption
}

// NewMemoryRecentStore constructs an empty store.
func NewMemoryRecentStore() *MemoryRecentStore {
	return &MemoryRecentStore{lists: make(map[backend.EntityType][]RecentOption)}
}

// Push implements RecentStore.
func (s *MemoryRecentStore) Push(_ context.Context, entity backend.EntityType, opt RecentOption, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[entity] = pushRecent(s.lists[entity], opt, ClampRecentLimit(limit))
	return nil
}

// List implements RecentStore.
func (s *MemoryRecentStore) List(_ context.Context, entity backend.EntityType) ([]RecentOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecentOption{}, s.lists[entity]...), nil
}

var errRecentCorrupt = errors.New("resolver: recent decode")

// RedisRecentStore keeps each list as a JSON document under recent:<entity>.
type RedisRecentStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRecentStore constructs a store on client.
func NewRedisRecentStore(client *redis.Client) *RedisRecentStore {
	return &RedisRecentStore{client: client, prefix: "recent:"}
}

func (s *RedisRecentStore) key(entity backend.EntityType) string {
	return s.prefix + string(entity)
}

// List implements RecentStore.
func (s *RedisRecentStore) List(ctx context.Context, entity backend.EntityType) ([]RecentOption, error) {
	raw, err := s.client.Get(ctx, s.key(entity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []RecentOption{}, nil
		}
		return nil, fmt.Errorf("resolver: recent get: %w", err)
	}
	var list []RecentOption
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", errRecentCorrupt, err)
	}
	return list, nil
}

// Push implements RecentStore. It is a plain read-modify-write. A list that
// cannot be read is left alone; one that cannot be decoded is replaced.
func (s *RedisRecentStore) Push(ctx context.Context, entity backend.EntityType, opt RecentOption, limit int) error {
	list, err := s.List(ctx, entity)
	switch {
	case errors.Is(err, errRecentCorrupt):
		list = nil
	case err != nil:
		return err
	}
	payload, err := json.Marshal(pushRecent(list, opt, ClampRecentLimit(limit)))
	if err != nil {
		return fmt.Errorf("resolver: recent encode: %w", err)
	}
	if err := s.client.Set(ctx, s.key(entity), payload, 0).Err(); err != nil {
		return fmt.Errorf("resolver: recent set: %w", err)
	}
	return nil
}
