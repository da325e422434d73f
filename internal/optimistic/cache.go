package optimistic

import (
	"sync"
	"time"
)

// CacheEntry is a cached value and the instant it stops being served.
type CacheEntry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

// Cache is a TTL keyed cache. Expired entries are destroyed on access.
type Cache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]CacheEntry[T]
}

// NewCache constructs a Cache. A nil clock uses time.Now.
func NewCache[T any](ttl time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{ttl: ttl, now: now, entries: make(map[string]CacheEntry[T])}
}

func (c *Cache[T]) live(key string) (CacheEntry[T], bool) {
	entry, ok := c.entries[key]
	if !ok {
		return entry, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		return CacheEntry[T]{}, false
	}
	return entry, true
}

// Get returns the value stored under key while it is fresh.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	return entry.Value, ok
}

// Set stores v under key with a full TTL.
func (c *Cache[T]) Set(key string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry[T]{Value: v, ExpiresAt: c.now().Add(c.ttl)}
}

// Replace swaps the value under key without extending its lifetime. It
// reports false when no fresh entry exists.
func (c *Cache[T]) Replace(key string, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.live(key)
	if !ok {
		return false
	}
	entry.Value = v
	c.entries[key] = entry
	return true
}

// Invalidate destroys the entry under key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
