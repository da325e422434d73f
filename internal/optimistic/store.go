// Package optimistic keeps a cached working set of records and applies
// mutations to it before the backend confirms them, rolling back on failure.
package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// TempIDPrefix marks ids assigned before the backend has confirmed a record.
const TempIDPrefix = "tmp-"

// IsTemporaryID reports whether id was assigned locally.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Entity is a record the store can cache. Recalculated must return a copy
// whose derived fields agree with its contents.
type Entity[A any] interface {
	EntityID() string
	WithTemporaryID(id string) A
	Recalculated() A
}

// Gateway adapts one collection to the store. Provisional and Apply run
// before any network call and are where client side validation belongs.
// Update receives both the patch and the merged record Apply produced.
type Gateway[A Entity[A], D any, P any] interface {
	Provisional(draft D) (A, error)
	Apply(current A, patch P) (A, error)
	Fetch(ctx context.Context) ([]A, error)
	Create(ctx context.Context, draft D, provisional A) (A, error)
	Update(ctx context.Context, id string, patch P, merged A) (A, error)
	Delete(ctx context.Context, id string) error
}

// Observer receives rollback and contention events.
type Observer interface {
	Rollback(collection, op string)
	Invalidated(collection string)
	Busy(collection string)
}

type nopObserver struct{}

func (nopObserver) Rollback(string, string) {}
func (nopObserver) Invalidated(string)      {}
func (nopObserver) Busy(string)             {}

// Options configures a Store.
type Options struct {
	// Name labels logs and metrics.
	Name     string
	TTL      time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
	Observer Observer
	// OnChange runs after every confirmed mutation.
	OnChange func(ctx context.Context)
	NewID    func() string
}

// DefaultTTL is how long a fetched collection is served before refetching.
const DefaultTTL = 5 * time.Minute

const collectionKey = "collection"

// Store is the optimistic cache for one collection. At most one mutation is
// in flight at a time; reads never block on the backend while holding the
// cache lock.
type Store[A Entity[A], D any, P any] struct {
	name     string
	gateway  Gateway[A, D, P]
	cache    *Cache[[]A]
	logger   *slog.Logger
	observer Observer
	onChange func(ctx context.Context)
	newID    func() string

	// inflight holds a token while a mutation runs.
	inflight chan struct{}
	group    singleflight.Group

	mu sync.Mutex
	// settled is closed when the mutation in flight finishes.
	settled        chan struct{}
	pendingCreates []A
	pendingDeletes map[string]struct{}
	// fetching is set while a collection fetch runs; confirmed collects the
	// mutations confirmed meanwhile so they can be laid over its result.
	fetching  bool
	confirmed []confirmation[A]
}

type confirmation[A any] struct {
	id      string
	record  A
	deleted bool
}

// NewStore constructs a Store over gateway.
func NewStore[A Entity[A], D any, P any](gateway Gateway[A, D, P], opts Options) *Store[A, D, P] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return TempIDPrefix + uuid.NewString() }
	}
	return &Store[A, D, P]{
		name:           opts.Name,
		gateway:        gateway,
		cache:          NewCache[[]A](opts.TTL, opts.Now),
		logger:         opts.Logger.With(slog.String("collection", opts.Name)),
		observer:       opts.Observer,
		onChange:       opts.OnChange,
		newID:          opts.NewID,
		inflight:       make(chan struct{}, 1),
		pendingDeletes: make(map[string]struct{}),
	}
}

// Name returns the collection label.
func (s *Store[A, D, P]) Name() string {
	return s.name
}

// List returns the cached collection, fetching it when absent or expired.
func (s *Store[A, D, P]) List(ctx context.Context) ([]A, error) {
	if list, ok := s.cache.Get(collectionKey); ok {
		return clone(list), nil
	}
	return s.Refresh(ctx)
}

// Get returns one record from the collection.
func (s *Store[A, D, P]) Get(ctx context.Context, id string) (A, error) {
	list, err := s.List(ctx)
	if err != nil {
		var zero A
		return zero, err
	}
	if i := indexOf(list, id); i >= 0 {
		return list[i], nil
	}
	var zero A
	return zero, backend.NotFound(s.name, id)
}

// Snapshot returns what the collection currently shows without touching the
// backend. When nothing is cached only pending creations are visible.
func (s *Store[A, D, P]) Snapshot() []A {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list, ok := s.cache.Get(collectionKey); ok {
		return clone(list)
	}
	return clone(s.pendingCreates)
}

// Refresh refetches the collection. Concurrent callers share one fetch,
// which is not cancelled when one of them gives up. Records still being
// created stay at the head, records being deleted stay hidden, and mutations
// confirmed while the fetch ran are applied over its result.
func (s *Store[A, D, P]) Refresh(ctx context.Context) ([]A, error) {
	fetchCtx := context.WithoutCancel(ctx)
	results := s.group.DoChan(collectionKey, func() (interface{}, error) {
		return s.fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]A)), nil
	}
}

func (s *Store[A, D, P]) fetch(ctx context.Context) ([]A, error) {
	s.mu.Lock()
	s.fetching = true
	s.confirmed = nil
	s.mu.Unlock()

	fetched, err := s.gateway.Fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	confirmed := s.confirmed
	s.fetching = false
	s.confirmed = nil
	if err != nil {
		return nil, fmt.Errorf("optimistic: fetch %s: %w", s.name, err)
	}

	list := make([]A, 0, len(s.pendingCreates)+len(fetched))
	list = append(list, s.pendingCreates...)
	for _, rec := range fetched {
		if _, deleting := s.pendingDeletes[rec.EntityID()]; deleting {
			continue
		}
		if indexOf(list, rec.EntityID()) >= 0 {
			continue
		}
		list = append(list, rec.Recalculated())
	}
	for _, c := range confirmed {
		switch i := indexOf(list, c.id); {
		case c.deleted:
			list = remove(list, c.id)
		case i >= 0:
			list[i] = c.record
		default:
			list = insertAt(list, len(s.pendingCreates), c.record)
		}
	}
	s.cache.Set(collectionKey, list)
	return list, nil
}

// confirmLocked records a confirmed mutation for the fetch in progress.
// Callers hold mu.
func (s *Store[A, D, P]) confirmLocked(c confirmation[A]) {
	if s.fetching {
		s.confirmed = append(s.confirmed, c)
	}
}

// Invalidate drops the cached collection.
func (s *Store[A, D, P]) Invalidate() {
	s.cache.Invalidate(collectionKey)
	s.observer.Invalidated(s.name)
}

func (s *Store[A, D, P]) acquire() error {
	select {
	case s.inflight <- struct{}{}:
	default:
		s.observer.Busy(s.name)
		return ErrBusy
	}
	s.mu.Lock()
	s.settled = make(chan struct{})
	s.mu.Unlock()
	return nil
}

func (s *Store[A, D, P]) release() {
	s.mu.Lock()
	close(s.settled)
	s.settled = nil
	s.mu.Unlock()
	<-s.inflight
}

// RefreshSettled waits until the mutation in flight, if any, has finished,
// then refreshes.
func (s *Store[A, D, P]) RefreshSettled(ctx context.Context) ([]A, error) {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()
	if settled != nil {
		select {
		case <-settled:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Refresh(ctx)
}

func (s *Store[A, D, P]) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}

// Create shows a provisional record at the head of the collection, then asks
// the backend to store it. On success the provisional record is replaced in
// place; on failure it is removed and nothing else changes.
func (s *Store[A, D, P]) Create(ctx context.Context, draft D) (A, error) {
	var zero A
	if err := s.acquire(); err != nil {
		return zero, err
	}
	defer s.release()

	provisional, err := s.gateway.Provisional(draft)
	if err != nil {
		return zero, err
	}
	tempID := s.newID()
	provisional = provisional.WithTemporaryID(tempID).Recalculated()

	s.mu.Lock()
	s.pendingCreates = append([]A{provisional}, s.pendingCreates...)
	if list, ok := s.cache.Get(collectionKey); ok {
		s.cache.Replace(collectionKey, append([]A{provisional}, list...))
	}
	s.mu.Unlock()

	confirmed, err := s.gateway.Create(ctx, draft, provisional)
	if err != nil {
		s.mu.Lock()
		s.pendingCreates = remove(s.pendingCreates, tempID)
		if list, ok := s.cache.Get(collectionKey); ok {
			s.cache.Replace(collectionKey, remove(list, tempID))
		}
		s.mu.Unlock()
		s.observer.Rollback(s.name, "create")
		s.logger.Warn("optimistic create rolled back", slog.Any("error", err))
		return zero, err
	}
	confirmed = confirmed.Recalculated()

	s.mu.Lock()
	s.pendingCreates = remove(s.pendingCreates, tempID)
	s.confirmLocked(confirmation[A]{id: confirmed.EntityID(), record: confirmed})
	if list, ok := s.cache.Get(collectionKey); ok {
		list = clone(list)
		if i := indexOf(list, confirmed.EntityID()); i >= 0 {
			list[i] = confirmed
			list = remove(list, tempID)
		} else if j := indexOf(list, tempID); j >= 0 {
			list[j] = confirmed
		} else {
			list = append([]A{confirmed}, list...)
		}
		s.cache.Replace(collectionKey, list)
	}
	s.mu.Unlock()

	s.changed(ctx)
	return confirmed, nil
}

// Update merges patch into the cached record, then asks the backend to store
// it. On failure the whole collection is invalidated and refetched once.
func (s *Store[A, D, P]) Update(ctx context.Context, id string, patch P) (A, error) {
	var zero A
	if err := s.acquire(); err != nil {
		return zero, err
	}
	defer s.release()

	if _, err := s.List(ctx); err != nil {
		return zero, err
	}

	s.mu.Lock()
	list, ok := s.cache.Get(collectionKey)
	i := -1
	if ok {
		i = indexOf(list, id)
	}
	if i < 0 {
		s.mu.Unlock()
		return zero, backend.NotFound(s.name, id)
	}
	merged, err := s.gateway.Apply(list[i], patch)
	if err != nil {
		s.mu.Unlock()
		return zero, err
	}
	merged = merged.Recalculated()
	list = clone(list)
	list[i] = merged
	s.cache.Replace(collectionKey, list)
	s.mu.Unlock()

	confirmed, err := s.gateway.Update(ctx, id, patch, merged)
	if err != nil {
		s.observer.Rollback(s.name, "update")
		s.logger.Warn("optimistic update failed, refetching", slog.String("id", id), slog.Any("error", err))
		s.Invalidate()
		if _, ferr := s.Refresh(ctx); ferr != nil {
			s.logger.Warn("refetch after failed update", slog.Any("error", ferr))
		}
		return zero, err
	}
	confirmed = confirmed.Recalculated()

	s.mu.Lock()
	s.confirmLocked(confirmation[A]{id: id, record: confirmed})
	if list, ok := s.cache.Get(collectionKey); ok {
		if j := indexOf(list, id); j >= 0 {
			list = clone(list)
			list[j] = confirmed
			s.cache.Replace(collectionKey, list)
		}
	}
	s.mu.Unlock()

	s.changed(ctx)
	return confirmed, nil
}

// Delete removes the record at once and asks the backend to delete it. On
// failure the record is put back at its old position unless something has
// already brought it back.
func (s *Store[A, D, P]) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.acquire(); err != nil {
		return false, err
	}
	defer s.release()

	if _, err := s.List(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	var removed A
	position := -1
	if list, ok := s.cache.Get(collectionKey); ok {
		if position = indexOf(list, id); position >= 0 {
			removed = list[position]
			s.cache.Replace(collectionKey, remove(list, id))
		}
	}
	s.pendingDeletes[id] = struct{}{}
	s.mu.Unlock()

	err := s.gateway.Delete(ctx, id)

	s.mu.Lock()
	delete(s.pendingDeletes, id)
	if err == nil {
		s.confirmLocked(confirmation[A]{id: id, deleted: true})
	}
	if err != nil && position >= 0 {
		if list, ok := s.cache.Get(collectionKey); ok && indexOf(list, id) < 0 {
			s.cache.Replace(collectionKey, insertAt(list, position, removed))
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.observer.Rollback(s.name, "delete")
		s.logger.Warn("optimistic delete rolled back", slog.String("id", id), slog.Any("error", err))
		return false, err
	}
	s.changed(ctx)
	return true, nil
}

func indexOf[A Entity[A]](list []A, id string) int {
	for i, v := range list {
		if v.EntityID() == id {
			return i
		}
	}
	return -1
}

func remove[A Entity[A]](list []A, id string) []A {
	out := make([]A, 0, len(list))
	for _, v := range list {
		if v.EntityID() != id {
			out = append(out, v)
		}
	}
	return out
}

func insertAt[A any](list []A, i int, v A) []A {
	if i > len(list) {
		i = len(list)
	}
	out := make([]A, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, v)
	return append(out, list[i:]...)
}

func clone[A any](list []A) []A {
	out := make([]A, len(list))
	copy(out, list)
	return out
}
