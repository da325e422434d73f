// Package memory provides an in-process backend.Client for development and
// tests. Every call copies in and out so callers never share state with it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

// Hook runs before an operation touches state. A non-nil error fails the call.
type Hook func(ctx context.Context, op string) error

// Backend is a mutex guarded map store.
type Backend struct {
	mu            sync.Mutex
	records       map[backend.EntityType]map[string]backend.Record
	aggregates    map[backend.AggregateType]map[string]backend.AggregateRecord
	notifications []backend.Notification
	calls         map[string]int
	failures      map[string][]error
	hook          Hook
	now           func() time.Time
}

// New constructs an empty backend.
func New() *Backend {
	b := &Backend{
		records:    make(map[backend.EntityType]map[string]backend.Record),
		aggregates: make(map[backend.AggregateType]map[string]backend.AggregateRecord),
		calls:      make(map[string]int),
		failures:   make(map[string][]error),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, e := range backend.EntityTypes {
		b.records[e] = make(map[string]backend.Record)
	}
	for _, t := range backend.AggregateTypes {
		b.aggregates[t] = make(map[string]backend.AggregateRecord)
	}
	return b
}

// SetHook installs a hook run at the start of every call.
func (b *Backend) SetHook(h Hook) {
	b.mu.Lock()
	b.hook = h
	b.mu.Unlock()
}

// FailNext queues err as the result of the next call to op.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	b.failures[op] = append(b.failures[op], err)
	b.mu.Unlock()
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Notifications returns the stored notifications.
func (b *Backend) Notifications() []backend.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backend.Notification(nil), b.notifications...)
}

// Seed inserts a lookup record without going through validation.
func (b *Backend) Seed(entity backend.EntityType, name, parentID string) backend.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := backend.Record{ID: uuid.NewString(), Entity: entity, Name: name, ParentID: parentID, CreatedAt: b.now()}
	b.records[entity][rec.ID] = rec
	return rec
}

func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	hook := b.hook
	var queued error
	if q := b.failures[op]; len(q) > 0 {
		queued = q[0]
		b.failures[op] = q[1:]
	}
	b.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, op); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return backend.Wrap(backend.CodeNetwork, op+" aborted", err)
	}
	return queued
}

func (b *Backend) table(entity backend.EntityType) (map[string]backend.Record, error) {
	t, ok := b.records[entity]
	if !ok {
		return nil, backend.Validation("entity", fmt.Sprintf("unknown entity %q", entity))
	}
	return t, nil
}

// Lookup implements backend.Directory.
func (b *Backend) Lookup(ctx context.Context, entity backend.EntityType, filter backend.Filter) ([]backend.Record, error) {
	if err := b.enter(ctx, "lookup"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.table(entity)
	if err != nil {
		return nil, err
	}
	equals := shared.FoldLabel(filter.NameEquals)
	contains := shared.FoldLabel(filter.NameContains)
	out := make([]backend.Record, 0)
	for _, rec := range t {
		if filter.ParentID != "" && rec.ParentID != filter.ParentID {
			continue
		}
		folded := shared.FoldLabel(rec.Name)
		if equals != "" && folded != equals {
			continue
		}
		if contains != "" && !strings.Contains(folded, contains) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Create implements backend.Directory.
func (b *Backend) Create(ctx context.Context, entity backend.EntityType, input backend.RecordInput) (backend.Record, error) {
	if err := b.enter(ctx, "create"); err != nil {
		return backend.Record{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.table(entity)
	if err != nil {
		return backend.Record{}, err
	}
	name := shared.NormalizeLabel(input.Name)
	if name == "" {
		return backend.Record{}, backend.Validation("name", "name is required")
	}
	if err := b.checkParent(entity, input.ParentID); err != nil {
		return backend.Record{}, err
	}
	for _, rec := range t {
		if rec.ParentID == input.ParentID && shared.SameLabel(rec.Name, name) {
			return backend.Record{}, backend.Duplicate(fmt.Sprintf("%s %q already exists", entity, rec.Name))
		}
	}
	rec := backend.Record{ID: uuid.NewString(), Entity: entity, Name: name, ParentID: input.ParentID, CreatedAt: b.now()}
	t[rec.ID] = rec
	return rec, nil
}

func (b *Backend) checkParent(entity backend.EntityType, parentID string) error {
	parentType, scoped := entity.ParentType()
	if !scoped || parentID == "" {
		return nil
	}
	if _, ok := b.records[parentType][parentID]; !ok {
		return backend.Validation("parent_id", fmt.Sprintf("%s %s does not exist", parentType, parentID))
	}
	return nil
}

// Update implements backend.Directory.
func (b *Backend) Update(ctx context.Context, entity backend.EntityType, id string, patch backend.RecordPatch) (backend.Record, error) {
	if err := b.enter(ctx, "update"); err != nil {
		return backend.Record{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.table(entity)
	if err != nil {
		return backend.Record{}, err
	}
	rec, ok := t[id]
	if !ok {
		return backend.Record{}, backend.NotFound(string(entity), id)
	}
	if patch.Name != nil {
		name := shared.NormalizeLabel(*patch.Name)
		if name == "" {
			return backend.Record{}, backend.Validation("name", "name is required")
		}
		rec.Name = name
	}
	if patch.ParentID != nil {
		if err := b.checkParent(entity, *patch.ParentID); err != nil {
			return backend.Record{}, err
		}
		rec.ParentID = *patch.ParentID
	}
	t[id] = rec
	return rec, nil
}

// Delete implements backend.Directory.
func (b *Backend) Delete(ctx context.Context, entity backend.EntityType, id string) error {
	if err := b.enter(ctx, "delete"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.table(entity)
	if err != nil {
		return err
	}
	if _, ok := t[id]; !ok {
		return backend.NotFound(string(entity), id)
	}
	delete(t, id)
	return nil
}

// CreateNotification implements backend.Notifications.
func (b *Backend) CreateNotification(ctx context.Context, n backend.Notification) error {
	if err := b.enter(ctx, "create_notification"); err != nil {
		return err
	}
	if n.AggregateID == "" {
		return backend.Validation("aggregate_id", "aggregate id is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.now()
	}
	b.notifications = append(b.notifications, n)
	return nil
}

var _ backend.Client = (*Backend)(nil)
