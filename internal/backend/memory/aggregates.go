package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

func (b *Backend) collection(typ backend.AggregateType) (map[string]backend.AggregateRecord, error) {
	c, ok := b.aggregates[typ]
	if !ok {
		return nil, backend.Validation("type", fmt.Sprintf("unknown aggregate type %q", typ))
	}
	return c, nil
}

// CreateAggregateAtomic implements backend.Aggregates. Either everything is
// stored or nothing is.
func (b *Backend) CreateAggregateAtomic(ctx context.Context, req backend.AtomicRequest) (string, error) {
	if err := b.enter(ctx, "create_aggregate"); err != nil {
		return "", err
	}
	if err := backend.ValidateAtomic(req); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(req.Type)
	if err != nil {
		return "", err
	}
	now := b.now()
	rec := backend.AggregateRecord{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Header:    req.Header,
		Items:     backend.ItemRecords(req.Items),
		Payments:  backend.PaymentRecords(req.Payments),
		Notes:     make([]string, 0, len(req.Notes)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, n := range req.Notes {
		rec.Notes = append(rec.Notes, n.Text)
	}
	rec.Recompute()
	c[rec.ID] = rec
	return rec.ID, nil
}

// GetAggregate implements backend.Aggregates.
func (b *Backend) GetAggregate(ctx context.Context, typ backend.AggregateType, id string) (backend.AggregateRecord, error) {
	if err := b.enter(ctx, "get_aggregate"); err != nil {
		return backend.AggregateRecord{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(typ)
	if err != nil {
		return backend.AggregateRecord{}, err
	}
	rec, ok := c[id]
	if !ok {
		return backend.AggregateRecord{}, backend.NotFound(string(typ), id)
	}
	return cloneRecord(rec), nil
}

// ListAggregates implements backend.Aggregates. Newest first.
func (b *Backend) ListAggregates(ctx context.Context, typ backend.AggregateType, filter backend.ListFilter) ([]backend.AggregateRecord, error) {
	if err := b.enter(ctx, "list_aggregates"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(typ)
	if err != nil {
		return nil, err
	}
	out := make([]backend.AggregateRecord, 0, len(c))
	for _, rec := range c {
		if filter.From != nil && rec.Header.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.Header.Date.After(*filter.To) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateAggregate implements backend.Aggregates.
func (b *Backend) UpdateAggregate(ctx context.Context, typ backend.AggregateType, id string, patch backend.AggregatePatch) (backend.AggregateRecord, error) {
	if err := b.enter(ctx, "update_aggregate"); err != nil {
		return backend.AggregateRecord{}, err
	}
	if patch.Items != nil {
		if err := backend.ValidateItems(*patch.Items); err != nil {
			return backend.AggregateRecord{}, err
		}
	}
	if patch.Payments != nil {
		if err := backend.ValidatePayments(*patch.Payments); err != nil {
			return backend.AggregateRecord{}, err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(typ)
	if err != nil {
		return backend.AggregateRecord{}, err
	}
	rec, ok := c[id]
	if !ok {
		return backend.AggregateRecord{}, backend.NotFound(string(typ), id)
	}
	rec = cloneRecord(rec)
	rec.Apply(patch)
	rec.UpdatedAt = b.now()
	rec.Recompute()
	c[id] = rec
	return cloneRecord(rec), nil
}

// DeleteAggregate implements backend.Aggregates.
func (b *Backend) DeleteAggregate(ctx context.Context, typ backend.AggregateType, id string) error {
	if err := b.enter(ctx, "delete_aggregate"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(typ)
	if err != nil {
		return err
	}
	if _, ok := c[id]; !ok {
		return backend.NotFound(string(typ), id)
	}
	delete(c, id)
	return nil
}

func cloneRecord(rec backend.AggregateRecord) backend.AggregateRecord {
	rec.Items = append([]backend.ItemRecord(nil), rec.Items...)
	rec.Payments = append([]backend.PaymentInput(nil), rec.Payments...)
	rec.Notes = append([]string(nil), rec.Notes...)
	return rec
}
