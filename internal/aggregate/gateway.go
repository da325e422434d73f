package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
	"github.com/Gvain-jona/ivan-test-sub005/internal/optimistic"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

// Kind describes one aggregate collection: how its typed values map onto the
// shared parts and how its drafts become creation plans.
type Kind[A optimistic.Entity[A], D any] struct {
	Type backend.AggregateType
	// Name labels the collection in logs, metrics and errors.
	Name         string
	Counterparty backend.EntityType
	Scheme       composite.Scheme
	Plan         func(draft D) composite.Plan
	Build        func(base Base, header backend.Header) A
	Split        func(a A) (Base, backend.Header)
}

// plan returns the draft's plan with the collection settings filled in.
func (k Kind[A, D]) plan(draft D) composite.Plan {
	p := k.Plan(draft)
	p.Type = k.Type
	p.Scheme = k.Scheme
	p.CounterpartyEntity = k.Counterparty
	return p
}

// FromRecord converts the stored form into A.
func (k Kind[A, D]) FromRecord(rec backend.AggregateRecord) A {
	return k.Build(BaseFromRecord(rec), rec.Header)
}

// provisional builds the local stand-in for a plan that has not been stored.
func (k Kind[A, D]) provisional(p composite.Plan) A {
	base := Base{Items: make([]Item, 0, len(p.Items)), Notes: []string{}}
	for _, it := range p.Items {
		base.Items = append(base.Items, Item{
			LineItem: ledger.LineItem{
				ID:        uuid.NewString(),
				Name:      shared.NormalizeLabel(it.Name),
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			},
			ItemRefID:    it.ItemID,
			CategoryID:   it.CategoryID,
			CategoryName: shared.NormalizeLabel(it.Category),
			SizeID:       it.SizeID,
			SizeName:     shared.NormalizeLabel(it.Size),
		})
	}
	for _, pay := range p.NormalizedPayments() {
		base.Payments = append(base.Payments, ledger.Payment{ID: uuid.NewString(), Amount: pay.Amount, Date: pay.Date, Method: pay.Method})
	}
	for _, n := range p.Notes {
		if n = shared.NormalizeLabel(n); n != "" {
			base.Notes = append(base.Notes, n)
		}
	}
	header := backend.Header{
		CounterpartyID:   p.CounterpartyID,
		CounterpartyName: shared.NormalizeLabel(p.Counterparty),
		Date:             p.Date,
		Status:           p.Status,
		Title:            shared.NormalizeLabel(p.Title),
	}
	return k.Build(base, header)
}

// gateway connects an optimistic store to the backend and the composite
// creator.
type gateway[A optimistic.Entity[A], D any] struct {
	kind    Kind[A, D]
	store   backend.Aggregates
	creator *composite.Creator
	logger  *slog.Logger
}

func (g *gateway[A, D]) Provisional(draft D) (A, error) {
	p := g.kind.plan(draft)
	if err := g.creator.Validate(p); err != nil {
		var zero A
		return zero, err
	}
	return g.kind.provisional(p), nil
}

func (g *gateway[A, D]) Apply(current A, patch Patch) (A, error) {
	if patch.Status != nil && !g.kind.Scheme.AllowsStatus(*patch.Status) {
		var zero A
		return zero, backend.Validation("status", fmt.Sprintf("unknown status %q", *patch.Status))
	}
	base, header := g.kind.Split(current)
	base, header, err := patch.apply(base, header)
	if err != nil {
		var zero A
		return zero, err
	}
	return g.kind.Build(base, header), nil
}

func (g *gateway[A, D]) Fetch(ctx context.Context) ([]A, error) {
	records, err := g.store.ListAggregates(ctx, g.kind.Type, backend.ListFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]A, 0, len(records))
	for _, rec := range records {
		out = append(out, g.kind.FromRecord(rec))
	}
	return out, nil
}

// Create runs the composite pipeline and reads the stored record back. When
// the read fails the provisional value is confirmed under the new id.
func (g *gateway[A, D]) Create(ctx context.Context, draft D, provisional A) (A, error) {
	id, err := g.creator.Create(ctx, g.kind.plan(draft))
	if err != nil {
		var zero A
		return zero, err
	}
	rec, err := g.store.GetAggregate(ctx, g.kind.Type, id)
	if err != nil {
		g.logger.Warn("read back after create failed, keeping local values",
			slog.String("id", id), slog.Any("error", err))
		base, header := g.kind.Split(provisional)
		base.ID = id
		base.Provisional = false
		return g.kind.Build(base, header), nil
	}
	return g.kind.FromRecord(rec), nil
}

func (g *gateway[A, D]) Update(ctx context.Context, id string, patch Patch, merged A) (A, error) {
	base, header := g.kind.Split(merged)
	var bp backend.AggregatePatch
	if patch.touchesHeader() {
		bp.CounterpartyID = &header.CounterpartyID
		bp.CounterpartyName = &header.CounterpartyName
		bp.Date = &header.Date
		bp.Status = &header.Status
		bp.Title = &header.Title
		if patch.Notes != nil {
			notes := base.Notes
			bp.Notes = &notes
		}
	}
	if patch.touchesItems() {
		items := base.ItemInputs()
		bp.Items = &items
	}
	if patch.touchesPayments() {
		payments := base.PaymentInputs()
		bp.Payments = &payments
	}
	rec, err := g.store.UpdateAggregate(ctx, g.kind.Type, id, bp)
	if err != nil {
		var zero A
		return zero, fmt.Errorf("%s: update %s: %w", g.kind.Name, id, err)
	}
	return g.kind.FromRecord(rec), nil
}

func (g *gateway[A, D]) Delete(ctx context.Context, id string) error {
	if err := g.store.DeleteAggregate(ctx, g.kind.Type, id); err != nil {
		return fmt.Errorf("%s: delete %s: %w", g.kind.Name, id, err)
	}
	return nil
}
