package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
	"github.com/Gvain-jona/ivan-test-sub005/internal/optimistic"
	"github.com/Gvain-jona/ivan-test-sub005/internal/resolver"
)

// ItemDraft is a line item to add; its references may still be labels.
type ItemDraft = composite.PlannedItem

// PaymentDraft is a payment to add.
type PaymentDraft = composite.PlannedPayment

// Options configures a Service.
type Options struct {
	Store    optimistic.Options
	Resolver composite.Resolver
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service is the entry point for one aggregate collection. Every mutation
// goes through the optimistic store.
type Service[A optimistic.Entity[A], D any] struct {
	kind     Kind[A, D]
	store    *optimistic.Store[A, D, Patch]
	creator  *composite.Creator
	resolver composite.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires a store for kind over client. creator runs the creation
// pipeline; the Service adds a refresher that reloads its own list.
func NewService[A optimistic.Entity[A], D any](kind Kind[A, D], client backend.Aggregates, creator *composite.Creator, opts Options) *Service[A, D] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Store.Name == "" {
		opts.Store.Name = kind.Name
	}
	if opts.Store.Logger == nil {
		opts.Store.Logger = opts.Logger
	}
	g := &gateway[A, D]{kind: kind, store: client, logger: opts.Logger.With(slog.String("collection", kind.Name))}
	store := optimistic.NewStore[A, D, Patch](g, opts.Store)
	g.creator = creator.WithRefresher(composite.RefreshFunc(func(ctx context.Context) error {
		_, err := store.RefreshSettled(ctx)
		return err
	}))
	return &Service[A, D]{
		kind:     kind,
		store:    store,
		creator:  g.creator,
		resolver: opts.Resolver,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Kind returns the collection description.
func (s *Service[A, D]) Kind() Kind[A, D] {
	return s.kind
}

// List returns the collection, newest first.
func (s *Service[A, D]) List(ctx context.Context) ([]A, error) {
	return s.store.List(ctx)
}

// Get returns one aggregate.
func (s *Service[A, D]) Get(ctx context.Context, id string) (A, error) {
	return s.store.Get(ctx, id)
}

// Snapshot returns the cached collection without a backend call.
func (s *Service[A, D]) Snapshot() []A {
	return s.store.Snapshot()
}

// Refresh reloads the collection from the backend.
func (s *Service[A, D]) Refresh(ctx context.Context) ([]A, error) {
	return s.store.Refresh(ctx)
}

// Create stores a new aggregate. It is visible at the head of the list with
// a temporary id until the backend confirms it.
func (s *Service[A, D]) Create(ctx context.Context, draft D) (A, error) {
	return s.store.Create(ctx, draft)
}

// Update changes header fields. A counterparty label is resolved first.
func (s *Service[A, D]) Update(ctx context.Context, id string, patch Patch) (A, error) {
	patch.AddItems, patch.RemoveItemIDs = nil, nil
	patch.AddPayments, patch.RemovePaymentIDs = nil, nil
	if patch.Counterparty != nil && patch.CounterpartyID == nil && s.resolver != nil {
		cid, err := s.resolver.Resolve(ctx, resolver.Reference{Entity: s.kind.Counterparty, Label: *patch.Counterparty})
		if err != nil {
			var zero A
			return zero, err
		}
		patch.CounterpartyID = &cid
	}
	return s.store.Update(ctx, id, patch)
}

// Delete removes an aggregate.
func (s *Service[A, D]) Delete(ctx context.Context, id string) error {
	_, err := s.store.Delete(ctx, id)
	return err
}

// AddItem resolves the references of draft and appends it to the aggregate.
func (s *Service[A, D]) AddItem(ctx context.Context, id string, draft ItemDraft) (A, error) {
	var zero A
	if err := s.creator.ValidateItem(s.kind.Scheme, draft); err != nil {
		return zero, err
	}
	in, err := s.creator.ResolveItem(ctx, s.kind.Scheme, draft)
	if err != nil {
		return zero, err
	}
	in.ID = uuid.NewString()
	return s.store.Update(ctx, id, Patch{AddItems: []Item{itemFromInput(in)}})
}

// RemoveItem drops one line item.
func (s *Service[A, D]) RemoveItem(ctx context.Context, id, itemID string) (A, error) {
	return s.store.Update(ctx, id, Patch{RemoveItemIDs: []string{itemID}})
}

// AddPayment records a payment. Missing date and method default to today and
// cash.
func (s *Service[A, D]) AddPayment(ctx context.Context, id string, draft PaymentDraft) (A, error) {
	if err := s.creator.ValidatePayment(draft); err != nil {
		var zero A
		return zero, err
	}
	in := composite.NormalizePayment(draft, s.now())
	pay := ledger.Payment{ID: uuid.NewString(), Amount: in.Amount, Date: in.Date, Method: in.Method}
	return s.store.Update(ctx, id, Patch{AddPayments: []ledger.Payment{pay}})
}

// RemovePayment drops one payment.
func (s *Service[A, D]) RemovePayment(ctx context.Context, id, paymentID string) (A, error) {
	return s.store.Update(ctx, id, Patch{RemovePaymentIDs: []string{paymentID}})
}

// Wait blocks until background refreshes started by creations are done.
func (s *Service[A, D]) Wait() {
	s.creator.Wait()
}
