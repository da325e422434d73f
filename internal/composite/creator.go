package composite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/resolver"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

// Resolver turns references into record ids.
type Resolver interface {
	Resolve(ctx context.Context, ref resolver.Reference) (string, error)
}

// Refresher reloads a list view after a creation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// Options configures a Creator.
type Options struct {
	Logger    *slog.Logger
	Notifier  Notifier
	Retry     backend.RetryPolicy
	Validator *validator.Validate
	Now       func() time.Time
}

// Creator runs the composite creation pipeline.
type Creator struct {
	resolver  Resolver
	store     backend.Aggregates
	notifier  Notifier
	refresher Refresher
	retry     backend.RetryPolicy
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time

	background *sync.WaitGroup
}

// NewCreator constructs a Creator. A zero Retry uses backend.DefaultRetryPolicy.
func NewCreator(res Resolver, store backend.Aggregates, opts Options) *Creator {
	c := &Creator{
		resolver:   res,
		store:      store,
		notifier:   opts.Notifier,
		retry:      opts.Retry,
		validate:   opts.Validator,
		logger:     opts.Logger,
		now:        opts.Now,
		background: &sync.WaitGroup{},
	}
	if c.retry == (backend.RetryPolicy{}) {
		c.retry = backend.DefaultRetryPolicy
	}
	if c.validate == nil {
		c.validate = NewValidator()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// WithRefresher returns a Creator that refreshes through r after each
// creation. Background work of both Creators is awaited by Wait.
func (c *Creator) WithRefresher(r Refresher) *Creator {
	cp := *c
	cp.refresher = r
	return &cp
}

// Validate checks plan without resolving anything.
func (c *Creator) Validate(plan Plan) error {
	return Validate(c.validate, plan)
}

// ValidateItem checks one line item against scheme.
func (c *Creator) ValidateItem(scheme Scheme, it PlannedItem) error {
	return ValidateItem(c.validate, scheme, it)
}

// ValidatePayment checks one payment.
func (c *Creator) ValidatePayment(p PlannedPayment) error {
	return ValidatePayment(c.validate, p)
}

// Create validates plan, resolves every reference, stores the aggregate with
// its items and payments in one call and returns the new id. Notification and
// refresh run afterwards and never fail the creation.
func (c *Creator) Create(ctx context.Context, plan Plan) (string, error) {
	if err := c.Validate(plan); err != nil {
		return "", err
	}

	header, err := c.resolveHeader(ctx, plan)
	if err != nil {
		return "", err
	}
	items := make([]backend.ItemInput, 0, len(plan.Items))
	for _, it := range plan.Items {
		in, err := c.ResolveItem(ctx, plan.Scheme, it)
		if err != nil {
			return "", err
		}
		items = append(items, in)
	}
	notes := make([]backend.NoteInput, 0, len(plan.Notes))
	for _, n := range plan.Notes {
		if n = shared.NormalizeLabel(n); n != "" {
			notes = append(notes, backend.NoteInput{Text: n})
		}
	}

	id, err := c.store.CreateAggregateAtomic(ctx, backend.AtomicRequest{
		Type:     plan.Type,
		Header:   header,
		Items:    items,
		Payments: plan.NormalizedPayments(),
		Notes:    notes,
	})
	if err != nil {
		return "", fmt.Errorf("composite: create %s: %w", plan.Type, err)
	}

	c.notify(ctx, plan.Type, id, header)
	c.refresh(ctx, plan.Type)
	return id, nil
}

func (c *Creator) resolveHeader(ctx context.Context, plan Plan) (backend.Header, error) {
	header := backend.Header{
		CounterpartyID:   plan.CounterpartyID,
		CounterpartyName: shared.NormalizeLabel(plan.Counterparty),
		Date:             plan.Date,
		Status:           plan.Status,
		Title:            shared.NormalizeLabel(plan.Title),
	}
	if header.CounterpartyID != "" {
		return header, nil
	}
	id, err := c.resolver.Resolve(ctx, resolver.Reference{Entity: plan.CounterpartyEntity, Label: plan.Counterparty})
	if err != nil {
		return backend.Header{}, err
	}
	header.CounterpartyID = id
	return header, nil
}

// ResolveItem resolves the category, item and size references of one line
// item, in that order. Ids already present are kept.
func (c *Creator) ResolveItem(ctx context.Context, scheme Scheme, it PlannedItem) (backend.ItemInput, error) {
	in := backend.ItemInput{
		Name:         shared.NormalizeLabel(it.Name),
		ItemRefID:    it.ItemID,
		CategoryID:   it.CategoryID,
		CategoryName: shared.NormalizeLabel(it.Category),
		SizeID:       it.SizeID,
		SizeName:     shared.NormalizeLabel(it.Size),
		Quantity:     it.Quantity,
		UnitPrice:    it.UnitPrice,
	}
	var err error
	if in.CategoryID == "" && in.CategoryName != "" {
		in.CategoryID, err = c.resolver.Resolve(ctx, resolver.Reference{Entity: backend.EntityCategory, Label: in.CategoryName})
		if err != nil {
			return backend.ItemInput{}, err
		}
	}
	if scheme.ItemEntity != "" && in.ItemRefID == "" {
		ref := resolver.Reference{Entity: scheme.ItemEntity, Label: in.Name}
		if _, scoped := scheme.ItemEntity.ParentType(); scoped {
			ref.ParentID = in.CategoryID
		}
		in.ItemRefID, err = c.resolver.Resolve(ctx, ref)
		if err != nil {
			return backend.ItemInput{}, err
		}
	}
	if scheme.Sizes && in.SizeID == "" && in.SizeName != "" {
		in.SizeID, err = c.resolver.Resolve(ctx, resolver.Reference{Entity: backend.EntitySize, Label: in.SizeName})
		if err != nil {
			return backend.ItemInput{}, err
		}
	}
	return in, nil
}

func (c *Creator) notify(ctx context.Context, typ backend.AggregateType, id string, header backend.Header) {
	if c.notifier == nil {
		return
	}
	n := backend.Notification{
		Kind:          NotificationKind,
		AggregateType: typ,
		AggregateID:   id,
		Message:       notificationMessage(typ, header),
		CreatedAt:     c.now(),
	}
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.logger.Warn("composite notification failed",
			slog.String("type", string(typ)), slog.String("id", id), slog.Any("error", err))
	}
}

func (c *Creator) refresh(ctx context.Context, typ backend.AggregateType) {
	if c.refresher == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		if err := c.retry.Do(bg, c.refresher.Refresh); err != nil {
			c.logger.Warn("composite background refresh failed",
				slog.String("type", string(typ)), slog.Any("error", err))
		}
	}()
}

// Wait blocks until background refreshes have finished.
func (c *Creator) Wait() {
	c.background.Wait()
}
