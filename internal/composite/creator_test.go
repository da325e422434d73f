package composite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend/memory"
	"github.com/Gvain-jona/ivan-test-sub005/internal/resolver"
)

var orderScheme = Scheme{ItemEntity: backend.EntityItem, RequireCategory: true, Sizes: true}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCreator(store *memory.Backend, opts Options) *Creator {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Retry == (backend.RetryPolicy{}) {
		opts.Retry = backend.RetryPolicy{MaxRetries: 1, Delay: time.Millisecond}
	}
	res := resolver.New(store, resolver.Config{Logger: opts.Logger})
	return NewCreator(res, store, opts)
}

func orderPlan() Plan {
	return Plan{
		Type:               backend.AggregateOrder,
		Scheme:             orderScheme,
		CounterpartyEntity: backend.EntityClient,
		Counterparty:       "Acme Ltd",
		Date:               time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:             "pending",
		Notes:              []string{"  deliver   friday "},
		Items: []PlannedItem{
			{Name: "Banner", Category: "Print", Size: "A1", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(5000)},
			{Name: "Flyer", Category: " print ", Quantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(100)},
		},
		Payments: []PlannedPayment{{Amount: decimal.NewFromInt(12000)}},
	}
}

func TestCreateResolvesEverythingAndStoresOnce(t *testing.T) {
	store := memory.New()
	printCat := store.Seed(backend.EntityCategory, "Print", "")
	c := newCreator(store, Options{Notifier: BackendNotifier{Store: store}})
	ctx := context.Background()

	id, err := c.Create(ctx, orderPlan())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls("create_aggregate"))

	rec, err := store.GetAggregate(ctx, backend.AggregateOrder, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", rec.Header.CounterpartyName)
	assert.NotEmpty(t, rec.Header.CounterpartyID)
	require.Len(t, rec.Items, 2)
	assert.Equal(t, printCat.ID, rec.Items[0].CategoryID)
	assert.Equal(t, printCat.ID, rec.Items[1].CategoryID)
	assert.NotEmpty(t, rec.Items[0].ItemRefID)
	assert.NotEmpty(t, rec.Items[0].SizeID)
	assert.Empty(t, rec.Items[1].SizeID)
	assert.Equal(t, []string{"deliver friday"}, rec.Notes)

	require.Len(t, rec.Payments, 1)
	assert.Equal(t, "cash", rec.Payments[0].Method)
	assert.True(t, rec.Payments[0].Date.Equal(orderPlan().Date))
	assert.True(t, rec.Summary.TotalAmount.Equal(decimal.NewFromInt(20000)))
	assert.True(t, rec.Summary.Balance.Equal(decimal.NewFromInt(8000)))

	items, err := store.Lookup(ctx, backend.EntityItem, backend.Filter{ParentID: printCat.ID})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	notes := store.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, NotificationKind, notes[0].Kind)
	assert.Equal(t, id, notes[0].AggregateID)
	assert.Equal(t, "New order recorded for Acme Ltd", notes[0].Message)
}

func TestCreateValidationFailsBeforeAnyCall(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(p *Plan)
		field string
	}{
		{"missing counterparty", func(p *Plan) { p.Counterparty = "" }, "counterparty"},
		{"no items", func(p *Plan) { p.Items = nil }, "items"},
		{"item name", func(p *Plan) { p.Items[1].Name = "" }, "items[1].name"},
		{"category", func(p *Plan) { p.Items[0].Category = "" }, "items[0].category"},
		{"quantity", func(p *Plan) { p.Items[0].Quantity = decimal.Zero }, "items[0].quantity"},
		{"unit price", func(p *Plan) { p.Items[1].UnitPrice = decimal.NewFromInt(-1) }, "items[1].unit_price"},
		{"payment", func(p *Plan) { p.Payments[0].Amount = decimal.Zero }, "payments[0].amount"},
		{"date", func(p *Plan) { p.Date = time.Time{} }, "date"},
		{"type", func(p *Plan) { p.Type = "invoice" }, "type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			c := newCreator(store, Options{})
			plan := orderPlan()
			tc.edit(&plan)

			_, err := c.Create(context.Background(), plan)
			require.ErrorIs(t, err, backend.ErrValidation)
			assert.Equal(t, tc.field, backend.FieldOf(err))
			assert.Zero(t, store.Calls("lookup"))
			assert.Zero(t, store.Calls("create_aggregate"))
		})
	}
}

func TestCategoryOptionalWhenSchemeAllows(t *testing.T) {
	store := memory.New()
	c := newCreator(store, Options{})
	plan := orderPlan()
	plan.Type = backend.AggregateMaterialPurchase
	plan.Scheme = Scheme{ItemEntity: backend.EntityMaterial}
	plan.CounterpartyEntity = backend.EntitySupplier
	plan.Items[0].Category = ""

	id, err := c.Create(context.Background(), plan)
	require.NoError(t, err)
	rec, err := store.GetAggregate(context.Background(), backend.AggregateMaterialPurchase, id)
	require.NoError(t, err)
	assert.Empty(t, rec.Items[0].CategoryID)
	assert.Empty(t, rec.Items[0].SizeID, "sizes are ignored for materials")
	assert.NotEmpty(t, rec.Items[0].ItemRefID)
}

func TestResolverFailureAbortsWithoutCreating(t *testing.T) {
	store := memory.New()
	store.FailNext("create", backend.Wrap(backend.CodePermissionDenied, "row level security", nil))
	c := newCreator(store, Options{})

	_, err := c.Create(context.Background(), orderPlan())
	require.Error(t, err)
	assert.Equal(t, resolver.CodePermissionDenied, resolver.CodeOf(err))
	assert.Zero(t, store.Calls("create_aggregate"))
}

func TestExistingIDsSkipResolution(t *testing.T) {
	store := memory.New()
	c := newCreator(store, Options{})
	plan := orderPlan()
	plan.CounterpartyID = "client-1"
	for i := range plan.Items {
		plan.Items[i].CategoryID = "cat-1"
		plan.Items[i].ItemID = "item-1"
		plan.Items[i].Size = ""
	}

	_, err := c.Create(context.Background(), plan)
	require.NoError(t, err)
	assert.Zero(t, store.Calls("lookup"))
	assert.Zero(t, store.Calls("create"))
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, backend.Notification) error {
	return errors.New("queue unavailable")
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	store := memory.New()
	c := newCreator(store, Options{Notifier: failingNotifier{}})

	id, err := c.Create(context.Background(), orderPlan())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestAtomicFailureIsReturned(t *testing.T) {
	store := memory.New()
	store.FailNext("create_aggregate", backend.Wrap(backend.CodeServer, "boom", nil))
	c := newCreator(store, Options{Notifier: BackendNotifier{Store: store}})

	_, err := c.Create(context.Background(), orderPlan())
	require.ErrorIs(t, err, backend.ErrServer)
	assert.Empty(t, store.Notifications())
}

func TestBackgroundRefreshRetriesOnce(t *testing.T) {
	store := memory.New()
	var attempts atomic.Int32
	refresher := RefreshFunc(func(context.Context) error {
		if attempts.Add(1) == 1 {
			return backend.Wrap(backend.CodeNetwork, "offline", nil)
		}
		return nil
	})
	c := newCreator(store, Options{}).WithRefresher(refresher)

	_, err := c.Create(context.Background(), orderPlan())
	require.NoError(t, err)
	c.Wait()
	assert.EqualValues(t, 2, attempts.Load())
}

func TestBackgroundRefreshSurvivesCallerCancellation(t *testing.T) {
	store := memory.New()
	var calls atomic.Int32
	started := make(chan struct{})
	refresher := RefreshFunc(func(ctx context.Context) error {
		<-started
		calls.Add(1)
		return ctx.Err()
	})
	c := newCreator(store, Options{}).WithRefresher(refresher)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Create(ctx, orderPlan())
	require.NoError(t, err)
	cancel()
	close(started)
	c.Wait()
	assert.EqualValues(t, 1, calls.Load())
}

func TestBackgroundRefreshGivesUp(t *testing.T) {
	store := memory.New()
	var attempts atomic.Int32
	refresher := RefreshFunc(func(context.Context) error {
		attempts.Add(1)
		return backend.Wrap(backend.CodeNetwork, "offline", nil)
	})
	c := newCreator(store, Options{}).WithRefresher(refresher)

	_, err := c.Create(context.Background(), orderPlan())
	require.NoError(t, err)
	c.Wait()
	assert.EqualValues(t, 2, attempts.Load())
}

func TestValidateSingleItemAndPayment(t *testing.T) {
	c := newCreator(memory.New(), Options{})

	err := c.ValidateItem(orderScheme, PlannedItem{Name: "Mug", Category: "Gifts", Quantity: decimal.NewFromInt(-2)})
	require.ErrorIs(t, err, backend.ErrValidation)
	assert.Equal(t, "quantity", backend.FieldOf(err))

	err = c.ValidateItem(orderScheme, PlannedItem{Name: "Mug", Quantity: decimal.NewFromInt(1)})
	assert.Equal(t, "category", backend.FieldOf(err))

	require.NoError(t, c.ValidateItem(Scheme{}, PlannedItem{Name: "Fuel", Quantity: decimal.NewFromInt(1)}))

	err = c.ValidatePayment(PlannedPayment{Amount: decimal.NewFromInt(-5)})
	assert.Equal(t, "amount", backend.FieldOf(err))
	require.NoError(t, c.ValidatePayment(PlannedPayment{Amount: decimal.RequireFromString("0.5")}))
}
