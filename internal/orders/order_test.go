package orders

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/aggregate"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend/memory"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
	"github.com/Gvain-jona/ivan-test-sub005/internal/optimistic"
	"github.com/Gvain-jona/ivan-test-sub005/internal/resolver"
)

var orderDate = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store *memory.Backend) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res := resolver.New(store, resolver.Config{Logger: logger})
	creator := composite.NewCreator(res, store, composite.Options{
		Logger: logger,
		Retry:  backend.RetryPolicy{MaxRetries: 1, Delay: time.Millisecond},
	})
	svc := NewService(store, creator, aggregate.Options{
		Resolver: res,
		Logger:   logger,
		Now:      func() time.Time { return orderDate.Add(48 * time.Hour) },
	})
	t.Cleanup(svc.Wait)
	return svc
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func twentyThousandDraft() Draft {
	return Draft{
		Client: "Kato Traders",
		Date:   orderDate,
		Items: []aggregate.ItemDraft{
			{Name: "Business cards", Category: "Print", Quantity: d(100), UnitPrice: d(150)},
			{Name: "Banner", Category: "Print", Size: "2x1m", Quantity: d(1), UnitPrice: d(5000)},
		},
	}
}

func assertLedger(t *testing.T, o Order, total, paid, balance int64, status ledger.PaymentStatus) {
	t.Helper()
	assert.True(t, o.TotalAmount.Equal(d(total)), "total %s", o.TotalAmount)
	assert.True(t, o.AmountPaid.Equal(d(paid)), "paid %s", o.AmountPaid)
	assert.True(t, o.Balance.Equal(d(balance)), "balance %s", o.Balance)
	assert.Equal(t, status, o.PaymentStatus)
}

func TestOrderPaymentLifecycle(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()

	order, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)
	assert.False(t, optimistic.IsTemporaryID(order.ID))
	assert.False(t, order.Provisional)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, "Kato Traders", order.ClientName)
	assertLedger(t, order, 20000, 0, 20000, ledger.StatusUnpaid)

	order, err = svc.AddPayment(ctx, order.ID, aggregate.PaymentDraft{Amount: d(12000)})
	require.NoError(t, err)
	assertLedger(t, order, 20000, 12000, 8000, ledger.StatusPartiallyPaid)
	require.Len(t, order.Payments, 1)
	assert.Equal(t, composite.DefaultPaymentMethod, order.Payments[0].Method)
	assert.True(t, order.Payments[0].Date.Equal(orderDate.Add(48*time.Hour)))

	order, err = svc.AddPayment(ctx, order.ID, aggregate.PaymentDraft{Amount: d(8000), Method: "mobile_money"})
	require.NoError(t, err)
	assertLedger(t, order, 20000, 20000, 0, ledger.StatusPaid)

	order, err = svc.AddPayment(ctx, order.ID, aggregate.PaymentDraft{Amount: d(5000)})
	require.NoError(t, err)
	assertLedger(t, order, 20000, 25000, -5000, ledger.StatusPaid)
	assert.True(t, order.Overpaid())
	assert.True(t, order.Overpayment.Equal(d(5000)))

	stored, err := store.GetAggregate(ctx, backend.AggregateOrder, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Summary.Balance.Equal(d(-5000)))
	assert.Len(t, stored.Payments, 3)
}

func TestCreatedOrderAppearsOnceInList(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)

	var during []Order
	store.SetHook(func(_ context.Context, op string) error {
		if op == "create_aggregate" {
			during = svc.Snapshot()
		}
		return nil
	})
	order, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)
	store.SetHook(nil)

	require.Len(t, during, 1)
	assert.True(t, during[0].Provisional)
	assert.True(t, optimistic.IsTemporaryID(during[0].ID))
	assert.True(t, during[0].TotalAmount.Equal(d(20000)))

	svc.Wait()
	list := svc.Snapshot()
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)
}

func TestCreateValidationRejectsBeforeNetwork(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	draft := twentyThousandDraft()
	draft.Items[1].Category = ""

	_, err := svc.Create(context.Background(), draft)
	require.ErrorIs(t, err, backend.ErrValidation)
	assert.Equal(t, "items[1].category", backend.FieldOf(err))
	assert.Zero(t, store.Calls("lookup"))
	assert.Empty(t, svc.Snapshot())
}

func TestUnknownStatusIsRejected(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()
	draft := twentyThousandDraft()
	draft.Status = "shipped"

	_, err := svc.Create(ctx, draft)
	require.ErrorIs(t, err, backend.ErrValidation)
	assert.Equal(t, "status", backend.FieldOf(err))

	order, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)
	bad := "shipped"
	_, err = svc.Update(ctx, order.ID, aggregate.Patch{Status: &bad})
	assert.Equal(t, "status", backend.FieldOf(err))

	good := string(StatusDelivered)
	order, err = svc.Update(ctx, order.ID, aggregate.Patch{Status: &good})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, order.Status)
}

func TestItemsCanBeAddedAndRemoved(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()

	order, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)

	order, err = svc.AddItem(ctx, order.ID, aggregate.ItemDraft{Name: "Sticker", Category: "print", Quantity: d(10), UnitPrice: d(200)})
	require.NoError(t, err)
	require.Len(t, order.Items, 3)
	assertLedger(t, order, 22000, 0, 22000, ledger.StatusUnpaid)
	added := order.Items[2]
	assert.Equal(t, order.Items[0].CategoryID, added.CategoryID, "category resolves to the existing record")
	assert.NotEmpty(t, added.ItemRefID)

	order, err = svc.RemoveItem(ctx, order.ID, added.ID)
	require.NoError(t, err)
	assertLedger(t, order, 20000, 0, 20000, ledger.StatusUnpaid)

	_, err = svc.RemoveItem(ctx, order.ID, "missing")
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func TestRemovePaymentRecomputes(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()
	draft := twentyThousandDraft()
	draft.Payments = []aggregate.PaymentDraft{{Amount: d(20000)}}

	order, err := svc.Create(ctx, draft)
	require.NoError(t, err)
	assertLedger(t, order, 20000, 20000, 0, ledger.StatusPaid)

	order, err = svc.RemovePayment(ctx, order.ID, order.Payments[0].ID)
	require.NoError(t, err)
	assertLedger(t, order, 20000, 0, 20000, ledger.StatusUnpaid)
}

func TestUpdateResolvesNewClient(t *testing.T) {
	store := memory.New()
	existing := store.Seed(backend.EntityClient, "Nakato Stores", "")
	svc := newTestService(t, store)
	ctx := context.Background()

	order, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)

	label := "  nakato   stores "
	order, err = svc.Update(ctx, order.ID, aggregate.Patch{Counterparty: &label})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, order.ClientID)
	assert.Equal(t, "nakato stores", order.ClientName)
}

func TestFailedUpdateRefetchesServerState(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()

	order, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)
	svc.Wait()

	store.FailNext("update_aggregate", backend.Wrap(backend.CodeNetwork, "timeout", nil))
	_, err = svc.AddPayment(ctx, order.ID, aggregate.PaymentDraft{Amount: d(1000)})
	require.ErrorIs(t, err, backend.ErrNetwork)

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assertLedger(t, got, 20000, 0, 20000, ledger.StatusUnpaid)
}

func TestFailedDeleteRestoresOrder(t *testing.T) {
	store := memory.New()
	svc := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)
	second, err := svc.Create(ctx, twentyThousandDraft())
	require.NoError(t, err)
	svc.Wait()
	before := svc.Snapshot()
	require.Len(t, before, 2)

	store.FailNext("delete_aggregate", backend.Wrap(backend.CodeServer, "boom", nil))
	require.Error(t, svc.Delete(ctx, first.ID))
	assert.Equal(t, before, svc.Snapshot())

	require.NoError(t, svc.Delete(ctx, second.ID))
	list := svc.Snapshot()
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}
