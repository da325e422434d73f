package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
)

func line(id string, qty, price int64) Item {
	return Item{LineItem: ledger.LineItem{ID: id, Name: "line " + id, Quantity: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(price)}}
}

func pay(id string, amount int64) ledger.Payment {
	return ledger.Payment{ID: id, Amount: decimal.NewFromInt(amount), Method: "cash"}
}

func TestRecalculatedDerivesEverything(t *testing.T) {
	b := Base{
		Items:    []Item{line("a", 2, 100), line("b", 1, 50)},
		Payments: []ledger.Payment{pay("p", 300)},
	}
	b.Items[0].TotalAmount = decimal.NewFromInt(999)

	got := b.Recalculated()
	assert.True(t, got.Items[0].TotalAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(250)))
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(-50)))
	assert.True(t, got.Overpayment.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, ledger.StatusPaid, got.PaymentStatus)
	assert.True(t, b.Items[0].TotalAmount.Equal(decimal.NewFromInt(999)), "receiver is not modified")
}

func TestPatchApply(t *testing.T) {
	base := Base{Items: []Item{line("a", 1, 10), line("b", 2, 10)}, Payments: []ledger.Payment{pay("p1", 5)}}
	header := backend.Header{CounterpartyName: "Old", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	name := "  New   Name "
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	notes := []string{"rush"}
	p := Patch{
		Counterparty:     &name,
		Date:             &date,
		Notes:            &notes,
		AddItems:         []Item{line("c", 3, 10)},
		RemoveItemIDs:    []string{"a"},
		AddPayments:      []ledger.Payment{pay("p2", 7)},
		RemovePaymentIDs: []string{"p1"},
	}
	gotBase, gotHeader, err := p.apply(base, header)
	require.NoError(t, err)

	assert.Equal(t, "New Name", gotHeader.CounterpartyName)
	assert.Equal(t, date, gotHeader.Date)
	assert.Equal(t, []string{"rush"}, gotBase.Notes)
	require.Len(t, gotBase.Items, 2)
	assert.Equal(t, "b", gotBase.Items[0].ID)
	assert.Equal(t, "c", gotBase.Items[1].ID)
	require.Len(t, gotBase.Payments, 1)
	assert.Equal(t, "p2", gotBase.Payments[0].ID)
	assert.Len(t, base.Items, 2, "input is not modified")
	assert.Equal(t, "a", base.Items[0].ID)
}

func TestPatchApplyRejects(t *testing.T) {
	base := Base{Items: []Item{line("a", 1, 10)}}
	blank := "   "
	zeroDate := time.Time{}
	cases := []struct {
		name  string
		patch Patch
		is    error
	}{
		{"blank counterparty", Patch{Counterparty: &blank}, backend.ErrValidation},
		{"zero date", Patch{Date: &zeroDate}, backend.ErrValidation},
		{"unknown item", Patch{RemoveItemIDs: []string{"zz"}}, backend.ErrNotFound},
		{"unknown payment", Patch{RemovePaymentIDs: []string{"zz"}}, backend.ErrNotFound},
		{"bad item", Patch{AddItems: []Item{line("x", 0, 10)}}, backend.ErrValidation},
		{"bad payment", Patch{AddPayments: []ledger.Payment{pay("x", 0)}}, backend.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.patch.apply(base, backend.Header{})
			require.ErrorIs(t, err, tc.is)
		})
	}
}
