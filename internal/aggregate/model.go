// Package aggregate holds what orders, material purchases and expenses have in
// common: line items, payments, notes and the derived ledger fields, plus a
// generic service and HTTP handler over an optimistic store.
package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
)

// Item is a line item together with the lookup records it refers to.
type Item struct {
	ledger.LineItem
	ItemRefID    string `json:"item_ref_id,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	SizeID       string `json:"size_id,omitempty"`
	SizeName     string `json:"size_name,omitempty"`
}

// Base is the part of every aggregate that LedgerMath works on.
type Base struct {
	ID       string           `json:"id"`
	Items    []Item           `json:"items"`
	Payments []ledger.Payment `json:"payments"`
	Notes    []string         `json:"notes"`
	ledger.Summary
	Overpayment decimal.Decimal `json:"overpayment"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	// Provisional is set while the record exists only locally.
	Provisional bool `json:"provisional"`
}

// LineItems returns the items as ledger lines.
func (b Base) LineItems() []ledger.LineItem {
	out := make([]ledger.LineItem, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.LineItem
	}
	return out
}

// Recalculated returns a copy whose item totals and summary agree with its
// items and payments.
func (b Base) Recalculated() Base {
	items := make([]Item, len(b.Items))
	for i, it := range b.Items {
		it.TotalAmount = it.Total()
		items[i] = it
	}
	b.Items = items
	b.Payments = append([]ledger.Payment(nil), b.Payments...)
	b.Notes = append([]string(nil), b.Notes...)
	b.Summary = ledger.Compute(b.LineItems(), b.Payments)
	b.Overpayment = b.Summary.Overpayment()
	return b
}

// BaseFromRecord converts the stored form.
func BaseFromRecord(rec backend.AggregateRecord) Base {
	b := Base{
		ID:        rec.ID,
		Items:     make([]Item, 0, len(rec.Items)),
		Payments:  rec.LedgerPayments(),
		Notes:     append([]string(nil), rec.Notes...),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	for _, it := range rec.Items {
		b.Items = append(b.Items, itemFromInput(it.ItemInput))
	}
	return b.Recalculated()
}

func itemFromInput(in backend.ItemInput) Item {
	return Item{
		LineItem: ledger.LineItem{
			ID:        in.ID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		},
		ItemRefID:    in.ItemRefID,
		CategoryID:   in.CategoryID,
		CategoryName: in.CategoryName,
		SizeID:       in.SizeID,
		SizeName:     in.SizeName,
	}
}

func (it Item) input() backend.ItemInput {
	return backend.ItemInput{
		ID:           it.ID,
		Name:         it.Name,
		ItemRefID:    it.ItemRefID,
		CategoryID:   it.CategoryID,
		CategoryName: it.CategoryName,
		SizeID:       it.SizeID,
		SizeName:     it.SizeName,
		Quantity:     it.Quantity,
		UnitPrice:    it.UnitPrice,
	}
}

// ItemInputs returns the items in the form the backend stores.
func (b Base) ItemInputs() []backend.ItemInput {
	out := make([]backend.ItemInput, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.input()
	}
	return out
}

// PaymentInputs returns the payments in the form the backend stores.
func (b Base) PaymentInputs() []backend.PaymentInput {
	out := make([]backend.PaymentInput, len(b.Payments))
	for i, p := range b.Payments {
		out[i] = backend.PaymentInput{ID: p.ID, Amount: p.Amount, Date: p.Date, Method: p.Method}
	}
	return out
}
