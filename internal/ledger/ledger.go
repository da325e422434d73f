// Package ledger derives the money fields of an order, material purchase or
// expense from its line items and payments.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus enumerates the derived payment states of an aggregate.
type PaymentStatus string

const (
	StatusUnpaid        PaymentStatus = "unpaid"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusPaid          PaymentStatus = "paid"
)

// LineItem is a priced line owned by its parent aggregate.
type LineItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Total returns quantity * unit price, ignoring the stored TotalAmount.
func (l LineItem) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Payment is money received against (or paid out for) an aggregate.
type Payment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Method string          `json:"method"`
}

// Summary holds the derived fields. None of them is ever stored as
// independently editable truth.
type Summary struct {
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
}

// Overpaid reports whether more was paid than owed.
func (s Summary) Overpaid() bool {
	return s.Balance.IsNegative()
}

// Overpayment returns the excess paid, or zero.
func (s Summary) Overpayment() decimal.Decimal {
	if !s.Overpaid() {
		return decimal.Zero
	}
	return s.Balance.Neg()
}

// Compute derives the summary for a set of items and payments.
func Compute(items []LineItem, payments []Payment) Summary {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Total())
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	return Summary{
		TotalAmount:   total,
		AmountPaid:    paid,
		Balance:       total.Sub(paid),
		PaymentStatus: Status(total, paid),
	}
}

// Status applies the payment status thresholds.
func Status(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case total.IsZero() || paid.IsZero():
		return StatusUnpaid
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

// Normalize returns a copy of items with every TotalAmount re-derived.
func Normalize(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		item.TotalAmount = item.Total()
		out[i] = item
	}
	return out
}
