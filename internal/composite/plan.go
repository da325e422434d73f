// Package composite creates an aggregate together with everything it refers
// to: references are resolved first, then the aggregate, its items and its
// payments are stored in one atomic call.
package composite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// Scheme says how the items of an aggregate type refer to lookup records.
type Scheme struct {
	// ItemEntity is the table item names resolve against. Empty keeps names
	// as free text.
	ItemEntity      backend.EntityType
	RequireCategory bool
	Sizes           bool
	// Statuses lists the accepted header statuses. Empty accepts any.
	Statuses []string
}

// AllowsStatus reports whether status may be stored under s.
func (s Scheme) AllowsStatus(status string) bool {
	if len(s.Statuses) == 0 || status == "" {
		return true
	}
	for _, known := range s.Statuses {
		if known == status {
			return true
		}
	}
	return false
}

// PlannedItem is a line item whose references may still be labels.
type PlannedItem struct {
	Name       string          `json:"name" validate:"required"`
	ItemID     string          `json:"item_id,omitempty"`
	Category   string          `json:"category,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
	Size       string          `json:"size,omitempty"`
	SizeID     string          `json:"size_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity" validate:"decimal_gt0"`
	UnitPrice  decimal.Decimal `json:"unit_price" validate:"decimal_gte0"`
}

// PlannedPayment is a payment recorded with the aggregate. Date and Method
// default to the plan date and cash.
type PlannedPayment struct {
	Amount decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Date   time.Time       `json:"date,omitempty"`
	Method string          `json:"method,omitempty"`
}

// Plan describes one aggregate to create.
type Plan struct {
	Type               backend.AggregateType `json:"type" validate:"required"`
	Scheme             Scheme                `json:"-"`
	CounterpartyEntity backend.EntityType    `json:"-"`
	Counterparty       string                `json:"counterparty" validate:"required_without=CounterpartyID"`
	CounterpartyID     string                `json:"counterparty_id,omitempty"`
	Date               time.Time             `json:"date"`
	Status             string                `json:"status,omitempty"`
	Title              string                `json:"title,omitempty"`
	Notes              []string              `json:"notes,omitempty"`
	Items              []PlannedItem         `json:"items" validate:"min=1,dive"`
	Payments           []PlannedPayment      `json:"payments" validate:"dive"`
}

// DefaultPaymentMethod is used for payments recorded without a method.
const DefaultPaymentMethod = "cash"

// NormalizedPayments returns the plan payments with defaults filled in.
func (p Plan) NormalizedPayments() []backend.PaymentInput {
	out := make([]backend.PaymentInput, 0, len(p.Payments))
	for _, pay := range p.Payments {
		out = append(out, NormalizePayment(pay, p.Date))
	}
	return out
}

// NormalizePayment fills in the date and method of a payment.
func NormalizePayment(p PlannedPayment, date time.Time) backend.PaymentInput {
	in := backend.PaymentInput{Amount: p.Amount, Date: p.Date, Method: p.Method}
	if in.Date.IsZero() {
		in.Date = date
	}
	if in.Method == "" {
		in.Method = DefaultPaymentMethod
	}
	return in
}
