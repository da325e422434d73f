package aggregate

import (
	"fmt"
	"time"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

// Patch changes an aggregate. Header fields are replaced when set. Items and
// payments are added or removed one by one; added entries carry their final
// ids.
type Patch struct {
	// Counterparty is a label that is resolved before the patch is applied.
	Counterparty   *string    `json:"counterparty,omitempty"`
	CounterpartyID *string    `json:"counterparty_id,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Title          *string    `json:"title,omitempty"`
	Notes          *[]string  `json:"notes,omitempty"`

	AddItems         []Item           `json:"-"`
	RemoveItemIDs    []string         `json:"-"`
	AddPayments      []ledger.Payment `json:"-"`
	RemovePaymentIDs []string         `json:"-"`
}

func (p Patch) touchesItems() bool {
	return len(p.AddItems) > 0 || len(p.RemoveItemIDs) > 0
}

func (p Patch) touchesPayments() bool {
	return len(p.AddPayments) > 0 || len(p.RemovePaymentIDs) > 0
}

func (p Patch) touchesHeader() bool {
	return p.Counterparty != nil || p.CounterpartyID != nil || p.Date != nil ||
		p.Status != nil || p.Title != nil || p.Notes != nil
}

// apply merges p into base and header. Nothing is derived here.
func (p Patch) apply(base Base, header backend.Header) (Base, backend.Header, error) {
	if p.Counterparty != nil {
		name := shared.NormalizeLabel(*p.Counterparty)
		if name == "" {
			return Base{}, backend.Header{}, backend.Validation("counterparty", "counterparty is required")
		}
		header.CounterpartyName = name
	}
	if p.CounterpartyID != nil {
		header.CounterpartyID = *p.CounterpartyID
	}
	if p.Date != nil {
		if p.Date.IsZero() {
			return Base{}, backend.Header{}, backend.Validation("date", "date is required")
		}
		header.Date = *p.Date
	}
	if p.Status != nil {
		header.Status = *p.Status
	}
	if p.Title != nil {
		header.Title = shared.NormalizeLabel(*p.Title)
	}
	if p.Notes != nil {
		base.Notes = append([]string(nil), (*p.Notes)...)
	}

	items := append([]Item(nil), base.Items...)
	for _, id := range p.RemoveItemIDs {
		i := indexItem(items, id)
		if i < 0 {
			return Base{}, backend.Header{}, backend.NotFound("item", id)
		}
		items = append(items[:i], items[i+1:]...)
	}
	for i, it := range p.AddItems {
		if err := checkItem(it); err != nil {
			return Base{}, backend.Header{}, fmt.Errorf("add item %d: %w", i, err)
		}
		items = append(items, it)
	}
	base.Items = items

	payments := append([]ledger.Payment(nil), base.Payments...)
	for _, id := range p.RemovePaymentIDs {
		i := indexPayment(payments, id)
		if i < 0 {
			return Base{}, backend.Header{}, backend.NotFound("payment", id)
		}
		payments = append(payments[:i], payments[i+1:]...)
	}
	for _, pay := range p.AddPayments {
		if !pay.Amount.IsPositive() {
			return Base{}, backend.Header{}, backend.Validation("amount", "amount must be greater than zero")
		}
		payments = append(payments, pay)
	}
	base.Payments = payments
	return base, header, nil
}

func checkItem(it Item) error {
	return backend.ValidateItems([]backend.ItemInput{it.input()})
}

func indexItem(items []Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func indexPayment(payments []ledger.Payment, id string) int {
	for i, p := range payments {
		if p.ID == id {
			return i
		}
	}
	return -1
}
