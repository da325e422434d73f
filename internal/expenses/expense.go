// Package expenses tracks business expenses by expense category.
package expenses

import (
	"time"

	"github.com/Gvain-jona/ivan-test-sub005/internal/aggregate"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
)

type Expense struct {
	aggregate.Base
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Date         time.Time `json:"date"`
	Description  string    `json:"description,omitempty"`
}

func (e Expense) EntityID() string { return e.ID }

func (e Expense) WithTemporaryID(id string) Expense {
	e.ID = id
	e.Provisional = true
	return e
}

func (e Expense) Recalculated() Expense {
	e.Base = e.Base.Recalculated()
	return e
}

// Draft is the input for a new expense. Items are free text.
type Draft struct {
	Category    string                   `json:"category"`
	CategoryID  string                   `json:"category_id,omitempty"`
	Date        time.Time                `json:"date"`
	Description string                   `json:"description,omitempty"`
	Notes       []string                 `json:"notes,omitempty"`
	Items       []aggregate.ItemDraft    `json:"items"`
	Payments    []aggregate.PaymentDraft `json:"payments,omitempty"`
}

type Service = aggregate.Service[Expense, Draft]

type Handler = aggregate.Handler[Expense, Draft]

// Kind describes the expense collection.
func Kind() aggregate.Kind[Expense, Draft] {
	return aggregate.Kind[Expense, Draft]{
		Type:         backend.AggregateExpense,
		Name:         "expenses",
		Counterparty: backend.EntityExpenseCategory,
		Plan: func(d Draft) composite.Plan {
			return composite.Plan{
				Counterparty:   d.Category,
				CounterpartyID: d.CategoryID,
				Date:           d.Date,
				Title:          d.Description,
				Notes:          d.Notes,
				Items:          d.Items,
				Payments:       d.Payments,
			}
		},
		Build: func(base aggregate.Base, h backend.Header) Expense {
			return Expense{
				Base:         base,
				CategoryID:   h.CounterpartyID,
				CategoryName: h.CounterpartyName,
				Date:         h.Date,
				Description:  h.Title,
			}
		},
		Split: func(e Expense) (aggregate.Base, backend.Header) {
			return e.Base, backend.Header{
				CounterpartyID:   e.CategoryID,
				CounterpartyName: e.CategoryName,
				Date:             e.Date,
				Title:            e.Description,
			}
		},
	}
}

func NewService(client backend.Aggregates, creator *composite.Creator, opts aggregate.Options) *Service {
	return aggregate.NewService(Kind(), client, creator, opts)
}
