// Package orders tracks client orders: what was ordered, at what price, and
// what the client has paid so far.
package orders

import (
	"time"

	"github.com/Gvain-jona/ivan-test-sub005/internal/aggregate"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every order status.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusDelivered, StatusCancelled}

// Order is a client order with its derived ledger fields.
type Order struct {
	aggregate.Base
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name"`
	Date       time.Time `json:"date"`
	Status     Status    `json:"status"`
}

func (o Order) EntityID() string { return o.ID }

func (o Order) WithTemporaryID(id string) Order {
	o.ID = id
	o.Provisional = true
	return o
}

func (o Order) Recalculated() Order {
	o.Base = o.Base.Recalculated()
	return o
}

// Draft is the input for a new order. Client may be a new name; it is
// created when no client matches.
type Draft struct {
	Client   string                   `json:"client"`
	ClientID string                   `json:"client_id,omitempty"`
	Date     time.Time                `json:"date"`
	Status   Status                   `json:"status,omitempty"`
	Notes    []string                 `json:"notes,omitempty"`
	Items    []aggregate.ItemDraft    `json:"items"`
	Payments []aggregate.PaymentDraft `json:"payments,omitempty"`
}

// Service manages the order collection.
type Service = aggregate.Service[Order, Draft]

// Handler serves orders over HTTP.
type Handler = aggregate.Handler[Order, Draft]

// Kind describes the order collection.
func Kind() aggregate.Kind[Order, Draft] {
	statuses := make([]string, len(Statuses))
	for i, s := range Statuses {
		statuses[i] = string(s)
	}
	return aggregate.Kind[Order, Draft]{
		Type:         backend.AggregateOrder,
		Name:         "orders",
		Counterparty: backend.EntityClient,
		Scheme: composite.Scheme{
			ItemEntity:      backend.EntityItem,
			RequireCategory: true,
			Sizes:           true,
			Statuses:        statuses,
		},
		Plan:  plan,
		Build: build,
		Split: split,
	}
}

// NewService wires the order collection.
func NewService(client backend.Aggregates, creator *composite.Creator, opts aggregate.Options) *Service {
	return aggregate.NewService(Kind(), client, creator, opts)
}

func plan(d Draft) composite.Plan {
	status := d.Status
	if status == "" {
		status = StatusPending
	}
	return composite.Plan{
		Counterparty:   d.Client,
		CounterpartyID: d.ClientID,
		Date:           d.Date,
		Status:         string(status),
		Notes:          d.Notes,
		Items:          d.Items,
		Payments:       d.Payments,
	}
}

func build(base aggregate.Base, h backend.Header) Order {
	return Order{
		Base:       base,
		ClientID:   h.CounterpartyID,
		ClientName: h.CounterpartyName,
		Date:       h.Date,
		Status:     Status(h.Status),
	}
}

func split(o Order) (aggregate.Base, backend.Header) {
	return o.Base, backend.Header{
		CounterpartyID:   o.ClientID,
		CounterpartyName: o.ClientName,
		Date:             o.Date,
		Status:           string(o.Status),
	}
}
