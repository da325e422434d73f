// Package purchases tracks material bought from suppliers and what has been
// paid for it.
package purchases

import (
	"time"

	"github.com/Gvain-jona/ivan-test-sub005/internal/aggregate"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
)

// MaterialPurchase is a purchase from one supplier.
type MaterialPurchase struct {
	aggregate.Base
	SupplierID   string    `json:"supplier_id"`
	SupplierName string    `json:"supplier_name"`
	Date         time.Time `json:"date"`
	// Material summarises what was bought.
	Material string `json:"material,omitempty"`
}

func (p MaterialPurchase) EntityID() string { return p.ID }

func (p MaterialPurchase) WithTemporaryID(id string) MaterialPurchase {
	p.ID = id
	p.Provisional = true
	return p
}

func (p MaterialPurchase) Recalculated() MaterialPurchase {
	p.Base = p.Base.Recalculated()
	return p
}

// Draft is the input for a new purchase. Item names are materials.
type Draft struct {
	Supplier   string                   `json:"supplier"`
	SupplierID string                   `json:"supplier_id,omitempty"`
	Date       time.Time                `json:"date"`
	Material   string                   `json:"material,omitempty"`
	Notes      []string                 `json:"notes,omitempty"`
	Items      []aggregate.ItemDraft    `json:"items"`
	Payments   []aggregate.PaymentDraft `json:"payments,omitempty"`
}

// Service manages the purchase collection.
type Service = aggregate.Service[MaterialPurchase, Draft]

// Handler serves purchases over HTTP.
type Handler = aggregate.Handler[MaterialPurchase, Draft]

// Kind describes the material purchase collection.
func Kind() aggregate.Kind[MaterialPurchase, Draft] {
	return aggregate.Kind[MaterialPurchase, Draft]{
		Type:         backend.AggregateMaterialPurchase,
		Name:         "material_purchases",
		Counterparty: backend.EntitySupplier,
		Scheme:       composite.Scheme{ItemEntity: backend.EntityMaterial},
		Plan: func(d Draft) composite.Plan {
			return composite.Plan{
				Counterparty:   d.Supplier,
				CounterpartyID: d.SupplierID,
				Date:           d.Date,
				Title:          d.Material,
				Notes:          d.Notes,
				Items:          d.Items,
				Payments:       d.Payments,
			}
		},
		Build: func(base aggregate.Base, h backend.Header) MaterialPurchase {
			return MaterialPurchase{
				Base:         base,
				SupplierID:   h.CounterpartyID,
				SupplierName: h.CounterpartyName,
				Date:         h.Date,
				Material:     h.Title,
			}
		},
		Split: func(p MaterialPurchase) (aggregate.Base, backend.Header) {
			return p.Base, backend.Header{
				CounterpartyID:   p.SupplierID,
				CounterpartyName: p.SupplierName,
				Date:             p.Date,
				Title:            p.Material,
			}
		},
	}
}

// NewService wires the purchase collection.
func NewService(client backend.Aggregates, creator *composite.Creator, opts aggregate.Options) *Service {
	return aggregate.NewService(Kind(), client, creator, opts)
}
