// Package backend describes the persistence collaborator: every call is a
// request/response that either succeeds with record(s) or fails with a typed
// *Error.
package backend

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
)

// EntityType names a lookup table that references resolve against.
type EntityType string

const (
	EntityClient          EntityType = "client"
	EntityCategory        EntityType = "category"
	EntityItem            EntityType = "item"
	EntitySize            EntityType = "size"
	EntitySupplier        EntityType = "supplier"
	EntityMaterial        EntityType = "material"
	EntityExpenseCategory EntityType = "expense_category"
)

// EntityTypes lists every lookup table in display order.
var EntityTypes = []EntityType{
	EntityClient, EntityCategory, EntityItem, EntitySize,
	EntitySupplier, EntityMaterial, EntityExpenseCategory,
}

// Valid reports whether t is a known lookup table.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParentType returns the entity type that scopes t, if any.
func (t EntityType) ParentType() (EntityType, bool) {
	if t == EntityItem {
		return EntityCategory, true
	}
	return "", false
}

// AggregateType names a collection of financial records.
type AggregateType string

const (
	AggregateOrder            AggregateType = "order"
	AggregateMaterialPurchase AggregateType = "material_purchase"
	AggregateExpense          AggregateType = "expense"
)

// AggregateTypes lists every aggregate collection.
var AggregateTypes = []AggregateType{AggregateOrder, AggregateMaterialPurchase, AggregateExpense}

// Record is a row of a lookup table.
type Record struct {
	ID        string     `json:"id"`
	Entity    EntityType `json:"entity"`
	Name      string     `json:"name"`
	ParentID  string     `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Filter narrows a lookup. NameEquals matches case-insensitively;
// NameContains is a case-insensitive substring match.
type Filter struct {
	NameEquals   string
	NameContains string
	ParentID     string
	Limit        int
}

// RecordInput carries the fields of a new lookup record.
type RecordInput struct {
	Name     string
	ParentID string
}

// RecordPatch changes an existing lookup record.
type RecordPatch struct {
	Name     *string
	ParentID *string
}

// Header holds the top-level fields of an aggregate. Each aggregate type uses
// the subset it needs.
type Header struct {
	CounterpartyID   string    `json:"counterparty_id,omitempty"`
	CounterpartyName string    `json:"counterparty_name,omitempty"`
	Date             time.Time `json:"date"`
	Status           string    `json:"status,omitempty"`
	Title            string    `json:"title,omitempty"`
}

// ItemInput is a line item as sent to the store. ID is kept when set.
type ItemInput struct {
	ID           string          `json:"id,omitempty"`
	Name         string          `json:"name"`
	ItemRefID    string          `json:"item_ref_id,omitempty"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	SizeID       string          `json:"size_id,omitempty"`
	SizeName     string          `json:"size_name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// PaymentInput is a payment as sent to the store. ID is kept when set.
type PaymentInput struct {
	ID     string          `json:"id,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Method string          `json:"method"`
}

// NoteInput is a free-text note attached at creation.
type NoteInput struct {
	Text string `json:"text"`
}

// AtomicRequest creates an aggregate, its items, payments and notes in one call.
type AtomicRequest struct {
	Type     AggregateType
	Header   Header
	Items    []ItemInput
	Payments []PaymentInput
	Notes    []NoteInput
}

// ItemRecord is a stored line item.
type ItemRecord struct {
	ItemInput
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// AggregateRecord is the authoritative stored form of an aggregate.
type AggregateRecord struct {
	ID        string         `json:"id"`
	Type      AggregateType  `json:"type"`
	Header    Header         `json:"header"`
	Items     []ItemRecord   `json:"items"`
	Payments  []PaymentInput `json:"payments"`
	Notes     []string       `json:"notes"`
	Summary   ledger.Summary `json:"summary"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AggregatePatch changes an aggregate. Nil fields are left alone; Items and
// Payments replace the whole set when present.
type AggregatePatch struct {
	CounterpartyID   *string
	CounterpartyName *string
	Date             *time.Time
	Status           *string
	Title            *string
	Notes            *[]string
	Items            *[]ItemInput
	Payments         *[]PaymentInput
}

// ListFilter narrows an aggregate listing.
type ListFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Notification is a side-effect record written after a creation.
type Notification struct {
	Kind          string        `json:"kind"`
	AggregateType AggregateType `json:"aggregate_type"`
	AggregateID   string        `json:"aggregate_id"`
	Message       string        `json:"message"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Directory serves the lookup tables.
type Directory interface {
	Lookup(ctx context.Context, entity EntityType, filter Filter) ([]Record, error)
	Create(ctx context.Context, entity EntityType, input RecordInput) (Record, error)
	Update(ctx context.Context, entity EntityType, id string, patch RecordPatch) (Record, error)
	Delete(ctx context.Context, entity EntityType, id string) error
}

// Aggregates serves the financial record collections.
type Aggregates interface {
	CreateAggregateAtomic(ctx context.Context, req AtomicRequest) (string, error)
	GetAggregate(ctx context.Context, typ AggregateType, id string) (AggregateRecord, error)
	ListAggregates(ctx context.Context, typ AggregateType, filter ListFilter) ([]AggregateRecord, error)
	UpdateAggregate(ctx context.Context, typ AggregateType, id string, patch AggregatePatch) (AggregateRecord, error)
	DeleteAggregate(ctx context.Context, typ AggregateType, id string) error
}

// Notifications stores side-effect records.
type Notifications interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// Client is the full persistence collaborator.
type Client interface {
	Directory
	Aggregates
	Notifications
}

// LineItems converts stored items to line items for ledger math.
func (r AggregateRecord) LineItems() []ledger.LineItem {
	out := make([]ledger.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, ledger.LineItem{ID: it.ID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice, TotalAmount: it.TotalAmount})
	}
	return out
}

// LedgerPayments converts stored payments for ledger math.
func (r AggregateRecord) LedgerPayments() []ledger.Payment {
	out := make([]ledger.Payment, 0, len(r.Payments))
	for _, p := range r.Payments {
		out = append(out, ledger.Payment{ID: p.ID, Amount: p.Amount, Date: p.Date, Method: p.Method})
	}
	return out
}

// Recompute refreshes the item totals and the summary from items and payments.
func (r *AggregateRecord) Recompute() {
	for i := range r.Items {
		r.Items[i].TotalAmount = r.Items[i].Quantity.Mul(r.Items[i].UnitPrice)
	}
	r.Summary = ledger.Compute(r.LineItems(), r.LedgerPayments())
}
