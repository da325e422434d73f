package backend

import "github.com/google/uuid"

// Apply writes the non-nil fields of patch onto r. Derived fields are not
// touched; call Recompute afterwards.
func (r *AggregateRecord) Apply(patch AggregatePatch) {
	if patch.CounterpartyID != nil {
		r.Header.CounterpartyID = *patch.CounterpartyID
	}
	if patch.CounterpartyName != nil {
		r.Header.CounterpartyName = *patch.CounterpartyName
	}
	if patch.Date != nil {
		r.Header.Date = *patch.Date
	}
	if patch.Status != nil {
		r.Header.Status = *patch.Status
	}
	if patch.Title != nil {
		r.Header.Title = *patch.Title
	}
	if patch.Notes != nil {
		r.Notes = append([]string(nil), (*patch.Notes)...)
	}
	if patch.Items != nil {
		r.Items = ItemRecords(*patch.Items)
	}
	if patch.Payments != nil {
		r.Payments = PaymentRecords(*patch.Payments)
	}
}

// ItemRecords converts inputs to stored items, assigning ids where missing.
func ItemRecords(in []ItemInput) []ItemRecord {
	out := make([]ItemRecord, 0, len(in))
	for _, it := range in {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		out = append(out, ItemRecord{ItemInput: it, TotalAmount: it.Quantity.Mul(it.UnitPrice)})
	}
	return out
}

// PaymentRecords assigns ids to payments that lack one.
func PaymentRecords(in []PaymentInput) []PaymentInput {
	out := make([]PaymentInput, 0, len(in))
	for _, p := range in {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		out = append(out, p)
	}
	return out
}
