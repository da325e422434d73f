package backend

import (
	"fmt"
	"strings"
)

// Valid reports whether t is a known aggregate collection.
func (t AggregateType) Valid() bool {
	for _, known := range AggregateTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ValidateAtomic applies the constraints every store enforces on an atomic
// creation request.
func ValidateAtomic(req AtomicRequest) error {
	if !req.Type.Valid() {
		return Validation("type", fmt.Sprintf("unknown aggregate type %q", req.Type))
	}
	if req.Header.Date.IsZero() {
		return Validation("date", "date is required")
	}
	if err := ValidateItems(req.Items); err != nil {
		return err
	}
	return ValidatePayments(req.Payments)
}

// ValidateItems checks quantities, prices and names.
func ValidateItems(items []ItemInput) error {
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return Validation(fmt.Sprintf("items[%d].name", i), "name is required")
		}
		if !it.Quantity.IsPositive() {
			return Validation(fmt.Sprintf("items[%d].quantity", i), "quantity must be greater than zero")
		}
		if it.UnitPrice.IsNegative() {
			return Validation(fmt.Sprintf("items[%d].unit_price", i), "unit price must not be negative")
		}
	}
	return nil
}

// ValidatePayments checks payment amounts.
func ValidatePayments(payments []PaymentInput) error {
	for i, p := range payments {
		if !p.Amount.IsPositive() {
			return Validation(fmt.Sprintf("payments[%d].amount", i), "amount must be greater than zero")
		}
	}
	return nil
}
