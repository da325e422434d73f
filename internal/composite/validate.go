package composite

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// NewValidator returns a validator that reports json field names and knows
// how to check decimal amounts.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	_ = v.RegisterValidation("decimal_gte0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	return v
}

var messages = map[string]string{
	"required":         "is required",
	"required_without": "is required",
	"min":              "needs at least one entry",
	"decimal_gt0":      "must be greater than zero",
	"decimal_gte0":     "must not be negative",
}

// Validate checks plan before anything is resolved or sent. The first
// problem is returned as a VALIDATION_ERROR naming the field.
func Validate(v *validator.Validate, plan Plan) error {
	if !plan.Type.Valid() {
		return backend.Validation("type", fmt.Sprintf("unknown aggregate type %q", plan.Type))
	}
	if err := v.Struct(plan); err != nil {
		return violation(err)
	}
	if plan.Date.IsZero() {
		return backend.Validation("date", "date is required")
	}
	if !plan.Scheme.AllowsStatus(plan.Status) {
		return backend.Validation("status", fmt.Sprintf("unknown status %q", plan.Status))
	}
	for i, it := range plan.Items {
		if err := checkCategory(plan.Scheme, it, fmt.Sprintf("items[%d].", i)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateItem checks a single line item added to an existing aggregate.
func ValidateItem(v *validator.Validate, scheme Scheme, it PlannedItem) error {
	if err := v.Struct(it); err != nil {
		return violation(err)
	}
	return checkCategory(scheme, it, "")
}

// ValidatePayment checks a single payment added to an existing aggregate.
func ValidatePayment(v *validator.Validate, p PlannedPayment) error {
	if err := v.Struct(p); err != nil {
		return violation(err)
	}
	return nil
}

func checkCategory(scheme Scheme, it PlannedItem, prefix string) error {
	if scheme.RequireCategory && strings.TrimSpace(it.Category) == "" && it.CategoryID == "" {
		field := prefix + "category"
		return backend.Validation(field, field+" is required")
	}
	return nil
}

// violation reports the first failed rule as a VALIDATION_ERROR.
func violation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return backend.Wrap(backend.CodeValidation, "invalid input", err)
	}
	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	msg, ok := messages[fe.Tag()]
	if !ok {
		msg = "is invalid"
	}
	return backend.Validation(field, field+" "+msg)
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
