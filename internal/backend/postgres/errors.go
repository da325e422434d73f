package postgres

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// SQLSTATE codes the store maps onto backend codes.
const (
	sqlUniqueViolation     = "23505"
	sqlForeignKeyViolation = "23503"
	sqlNotNullViolation    = "23502"
	sqlCheckViolation      = "23514"
	sqlInsufficientPriv    = "42501"
)

// mapError converts driver errors into *backend.Error. what names the record
// kind for NOT_FOUND messages.
func mapError(err error, what, id string) error {
	if err == nil {
		return nil
	}
	var be *backend.Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return backend.NotFound(what, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlUniqueViolation:
			return backend.Wrap(backend.CodeDuplicate, pgErr.Message, err)
		case sqlForeignKeyViolation, sqlNotNullViolation, sqlCheckViolation:
			return &backend.Error{Code: backend.CodeValidation, Message: pgErr.Message, Field: fieldOf(pgErr), Err: err}
		case sqlInsufficientPriv:
			return backend.Wrap(backend.CodePermissionDenied, pgErr.Message, err)
		default:
			return backend.Wrap(backend.CodeServer, pgErr.Message, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return backend.Wrap(backend.CodeNetwork, "database unavailable", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return backend.Wrap(backend.CodeNetwork, "database unavailable", err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return backend.Wrap(backend.CodeNetwork, "database unavailable", err)
	}
	return backend.Wrap(backend.CodeServer, err.Error(), err)
}

// fieldOf picks the most specific field name a constraint violation exposes.
func fieldOf(pgErr *pgconn.PgError) string {
	switch {
	case pgErr.ColumnName != "":
		return pgErr.ColumnName
	case pgErr.ConstraintName != "":
		if f, ok := constraintFields[pgErr.ConstraintName]; ok {
			return f
		}
		return pgErr.ConstraintName
	default:
		return ""
	}
}

var constraintFields = map[string]string{
	"lookup_records_parent_fk":      "parent_id",
	"lookup_records_name_check":     "name",
	"aggregate_items_quantity_chk":  "quantity",
	"aggregate_items_price_chk":     "unit_price",
	"aggregate_payments_amount_chk": "amount",
	"aggregates_type_chk":           "type",
}
