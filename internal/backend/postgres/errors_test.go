package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		code  backend.Code
		field string
	}{
		{"unique", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, backend.CodeDuplicate, ""},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "lookup_records_parent_fk"}, backend.CodeValidation, "parent_id"},
		{"not null column", &pgconn.PgError{Code: "23502", ColumnName: "name"}, backend.CodeValidation, "name"},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "aggregate_payments_amount_chk"}, backend.CodeValidation, "amount"},
		{"privilege", &pgconn.PgError{Code: "42501"}, backend.CodePermissionDenied, ""},
		{"other sqlstate", &pgconn.PgError{Code: "40001"}, backend.CodeServer, ""},
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), backend.CodeNotFound, ""},
		{"deadline", context.DeadlineExceeded, backend.CodeNetwork, ""},
		{"plain", errors.New("boom"), backend.CodeServer, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError(tc.err, "order", "o-1")
			require.Error(t, err)
			assert.Equal(t, tc.code, backend.CodeOf(err))
			assert.Equal(t, tc.field, backend.FieldOf(err))
		})
	}
}

func TestMapErrorKeepsTypedErrors(t *testing.T) {
	typed := backend.Validation("items[0].quantity", "must be positive")
	assert.Same(t, typed, mapError(typed, "order", "").(*backend.Error))
	assert.NoError(t, mapError(nil, "order", ""))
}

func TestMapErrorWrapsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505"}
	err := mapError(pgErr, "client", "")

	var got *pgconn.PgError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "23505", got.Code)
}
