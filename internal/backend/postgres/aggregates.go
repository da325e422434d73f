package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
)

const aggregateColumns = `id, type, counterparty_id, counterparty_name, occurred_on, status, title, notes,
payment_status, created_at, updated_at`

// CreateAggregateAtomic implements backend.Aggregates inside one transaction.
// Derived amounts are recomputed here; nothing the caller sends for them is
// trusted.
func (s *Store) CreateAggregateAtomic(ctx context.Context, req backend.AtomicRequest) (string, error) {
	if err := backend.ValidateAtomic(req); err != nil {
		return "", err
	}
	rec := backend.AggregateRecord{
		Type:     req.Type,
		Header:   req.Header,
		Items:    backend.ItemRecords(req.Items),
		Payments: backend.PaymentRecords(req.Payments),
		Notes:    make([]string, 0, len(req.Notes)),
	}
	for _, n := range req.Notes {
		rec.Notes = append(rec.Notes, n.Text)
	}
	rec.Recompute()

	notes, err := json.Marshal(rec.Notes)
	if err != nil {
		return "", fmt.Errorf("backend/postgres: encode notes: %w", err)
	}
	var id string
	err = s.withTx(ctx, func(tx *Store) error {
		err := tx.db.QueryRow(ctx, `INSERT INTO aggregates
(type, counterparty_id, counterparty_name, occurred_on, status, title, notes, total_amount, amount_paid, balance, payment_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
			string(rec.Type), rec.Header.CounterpartyID, rec.Header.CounterpartyName, rec.Header.Date,
			rec.Header.Status, rec.Header.Title, notes,
			rec.Summary.TotalAmount, rec.Summary.AmountPaid, rec.Summary.Balance, string(rec.Summary.PaymentStatus),
		).Scan(&id)
		if err != nil {
			return err
		}
		if err := tx.insertItems(ctx, id, rec.Items); err != nil {
			return err
		}
		return tx.insertPayments(ctx, id, rec.Payments)
	})
	if err != nil {
		return "", mapError(err, string(req.Type), "")
	}
	return id, nil
}

func (s *Store) insertItems(ctx context.Context, aggregateID string, items []backend.ItemRecord) error {
	for i, it := range items {
		_, err := s.db.Exec(ctx, `INSERT INTO aggregate_items
(id, aggregate_id, position, name, item_ref_id, category_id, category_name, size_id, size_name, quantity, unit_price, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			it.ID, aggregateID, i, it.Name, it.ItemRefID, it.CategoryID, it.CategoryName, it.SizeID, it.SizeName,
			it.Quantity, it.UnitPrice, it.TotalAmount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertPayments(ctx context.Context, aggregateID string, payments []backend.PaymentInput) error {
	for i, p := range payments {
		_, err := s.db.Exec(ctx, `INSERT INTO aggregate_payments (id, aggregate_id, position, amount, paid_on, method)
VALUES ($1, $2, $3, $4, $5, $6)`, p.ID, aggregateID, i, p.Amount, p.Date, p.Method)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetAggregate implements backend.Aggregates.
func (s *Store) GetAggregate(ctx context.Context, typ backend.AggregateType, id string) (backend.AggregateRecord, error) {
	rec, err := s.getAggregate(ctx, typ, id, false)
	if err != nil {
		return backend.AggregateRecord{}, mapError(err, string(typ), id)
	}
	return rec, nil
}

func (s *Store) getAggregate(ctx context.Context, typ backend.AggregateType, id string, lock bool) (backend.AggregateRecord, error) {
	query := `SELECT ` + aggregateColumns + ` FROM aggregates WHERE id = $1 AND type = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	rec, err := scanAggregate(s.db.QueryRow(ctx, query, id, string(typ)))
	if err != nil {
		return backend.AggregateRecord{}, err
	}
	recs := []*backend.AggregateRecord{&rec}
	if err := s.loadChildren(ctx, recs); err != nil {
		return backend.AggregateRecord{}, err
	}
	return rec, nil
}

// ListAggregates implements backend.Aggregates. Newest first.
func (s *Store) ListAggregates(ctx context.Context, typ backend.AggregateType, filter backend.ListFilter) ([]backend.AggregateRecord, error) {
	conditions := []string{"type = $1"}
	args := []interface{}{string(typ)}
	argPos := 2
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_on >= $%d", argPos))
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_on <= $%d", argPos))
		args = append(args, *filter.To)
		argPos++
	}
	query := `SELECT ` + aggregateColumns + ` FROM aggregates WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, string(typ), "")
	}
	out := make([]backend.AggregateRecord, 0)
	for rows.Next() {
		rec, err := scanAggregate(rows)
		if err != nil {
			rows.Close()
			return nil, mapError(err, string(typ), "")
		}
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapError(err, string(typ), "")
	}

	ptrs := make([]*backend.AggregateRecord, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := s.loadChildren(ctx, ptrs); err != nil {
		return nil, mapError(err, string(typ), "")
	}
	return out, nil
}

func scanAggregate(row pgx.Row) (backend.AggregateRecord, error) {
	var rec backend.AggregateRecord
	var typ, status string
	var notes []byte
	err := row.Scan(&rec.ID, &typ, &rec.Header.CounterpartyID, &rec.Header.CounterpartyName, &rec.Header.Date,
		&rec.Header.Status, &rec.Header.Title, &notes, &status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return backend.AggregateRecord{}, err
	}
	rec.Type = backend.AggregateType(typ)
	rec.Summary.PaymentStatus = ledger.PaymentStatus(status)
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &rec.Notes); err != nil {
			return backend.AggregateRecord{}, fmt.Errorf("backend/postgres: decode notes: %w", err)
		}
	}
	return rec, nil
}

// loadChildren fills items and payments for recs in two queries and
// recomputes their summaries.
func (s *Store) loadChildren(ctx context.Context, recs []*backend.AggregateRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]string, len(recs))
	byID := make(map[string]*backend.AggregateRecord, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
		byID[r.ID] = r
		r.Items = []backend.ItemRecord{}
		r.Payments = []backend.PaymentInput{}
	}

	rows, err := s.db.Query(ctx, `SELECT aggregate_id, id, name, item_ref_id, category_id, category_name, size_id, size_name,
quantity, unit_price, total_amount FROM aggregate_items WHERE aggregate_id = ANY($1) ORDER BY aggregate_id, position`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var aggID string
		var it backend.ItemRecord
		if err := rows.Scan(&aggID, &it.ID, &it.Name, &it.ItemRefID, &it.CategoryID, &it.CategoryName,
			&it.SizeID, &it.SizeName, &it.Quantity, &it.UnitPrice, &it.TotalAmount); err != nil {
			rows.Close()
			return err
		}
		if r, ok := byID[aggID]; ok {
			r.Items = append(r.Items, it)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(ctx, `SELECT aggregate_id, id, amount, paid_on, method
FROM aggregate_payments WHERE aggregate_id = ANY($1) ORDER BY aggregate_id, position`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var aggID string
		var p backend.PaymentInput
		if err := rows.Scan(&aggID, &p.ID, &p.Amount, &p.Date, &p.Method); err != nil {
			rows.Close()
			return err
		}
		if r, ok := byID[aggID]; ok {
			r.Payments = append(r.Payments, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range recs {
		r.Recompute()
	}
	return nil
}

// UpdateAggregate implements backend.Aggregates. Items and payments are
// replaced wholesale when the patch carries them.
func (s *Store) UpdateAggregate(ctx context.Context, typ backend.AggregateType, id string, patch backend.AggregatePatch) (backend.AggregateRecord, error) {
	if patch.Items != nil {
		if err := backend.ValidateItems(*patch.Items); err != nil {
			return backend.AggregateRecord{}, err
		}
	}
	if patch.Payments != nil {
		if err := backend.ValidatePayments(*patch.Payments); err != nil {
			return backend.AggregateRecord{}, err
		}
	}

	var out backend.AggregateRecord
	err := s.withTx(ctx, func(tx *Store) error {
		rec, err := tx.getAggregate(ctx, typ, id, true)
		if err != nil {
			return err
		}
		rec.Apply(patch)
		rec.Recompute()
		notes, err := json.Marshal(rec.Notes)
		if err != nil {
			return fmt.Errorf("backend/postgres: encode notes: %w", err)
		}
		_, err = tx.db.Exec(ctx, `UPDATE aggregates SET counterparty_id = $3, counterparty_name = $4, occurred_on = $5,
status = $6, title = $7, notes = $8, total_amount = $9, amount_paid = $10, balance = $11, payment_status = $12,
updated_at = $13 WHERE id = $1 AND type = $2`,
			id, string(typ), rec.Header.CounterpartyID, rec.Header.CounterpartyName, rec.Header.Date,
			rec.Header.Status, rec.Header.Title, notes, rec.Summary.TotalAmount, rec.Summary.AmountPaid,
			rec.Summary.Balance, string(rec.Summary.PaymentStatus), time.Now().UTC())
		if err != nil {
			return err
		}
		if patch.Items != nil {
			if _, err := tx.db.Exec(ctx, `DELETE FROM aggregate_items WHERE aggregate_id = $1`, id); err != nil {
				return err
			}
			if err := tx.insertItems(ctx, id, rec.Items); err != nil {
				return err
			}
		}
		if patch.Payments != nil {
			if _, err := tx.db.Exec(ctx, `DELETE FROM aggregate_payments WHERE aggregate_id = $1`, id); err != nil {
				return err
			}
			if err := tx.insertPayments(ctx, id, rec.Payments); err != nil {
				return err
			}
		}
		out, err = tx.getAggregate(ctx, typ, id, false)
		return err
	})
	if err != nil {
		return backend.AggregateRecord{}, mapError(err, string(typ), id)
	}
	return out, nil
}

// DeleteAggregate implements backend.Aggregates.
func (s *Store) DeleteAggregate(ctx context.Context, typ backend.AggregateType, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM aggregates WHERE id = $1 AND type = $2`, id, string(typ))
	if err != nil {
		return mapError(err, string(typ), id)
	}
	if tag.RowsAffected() == 0 {
		return backend.NotFound(string(typ), id)
	}
	return nil
}
