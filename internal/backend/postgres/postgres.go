// Package postgres implements backend.Client on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/platform/db"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is the pgx backed backend.
type Store struct {
	db   dbtx
	pool *pgxpool.Pool
}

// New constructs a Store on top of an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

func (s *Store) withTx(ctx context.Context, fn func(*Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx, pool: s.pool})
	})
}

// Lookup implements backend.Directory.
func (s *Store) Lookup(ctx context.Context, entity backend.EntityType, filter backend.Filter) ([]backend.Record, error) {
	if !entity.Valid() {
		return nil, backend.Validation("entity", fmt.Sprintf("unknown entity %q", entity))
	}
	conditions := []string{"entity = $1"}
	args := []interface{}{string(entity)}
	argPos := 2

	if filter.NameEquals != "" {
		conditions = append(conditions, fmt.Sprintf("name_folded = $%d", argPos))
		args = append(args, shared.FoldLabel(filter.NameEquals))
		argPos++
	}
	if filter.NameContains != "" {
		conditions = append(conditions, fmt.Sprintf("name_folded LIKE $%d ESCAPE '\\'", argPos))
		args = append(args, "%"+likeEscaper.Replace(shared.FoldLabel(filter.NameContains))+"%")
		argPos++
	}
	if filter.ParentID != "" {
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", argPos))
		args = append(args, filter.ParentID)
		argPos++
	}
	query := `SELECT id, entity, name, COALESCE(parent_id, ''), created_at FROM lookup_records WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY name, created_at`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, string(entity), "")
	}
	defer rows.Close()
	out := make([]backend.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError(err, string(entity), "")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, string(entity), "")
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanRecord(row pgx.Row) (backend.Record, error) {
	var rec backend.Record
	var entity string
	if err := row.Scan(&rec.ID, &entity, &rec.Name, &rec.ParentID, &rec.CreatedAt); err != nil {
		return backend.Record{}, err
	}
	rec.Entity = backend.EntityType(entity)
	return rec, nil
}

// Create implements backend.Directory.
func (s *Store) Create(ctx context.Context, entity backend.EntityType, input backend.RecordInput) (backend.Record, error) {
	if !entity.Valid() {
		return backend.Record{}, backend.Validation("entity", fmt.Sprintf("unknown entity %q", entity))
	}
	name := shared.NormalizeLabel(input.Name)
	if name == "" {
		return backend.Record{}, backend.Validation("name", "name is required")
	}
	if err := s.checkParent(ctx, entity, input.ParentID); err != nil {
		return backend.Record{}, err
	}
	row := s.db.QueryRow(ctx, `INSERT INTO lookup_records (entity, name, name_folded, parent_id)
VALUES ($1, $2, $3, NULLIF($4, ''))
RETURNING id, entity, name, COALESCE(parent_id, ''), created_at`,
		string(entity), name, shared.FoldLabel(name), input.ParentID)
	rec, err := scanRecord(row)
	if err != nil {
		return backend.Record{}, mapError(err, string(entity), "")
	}
	return rec, nil
}

func (s *Store) checkParent(ctx context.Context, entity backend.EntityType, parentID string) error {
	parentType, scoped := entity.ParentType()
	if !scoped || parentID == "" {
		return nil
	}
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT true FROM lookup_records WHERE id = $1 AND entity = $2`, parentID, string(parentType)).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return backend.Validation("parent_id", fmt.Sprintf("%s %s does not exist", parentType, parentID))
		}
		return mapError(err, string(parentType), parentID)
	}
	return nil
}

// Update implements backend.Directory.
func (s *Store) Update(ctx context.Context, entity backend.EntityType, id string, patch backend.RecordPatch) (backend.Record, error) {
	sets := []string{}
	args := []interface{}{id, string(entity)}
	argPos := 3
	if patch.Name != nil {
		name := shared.NormalizeLabel(*patch.Name)
		if name == "" {
			return backend.Record{}, backend.Validation("name", "name is required")
		}
		sets = append(sets, fmt.Sprintf("name = $%d, name_folded = $%d", argPos, argPos+1))
		args = append(args, name, shared.FoldLabel(name))
		argPos += 2
	}
	if patch.ParentID != nil {
		if err := s.checkParent(ctx, entity, *patch.ParentID); err != nil {
			return backend.Record{}, err
		}
		sets = append(sets, fmt.Sprintf("parent_id = NULLIF($%d, '')", argPos))
		args = append(args, *patch.ParentID)
	}
	query := `SELECT id, entity, name, COALESCE(parent_id, ''), created_at FROM lookup_records WHERE id = $1 AND entity = $2`
	if len(sets) > 0 {
		query = `UPDATE lookup_records SET ` + strings.Join(sets, ", ") +
			` WHERE id = $1 AND entity = $2 RETURNING id, entity, name, COALESCE(parent_id, ''), created_at`
	}
	rec, err := scanRecord(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return backend.Record{}, mapError(err, string(entity), id)
	}
	return rec, nil
}

// Delete implements backend.Directory.
func (s *Store) Delete(ctx context.Context, entity backend.EntityType, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM lookup_records WHERE id = $1 AND entity = $2`, id, string(entity))
	if err != nil {
		return mapError(err, string(entity), id)
	}
	if tag.RowsAffected() == 0 {
		return backend.NotFound(string(entity), id)
	}
	return nil
}

// CreateNotification implements backend.Notifications.
func (s *Store) CreateNotification(ctx context.Context, n backend.Notification) error {
	if n.AggregateID == "" {
		return backend.Validation("aggregate_id", "aggregate id is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO notifications (kind, aggregate_type, aggregate_id, message, created_at)
VALUES ($1, $2, $3, $4, $5)`, n.Kind, string(n.AggregateType), n.AggregateID, n.Message, n.CreatedAt)
	return mapError(err, "notification", "")
}

var _ backend.Client = (*Store)(nil)
