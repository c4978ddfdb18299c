package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/database"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// findOne runs a single-row query. A missing row is (nil, nil).
func findOne[T any](ctx context.Context, scan func(pgx.Row) (*T, error), query string, args ...any) (*T, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	v, err := scan(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

// findMany runs a list query and scans every row.
func findMany[T any](ctx context.Context, scan func(pgx.Row) (*T, error), query string, args ...any) ([]*T, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

func exec(ctx context.Context, query string, args ...any) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}

func exists(ctx context.Context, query string, args ...any) (bool, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return false, err
	}
	var found bool
	if err := q.QueryRow(ctx, query, args...).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// softDelete stamps deleted_at on one live row of an erd_* table.
func softDelete(ctx context.Context, table string, kind models.EntityKind, projectID uuid.UUID, id string) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`, table)

	result, err := q.Exec(ctx, query, projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind.Label(), err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFound(kind.Label(), id)
	}
	return nil
}

// stamp sets the audit timestamps before an upsert.
func stamp(id string, kind models.EntityKind, createdAt, updatedAt *time.Time) error {
	if id == "" {
		return fmt.Errorf("cannot save %s without an id", kind.Label())
	}
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
	return nil
}
