package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/database"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

type tableRepository struct{}

// NewTableRepository creates a new TableRepository.
func NewTableRepository() TableRepository {
	return &tableRepository{}
}

var _ TableRepository = (*tableRepository)(nil)

const tableColumns = `id, project_id, schema_id, name, options, comment, created_at, updated_at, deleted_at`

func (r *tableRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Table, error) {
	query := `SELECT ` + tableColumns + `
		FROM erd_tables
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	t, err := findOne(ctx, scanTable, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return t, nil
}

func (r *tableRepository) FindBySchemaID(ctx context.Context, projectID uuid.UUID, schemaID string) ([]*models.Table, error) {
	query := `SELECT ` + tableColumns + `
		FROM erd_tables
		WHERE project_id = $1 AND schema_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	tables, err := findMany(ctx, scanTable, query, projectID, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (r *tableRepository) Save(ctx context.Context, t *models.Table) error {
	if err := stamp(t.ID, models.KindTable, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_tables (id, project_id, schema_id, name, options, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET schema_id = EXCLUDED.schema_id,
		    name = EXCLUDED.name,
		    options = EXCLUDED.options,
		    comment = EXCLUDED.comment,
		    updated_at = EXCLUDED.updated_at`

	if err := exec(ctx, query, t.ID, t.ProjectID, t.SchemaID, t.Name, t.Options, t.Comment, t.CreatedAt, t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save table: %w", err)
	}
	return nil
}

func (r *tableRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_tables", models.KindTable, projectID, id)
}

func (r *tableRepository) ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM erd_tables
			WHERE project_id = $1 AND schema_id = $2 AND name = $3 AND id <> $4 AND deleted_at IS NULL
		)`

	found, err := exists(ctx, query, projectID, schemaID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check table name: %w", err)
	}
	return found, nil
}

// LockForUpdate takes a row lock on the table. It must run inside WithinTx or the lock
// is released as soon as the statement finishes.
func (r *tableRepository) LockForUpdate(ctx context.Context, projectID uuid.UUID, id string) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	var locked string
	err = q.QueryRow(ctx, `
		SELECT id FROM erd_tables
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL
		FOR UPDATE`, projectID, id).Scan(&locked)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound(models.KindTable.Label(), id)
		}
		return fmt.Errorf("failed to lock table: %w", err)
	}
	return nil
}

func scanTable(row pgx.Row) (*models.Table, error) {
	var t models.Table
	err := row.Scan(&t.ID, &t.ProjectID, &t.SchemaID, &t.Name, &t.Options, &t.Comment,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
