package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

type columnRepository struct{}

// NewColumnRepository creates a new ColumnRepository.
func NewColumnRepository() ColumnRepository {
	return &columnRepository{}
}

var _ ColumnRepository = (*columnRepository)(nil)

const columnColumns = `id, project_id, table_id, name, data_type, ordinal_position,
	is_nullable, is_auto_increment, comment, created_at, updated_at, deleted_at`

func (r *columnRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Column, error) {
	query := `SELECT ` + columnColumns + `
		FROM erd_columns
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	c, err := findOne(ctx, scanColumn, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return c, nil
}

func (r *columnRepository) FindByTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Column, error) {
	query := `SELECT ` + columnColumns + `
		FROM erd_columns
		WHERE project_id = $1 AND table_id = $2 AND deleted_at IS NULL
		ORDER BY ordinal_position, id`

	columns, err := findMany(ctx, scanColumn, query, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return columns, nil
}

func (r *columnRepository) Save(ctx context.Context, c *models.Column) error {
	if err := stamp(c.ID, models.KindColumn, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_columns (
			id, project_id, table_id, name, data_type, ordinal_position,
			is_nullable, is_auto_increment, comment, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET table_id = EXCLUDED.table_id,
		    name = EXCLUDED.name,
		    data_type = EXCLUDED.data_type,
		    ordinal_position = EXCLUDED.ordinal_position,
		    is_nullable = EXCLUDED.is_nullable,
		    is_auto_increment = EXCLUDED.is_auto_increment,
		    comment = EXCLUDED.comment,
		    updated_at = EXCLUDED.updated_at`

	err := exec(ctx, query,
		c.ID, c.ProjectID, c.TableID, c.Name, c.DataType, c.OrdinalPosition,
		c.IsNullable, c.IsAutoIncrement, c.Comment, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save column: %w", err)
	}
	return nil
}

func (r *columnRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_columns", models.KindColumn, projectID, id)
}

func (r *columnRepository) ExistsByTableAndNameExcludingID(ctx context.Context, projectID uuid.UUID, tableID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM erd_columns
			WHERE project_id = $1 AND table_id = $2 AND name = $3 AND id <> $4 AND deleted_at IS NULL
		)`

	found, err := exists(ctx, query, projectID, tableID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check column name: %w", err)
	}
	return found, nil
}

func scanColumn(row pgx.Row) (*models.Column, error) {
	var c models.Column
	err := row.Scan(
		&c.ID, &c.ProjectID, &c.TableID, &c.Name, &c.DataType, &c.OrdinalPosition,
		&c.IsNullable, &c.IsAutoIncrement, &c.Comment, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
