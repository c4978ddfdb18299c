package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// ============================================================================
// Indexes
// ============================================================================

type indexRepository struct{}

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository() IndexRepository {
	return &indexRepository{}
}

var _ IndexRepository = (*indexRepository)(nil)

const indexColumns = `id, project_id, table_id, name, index_type, created_at, updated_at, deleted_at`

func (r *indexRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Index, error) {
	query := `SELECT ` + indexColumns + `
		FROM erd_indexes
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	idx, err := findOne(ctx, scanIndex, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get index: %w", err)
	}
	return idx, nil
}

func (r *indexRepository) FindByTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Index, error) {
	query := `SELECT ` + indexColumns + `
		FROM erd_indexes
		WHERE project_id = $1 AND table_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	indexes, err := findMany(ctx, scanIndex, query, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	return indexes, nil
}

func (r *indexRepository) Save(ctx context.Context, idx *models.Index) error {
	if err := stamp(idx.ID, models.KindIndex, &idx.CreatedAt, &idx.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_indexes (id, project_id, table_id, name, index_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET table_id = EXCLUDED.table_id,
		    name = EXCLUDED.name,
		    index_type = EXCLUDED.index_type,
		    updated_at = EXCLUDED.updated_at`

	if err := exec(ctx, query, idx.ID, idx.ProjectID, idx.TableID, idx.Name, idx.Type, idx.CreatedAt, idx.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

func (r *indexRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_indexes", models.KindIndex, projectID, id)
}

func (r *indexRepository) ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM erd_indexes i
			JOIN erd_tables t ON t.id = i.table_id AND t.deleted_at IS NULL
			WHERE i.project_id = $1 AND t.schema_id = $2 AND i.name = $3 AND i.id <> $4
			  AND i.deleted_at IS NULL
		)`

	found, err := exists(ctx, query, projectID, schemaID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check index name: %w", err)
	}
	return found, nil
}

func scanIndex(row pgx.Row) (*models.Index, error) {
	var idx models.Index
	err := row.Scan(&idx.ID, &idx.ProjectID, &idx.TableID, &idx.Name, &idx.Type,
		&idx.CreatedAt, &idx.UpdatedAt, &idx.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// ============================================================================
// Index columns
// ============================================================================

type indexColumnRepository struct{}

// NewIndexColumnRepository creates a new IndexColumnRepository.
func NewIndexColumnRepository() IndexColumnRepository {
	return &indexColumnRepository{}
}

var _ IndexColumnRepository = (*indexColumnRepository)(nil)

const indexColumnColumns = `id, project_id, index_id, column_id, seq_no, sort_direction, created_at, updated_at, deleted_at`

func (r *indexColumnRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.IndexColumn, error) {
	query := `SELECT ` + indexColumnColumns + `
		FROM erd_index_columns
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	ic, err := findOne(ctx, scanIndexColumn, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get index column: %w", err)
	}
	return ic, nil
}

func (r *indexColumnRepository) FindByIndexID(ctx context.Context, projectID uuid.UUID, indexID string) ([]*models.IndexColumn, error) {
	query := `SELECT ` + indexColumnColumns + `
		FROM erd_index_columns
		WHERE project_id = $1 AND index_id = $2 AND deleted_at IS NULL
		ORDER BY seq_no, id`

	out, err := findMany(ctx, scanIndexColumn, query, projectID, indexID)
	if err != nil {
		return nil, fmt.Errorf("failed to list index columns: %w", err)
	}
	return out, nil
}

func (r *indexColumnRepository) FindByColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.IndexColumn, error) {
	query := `SELECT ` + indexColumnColumns + `
		FROM erd_index_columns
		WHERE project_id = $1 AND column_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanIndexColumn, query, projectID, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list index columns: %w", err)
	}
	return out, nil
}

func (r *indexColumnRepository) Save(ctx context.Context, ic *models.IndexColumn) error {
	if err := stamp(ic.ID, models.KindIndexColumn, &ic.CreatedAt, &ic.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_index_columns (id, project_id, index_id, column_id, seq_no, sort_direction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET index_id = EXCLUDED.index_id,
		    column_id = EXCLUDED.column_id,
		    seq_no = EXCLUDED.seq_no,
		    sort_direction = EXCLUDED.sort_direction,
		    updated_at = EXCLUDED.updated_at`

	err := exec(ctx, query, ic.ID, ic.ProjectID, ic.IndexID, ic.ColumnID, ic.SeqNo, ic.SortDirection, ic.CreatedAt, ic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save index column: %w", err)
	}
	return nil
}

func (r *indexColumnRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_index_columns", models.KindIndexColumn, projectID, id)
}

func scanIndexColumn(row pgx.Row) (*models.IndexColumn, error) {
	var ic models.IndexColumn
	err := row.Scan(&ic.ID, &ic.ProjectID, &ic.IndexID, &ic.ColumnID, &ic.SeqNo, &ic.SortDirection,
		&ic.CreatedAt, &ic.UpdatedAt, &ic.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &ic, nil
}
