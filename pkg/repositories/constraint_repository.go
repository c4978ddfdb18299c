package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// ============================================================================
// Constraints
// ============================================================================

type constraintRepository struct{}

// NewConstraintRepository creates a new ConstraintRepository.
func NewConstraintRepository() ConstraintRepository {
	return &constraintRepository{}
}

var _ ConstraintRepository = (*constraintRepository)(nil)

const constraintColumns = `id, project_id, table_id, name, kind, check_expr, default_expr, created_at, updated_at, deleted_at`

func (r *constraintRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Constraint, error) {
	query := `SELECT ` + constraintColumns + `
		FROM erd_constraints
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	c, err := findOne(ctx, scanConstraint, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraint: %w", err)
	}
	return c, nil
}

func (r *constraintRepository) FindByTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Constraint, error) {
	query := `SELECT ` + constraintColumns + `
		FROM erd_constraints
		WHERE project_id = $1 AND table_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanConstraint, query, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraints: %w", err)
	}
	return out, nil
}

func (r *constraintRepository) FindPrimaryKeyByTableID(ctx context.Context, projectID uuid.UUID, tableID string) (*models.Constraint, error) {
	query := `SELECT ` + constraintColumns + `
		FROM erd_constraints
		WHERE project_id = $1 AND table_id = $2 AND kind = 'PRIMARY_KEY' AND deleted_at IS NULL
		ORDER BY created_at, id
		LIMIT 1`

	c, err := findOne(ctx, scanConstraint, query, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key: %w", err)
	}
	return c, nil
}

func (r *constraintRepository) Save(ctx context.Context, c *models.Constraint) error {
	if err := stamp(c.ID, models.KindConstraint, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_constraints (id, project_id, table_id, name, kind, check_expr, default_expr, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET table_id = EXCLUDED.table_id,
		    name = EXCLUDED.name,
		    kind = EXCLUDED.kind,
		    check_expr = EXCLUDED.check_expr,
		    default_expr = EXCLUDED.default_expr,
		    updated_at = EXCLUDED.updated_at`

	err := exec(ctx, query, c.ID, c.ProjectID, c.TableID, c.Name, c.Kind, c.CheckExpr, c.DefaultExpr, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save constraint: %w", err)
	}
	return nil
}

func (r *constraintRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_constraints", models.KindConstraint, projectID, id)
}

func (r *constraintRepository) ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM erd_constraints c
			JOIN erd_tables t ON t.id = c.table_id AND t.deleted_at IS NULL
			WHERE c.project_id = $1 AND t.schema_id = $2 AND c.name = $3 AND c.id <> $4
			  AND c.deleted_at IS NULL
		)`

	found, err := exists(ctx, query, projectID, schemaID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check constraint name: %w", err)
	}
	return found, nil
}

func scanConstraint(row pgx.Row) (*models.Constraint, error) {
	var c models.Constraint
	err := row.Scan(&c.ID, &c.ProjectID, &c.TableID, &c.Name, &c.Kind, &c.CheckExpr, &c.DefaultExpr,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ============================================================================
// Constraint columns
// ============================================================================

type constraintColumnRepository struct{}

// NewConstraintColumnRepository creates a new ConstraintColumnRepository.
func NewConstraintColumnRepository() ConstraintColumnRepository {
	return &constraintColumnRepository{}
}

var _ ConstraintColumnRepository = (*constraintColumnRepository)(nil)

const constraintColumnColumns = `id, project_id, constraint_id, column_id, seq_no, created_at, updated_at, deleted_at`

func (r *constraintColumnRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.ConstraintColumn, error) {
	query := `SELECT ` + constraintColumnColumns + `
		FROM erd_constraint_columns
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	cc, err := findOne(ctx, scanConstraintColumn, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraint column: %w", err)
	}
	return cc, nil
}

func (r *constraintColumnRepository) FindByConstraintID(ctx context.Context, projectID uuid.UUID, constraintID string) ([]*models.ConstraintColumn, error) {
	query := `SELECT ` + constraintColumnColumns + `
		FROM erd_constraint_columns
		WHERE project_id = $1 AND constraint_id = $2 AND deleted_at IS NULL
		ORDER BY seq_no, id`

	out, err := findMany(ctx, scanConstraintColumn, query, projectID, constraintID)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraint columns: %w", err)
	}
	return out, nil
}

func (r *constraintColumnRepository) FindByColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.ConstraintColumn, error) {
	query := `SELECT ` + constraintColumnColumns + `
		FROM erd_constraint_columns
		WHERE project_id = $1 AND column_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanConstraintColumn, query, projectID, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraint columns: %w", err)
	}
	return out, nil
}

func (r *constraintColumnRepository) Save(ctx context.Context, cc *models.ConstraintColumn) error {
	if err := stamp(cc.ID, models.KindConstraintColumn, &cc.CreatedAt, &cc.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_constraint_columns (id, project_id, constraint_id, column_id, seq_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET constraint_id = EXCLUDED.constraint_id,
		    column_id = EXCLUDED.column_id,
		    seq_no = EXCLUDED.seq_no,
		    updated_at = EXCLUDED.updated_at`

	err := exec(ctx, query, cc.ID, cc.ProjectID, cc.ConstraintID, cc.ColumnID, cc.SeqNo, cc.CreatedAt, cc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save constraint column: %w", err)
	}
	return nil
}

func (r *constraintColumnRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_constraint_columns", models.KindConstraintColumn, projectID, id)
}

func scanConstraintColumn(row pgx.Row) (*models.ConstraintColumn, error) {
	var cc models.ConstraintColumn
	err := row.Scan(&cc.ID, &cc.ProjectID, &cc.ConstraintID, &cc.ColumnID, &cc.SeqNo,
		&cc.CreatedAt, &cc.UpdatedAt, &cc.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &cc, nil
}
