package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// ============================================================================
// Relationships
// ============================================================================

type relationshipRepository struct{}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository() RelationshipRepository {
	return &relationshipRepository{}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

const relationshipColumns = `id, project_id, src_table_id, tgt_table_id, name, kind, cardinality, created_at, updated_at, deleted_at`

func (r *relationshipRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Relationship, error) {
	query := `SELECT ` + relationshipColumns + `
		FROM erd_relationships
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	rel, err := findOne(ctx, scanRelationship, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return rel, nil
}

func (r *relationshipRepository) FindBySrcTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Relationship, error) {
	query := `SELECT ` + relationshipColumns + `
		FROM erd_relationships
		WHERE project_id = $1 AND src_table_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanRelationship, query, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return out, nil
}

func (r *relationshipRepository) FindByTgtTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Relationship, error) {
	query := `SELECT ` + relationshipColumns + `
		FROM erd_relationships
		WHERE project_id = $1 AND tgt_table_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanRelationship, query, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return out, nil
}

func (r *relationshipRepository) Save(ctx context.Context, rel *models.Relationship) error {
	if err := stamp(rel.ID, models.KindRelationship, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_relationships (id, project_id, src_table_id, tgt_table_id, name, kind, cardinality, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET src_table_id = EXCLUDED.src_table_id,
		    tgt_table_id = EXCLUDED.tgt_table_id,
		    name = EXCLUDED.name,
		    kind = EXCLUDED.kind,
		    cardinality = EXCLUDED.cardinality,
		    updated_at = EXCLUDED.updated_at`

	err := exec(ctx, query, rel.ID, rel.ProjectID, rel.SrcTableID, rel.TgtTableID, rel.Name, rel.Kind, rel.Cardinality,
		rel.CreatedAt, rel.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save relationship: %w", err)
	}
	return nil
}

func (r *relationshipRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_relationships", models.KindRelationship, projectID, id)
}

func (r *relationshipRepository) ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM erd_relationships r
			JOIN erd_tables t ON t.id = r.src_table_id AND t.deleted_at IS NULL
			WHERE r.project_id = $1 AND t.schema_id = $2 AND r.name = $3 AND r.id <> $4
			  AND r.deleted_at IS NULL
		)`

	found, err := exists(ctx, query, projectID, schemaID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check relationship name: %w", err)
	}
	return found, nil
}

func scanRelationship(row pgx.Row) (*models.Relationship, error) {
	var rel models.Relationship
	err := row.Scan(&rel.ID, &rel.ProjectID, &rel.SrcTableID, &rel.TgtTableID, &rel.Name, &rel.Kind, &rel.Cardinality,
		&rel.CreatedAt, &rel.UpdatedAt, &rel.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// ============================================================================
// Relationship columns
// ============================================================================

type relationshipColumnRepository struct{}

// NewRelationshipColumnRepository creates a new RelationshipColumnRepository.
func NewRelationshipColumnRepository() RelationshipColumnRepository {
	return &relationshipColumnRepository{}
}

var _ RelationshipColumnRepository = (*relationshipColumnRepository)(nil)

const relationshipColumnColumns = `id, project_id, relationship_id, fk_column_id, ref_column_id, seq_no, created_at, updated_at, deleted_at`

func (r *relationshipColumnRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.RelationshipColumn, error) {
	query := `SELECT ` + relationshipColumnColumns + `
		FROM erd_relationship_columns
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	rc, err := findOne(ctx, scanRelationshipColumn, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship column: %w", err)
	}
	return rc, nil
}

func (r *relationshipColumnRepository) FindByRelationshipID(ctx context.Context, projectID uuid.UUID, relationshipID string) ([]*models.RelationshipColumn, error) {
	query := `SELECT ` + relationshipColumnColumns + `
		FROM erd_relationship_columns
		WHERE project_id = $1 AND relationship_id = $2 AND deleted_at IS NULL
		ORDER BY seq_no, id`

	out, err := findMany(ctx, scanRelationshipColumn, query, projectID, relationshipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	return out, nil
}

func (r *relationshipColumnRepository) FindByFkColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.RelationshipColumn, error) {
	query := `SELECT ` + relationshipColumnColumns + `
		FROM erd_relationship_columns
		WHERE project_id = $1 AND fk_column_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanRelationshipColumn, query, projectID, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	return out, nil
}

func (r *relationshipColumnRepository) FindByRefColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.RelationshipColumn, error) {
	query := `SELECT ` + relationshipColumnColumns + `
		FROM erd_relationship_columns
		WHERE project_id = $1 AND ref_column_id = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`

	out, err := findMany(ctx, scanRelationshipColumn, query, projectID, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	return out, nil
}

func (r *relationshipColumnRepository) Save(ctx context.Context, rc *models.RelationshipColumn) error {
	if err := stamp(rc.ID, models.KindRelationshipColumn, &rc.CreatedAt, &rc.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_relationship_columns (id, project_id, relationship_id, fk_column_id, ref_column_id, seq_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET relationship_id = EXCLUDED.relationship_id,
		    fk_column_id = EXCLUDED.fk_column_id,
		    ref_column_id = EXCLUDED.ref_column_id,
		    seq_no = EXCLUDED.seq_no,
		    updated_at = EXCLUDED.updated_at`

	err := exec(ctx, query, rc.ID, rc.ProjectID, rc.RelationshipID, rc.FkColumnID, rc.RefColumnID, rc.SeqNo,
		rc.CreatedAt, rc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save relationship column: %w", err)
	}
	return nil
}

func (r *relationshipColumnRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_relationship_columns", models.KindRelationshipColumn, projectID, id)
}

func scanRelationshipColumn(row pgx.Row) (*models.RelationshipColumn, error) {
	var rc models.RelationshipColumn
	err := row.Scan(&rc.ID, &rc.ProjectID, &rc.RelationshipID, &rc.FkColumnID, &rc.RefColumnID, &rc.SeqNo,
		&rc.CreatedAt, &rc.UpdatedAt, &rc.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}
