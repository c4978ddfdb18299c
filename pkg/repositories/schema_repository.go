package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

type schemaRepository struct{}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository() SchemaRepository {
	return &schemaRepository{}
}

var _ SchemaRepository = (*schemaRepository)(nil)

const schemaColumns = `id, project_id, name, charset, collation, vendor_id, created_at, updated_at, deleted_at`

func (r *schemaRepository) FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Schema, error) {
	query := `SELECT ` + schemaColumns + `
		FROM erd_schemas
		WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`

	s, err := findOne(ctx, scanSchema, query, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return s, nil
}

func (r *schemaRepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Schema, error) {
	query := `SELECT ` + schemaColumns + `
		FROM erd_schemas
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY name`

	schemas, err := findMany(ctx, scanSchema, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	return schemas, nil
}

func (r *schemaRepository) Save(ctx context.Context, s *models.Schema) error {
	if err := stamp(s.ID, models.KindSchema, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}

	query := `
		INSERT INTO erd_schemas (id, project_id, name, charset, collation, vendor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    charset = EXCLUDED.charset,
		    collation = EXCLUDED.collation,
		    vendor_id = EXCLUDED.vendor_id,
		    updated_at = EXCLUDED.updated_at`

	if err := exec(ctx, query, s.ID, s.ProjectID, s.Name, s.Charset, s.Collation, s.VendorID, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	return nil
}

func (r *schemaRepository) SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error {
	return softDelete(ctx, "erd_schemas", models.KindSchema, projectID, id)
}

func scanSchema(row pgx.Row) (*models.Schema, error) {
	var s models.Schema
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Charset, &s.Collation, &s.VendorID,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
