package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-erd/pkg/database"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// Every port follows the same conventions:
//   - FindByID returns (nil, nil) when the row is absent or soft-deleted.
//   - Find-by-parent lists only live rows, link rows ordered by seq_no.
//   - Save inserts or updates by id; the id must already be assigned.
//   - SoftDeleteByID stamps deleted_at and returns a NotFoundError when nothing live matched.

// SchemaRepository provides data access for schemas.
type SchemaRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Schema, error)
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Schema, error)
	Save(ctx context.Context, schema *models.Schema) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
}

// TableRepository provides data access for tables.
type TableRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Table, error)
	FindBySchemaID(ctx context.Context, projectID uuid.UUID, schemaID string) ([]*models.Table, error)
	Save(ctx context.Context, table *models.Table) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
	ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error)
	// LockForUpdate holds a row lock on the table until the surrounding transaction ends.
	LockForUpdate(ctx context.Context, projectID uuid.UUID, id string) error
}

// ColumnRepository provides data access for columns.
type ColumnRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Column, error)
	// FindByTableID returns live columns ordered by ordinal position.
	FindByTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Column, error)
	Save(ctx context.Context, column *models.Column) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
	ExistsByTableAndNameExcludingID(ctx context.Context, projectID uuid.UUID, tableID, name, excludeID string) (bool, error)
}

// IndexRepository provides data access for indexes.
type IndexRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Index, error)
	FindByTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Index, error)
	Save(ctx context.Context, index *models.Index) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
	ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error)
}

// IndexColumnRepository provides data access for index columns.
type IndexColumnRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.IndexColumn, error)
	FindByIndexID(ctx context.Context, projectID uuid.UUID, indexID string) ([]*models.IndexColumn, error)
	FindByColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.IndexColumn, error)
	Save(ctx context.Context, ic *models.IndexColumn) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
}

// ConstraintRepository provides data access for constraints.
type ConstraintRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Constraint, error)
	FindByTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Constraint, error)
	// FindPrimaryKeyByTableID returns the table's PRIMARY_KEY constraint or (nil, nil).
	FindPrimaryKeyByTableID(ctx context.Context, projectID uuid.UUID, tableID string) (*models.Constraint, error)
	Save(ctx context.Context, constraint *models.Constraint) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
	ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error)
}

// ConstraintColumnRepository provides data access for constraint columns.
type ConstraintColumnRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.ConstraintColumn, error)
	FindByConstraintID(ctx context.Context, projectID uuid.UUID, constraintID string) ([]*models.ConstraintColumn, error)
	FindByColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.ConstraintColumn, error)
	Save(ctx context.Context, cc *models.ConstraintColumn) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
}

// RelationshipRepository provides data access for relationships.
type RelationshipRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.Relationship, error)
	FindBySrcTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Relationship, error)
	FindByTgtTableID(ctx context.Context, projectID uuid.UUID, tableID string) ([]*models.Relationship, error)
	Save(ctx context.Context, rel *models.Relationship) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
	ExistsBySchemaAndNameExcludingID(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error)
}

// RelationshipColumnRepository provides data access for relationship columns.
type RelationshipColumnRepository interface {
	FindByID(ctx context.Context, projectID uuid.UUID, id string) (*models.RelationshipColumn, error)
	FindByRelationshipID(ctx context.Context, projectID uuid.UUID, relationshipID string) ([]*models.RelationshipColumn, error)
	FindByFkColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.RelationshipColumn, error)
	FindByRefColumnID(ctx context.Context, projectID uuid.UUID, columnID string) ([]*models.RelationshipColumn, error)
	Save(ctx context.Context, rc *models.RelationshipColumn) error
	SoftDeleteByID(ctx context.Context, projectID uuid.UUID, id string) error
}

// Ports bundles every repository with the transaction manager that scopes them.
type Ports struct {
	Schemas             SchemaRepository
	Tables              TableRepository
	Columns             ColumnRepository
	Indexes             IndexRepository
	IndexColumns        IndexColumnRepository
	Constraints         ConstraintRepository
	ConstraintColumns   ConstraintColumnRepository
	Relationships       RelationshipRepository
	RelationshipColumns RelationshipColumnRepository
	Tx                  database.TxManager
}

// NewPostgresPorts wires the pgx-backed repositories. They read the transaction or
// tenant connection from the context, so one set serves every request.
func NewPostgresPorts() *Ports {
	return &Ports{
		Schemas:             NewSchemaRepository(),
		Tables:              NewTableRepository(),
		Columns:             NewColumnRepository(),
		Indexes:             NewIndexRepository(),
		IndexColumns:        NewIndexColumnRepository(),
		Constraints:         NewConstraintRepository(),
		ConstraintColumns:   NewConstraintColumnRepository(),
		Relationships:       NewRelationshipRepository(),
		RelationshipColumns: NewRelationshipColumnRepository(),
		Tx:                  database.NewPgTxManager(),
	}
}
