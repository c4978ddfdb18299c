package models

import "github.com/google/uuid"

// SnapshotPair carries the client's before/after trees. Both may be nil when the
// command has no side effects for the server to reconcile.
type SnapshotPair struct {
	Before *SchemaSnapshot `json:"before,omitempty" yaml:"before,omitempty"`
	After  *SchemaSnapshot `json:"after,omitempty" yaml:"after,omitempty"`
	// Logical ids the client names directly; they are persisted but never reported as propagated.
	ExcludedColumnIDs             []string `json:"excluded_column_ids,omitempty" yaml:"excluded_column_ids,omitempty"`
	ExcludedRelationshipColumnIDs []string `json:"excluded_relationship_column_ids,omitempty" yaml:"excluded_relationship_column_ids,omitempty"`
}

// HasTrees reports whether an after tree was supplied.
func (p SnapshotPair) HasTrees() bool {
	return p.After != nil
}

// --- Constraint commands ---

// ConstraintColumnInput names one column of a new constraint.
type ConstraintColumnInput struct {
	LogicalID string `json:"id"`
	ColumnID  string `json:"column_id"`
}

// CreateConstraintCommand creates a constraint with an ordered column list.
type CreateConstraintCommand struct {
	ProjectID   uuid.UUID               `json:"-"`
	LogicalID   string                  `json:"id"`
	TableID     string                  `json:"table_id"`
	Name        string                  `json:"name"`
	Kind        ConstraintKind          `json:"kind"`
	CheckExpr   *string                 `json:"check_expr,omitempty"`
	DefaultExpr *string                 `json:"default_expr,omitempty"`
	Columns     []ConstraintColumnInput `json:"columns"`
	SnapshotPair
}

// AddConstraintColumnCommand appends a column to a constraint at SeqNo.
type AddConstraintColumnCommand struct {
	ProjectID    uuid.UUID `json:"-"`
	ConstraintID string    `json:"constraint_id"`
	LogicalID    string    `json:"id"`
	ColumnID     string    `json:"column_id"`
	SeqNo        int       `json:"seq_no"`
	SnapshotPair
}

// RemoveConstraintColumnCommand removes one column membership from a constraint.
type RemoveConstraintColumnCommand struct {
	ProjectID          uuid.UUID `json:"-"`
	ConstraintColumnID string    `json:"constraint_column_id"`
	SnapshotPair
}

// ChangeConstraintExpressionCommand replaces the CHECK or DEFAULT expression.
type ChangeConstraintExpressionCommand struct {
	ProjectID    uuid.UUID `json:"-"`
	ConstraintID string    `json:"constraint_id"`
	Expression   string    `json:"expression"`
	SnapshotPair
}

// --- Relationship commands ---

// RelationshipColumnInput pairs an FK column with the referenced column.
type RelationshipColumnInput struct {
	LogicalID   string `json:"id"`
	FkColumnID  string `json:"fk_column_id"`
	RefColumnID string `json:"ref_column_id"`
}

// CreateRelationshipCommand creates a relationship from SrcTableID to TgtTableID.
// Columns may be empty: FK columns are then created for every target PK column.
type CreateRelationshipCommand struct {
	ProjectID   uuid.UUID                 `json:"-"`
	LogicalID   string                    `json:"id"`
	SrcTableID  string                    `json:"src_table_id"`
	TgtTableID  string                    `json:"tgt_table_id"`
	Name        string                    `json:"name"`
	Kind        RelationshipKind          `json:"kind"`
	Cardinality Cardinality               `json:"cardinality"`
	Columns     []RelationshipColumnInput `json:"columns,omitempty"`
	SnapshotPair
}

// AddRelationshipColumnCommand adds an FK/ref column pair at SeqNo.
type AddRelationshipColumnCommand struct {
	ProjectID      uuid.UUID `json:"-"`
	RelationshipID string    `json:"relationship_id"`
	LogicalID      string    `json:"id"`
	FkColumnID     string    `json:"fk_column_id"`
	RefColumnID    string    `json:"ref_column_id"`
	SeqNo          int       `json:"seq_no"`
	SnapshotPair
}

// RemoveRelationshipColumnCommand removes one FK/ref pair from a relationship.
type RemoveRelationshipColumnCommand struct {
	ProjectID            uuid.UUID `json:"-"`
	RelationshipColumnID string    `json:"relationship_column_id"`
	SnapshotPair
}

// ChangeRelationshipKindCommand switches between IDENTIFYING and NON_IDENTIFYING.
type ChangeRelationshipKindCommand struct {
	ProjectID      uuid.UUID        `json:"-"`
	RelationshipID string           `json:"relationship_id"`
	Kind           RelationshipKind `json:"kind"`
	SnapshotPair
}

// ChangeRelationshipCardinalityCommand updates the cardinality.
type ChangeRelationshipCardinalityCommand struct {
	ProjectID      uuid.UUID   `json:"-"`
	RelationshipID string      `json:"relationship_id"`
	Cardinality    Cardinality `json:"cardinality"`
	SnapshotPair
}

// --- Index commands ---

// IndexColumnInput names one column of a new index.
type IndexColumnInput struct {
	LogicalID     string        `json:"id"`
	ColumnID      string        `json:"column_id"`
	SortDirection SortDirection `json:"sort_direction"`
}

// CreateIndexCommand creates an index with an ordered column list.
type CreateIndexCommand struct {
	ProjectID uuid.UUID          `json:"-"`
	LogicalID string             `json:"id"`
	TableID   string             `json:"table_id"`
	Name      string             `json:"name"`
	Type      IndexType          `json:"type"`
	Columns   []IndexColumnInput `json:"columns"`
	SnapshotPair
}

// AddIndexColumnCommand appends a column to an index at SeqNo.
type AddIndexColumnCommand struct {
	ProjectID     uuid.UUID     `json:"-"`
	IndexID       string        `json:"index_id"`
	LogicalID     string        `json:"id"`
	ColumnID      string        `json:"column_id"`
	SeqNo         int           `json:"seq_no"`
	SortDirection SortDirection `json:"sort_direction"`
	SnapshotPair
}

// RemoveIndexColumnCommand removes one column membership from an index.
type RemoveIndexColumnCommand struct {
	ProjectID     uuid.UUID `json:"-"`
	IndexColumnID string    `json:"index_column_id"`
	SnapshotPair
}

// ChangeIndexColumnSortCommand flips the sort direction of an index column.
type ChangeIndexColumnSortCommand struct {
	ProjectID     uuid.UUID     `json:"-"`
	IndexColumnID string        `json:"index_column_id"`
	SortDirection SortDirection `json:"sort_direction"`
	SnapshotPair
}

// --- Column commands ---

// AddColumnCommand adds a column to a table. A nil OrdinalPosition appends it.
type AddColumnCommand struct {
	ProjectID       uuid.UUID `json:"-"`
	TableID         string    `json:"table_id"`
	LogicalID       string    `json:"id"`
	Name            string    `json:"name"`
	DataType        string    `json:"data_type"`
	IsNullable      bool      `json:"is_nullable"`
	IsAutoIncrement bool      `json:"is_auto_increment"`
	OrdinalPosition *int      `json:"ordinal_position,omitempty"`
	SnapshotPair
}

// MoveColumnCommand moves a column to a new ordinal position within its table.
type MoveColumnCommand struct {
	ProjectID       uuid.UUID `json:"-"`
	ColumnID        string    `json:"column_id"`
	OrdinalPosition int       `json:"ordinal_position"`
	SnapshotPair
}

// ChangeColumnTypeCommand changes a column's data type.
type ChangeColumnTypeCommand struct {
	ProjectID uuid.UUID `json:"-"`
	ColumnID  string    `json:"column_id"`
	DataType  string    `json:"data_type"`
	SnapshotPair
}

// --- Shared commands ---

// RenameCommand renames a column, index, constraint or relationship.
type RenameCommand struct {
	ProjectID uuid.UUID `json:"-"`
	EntityID  string    `json:"entity_id"`
	Name      string    `json:"name"`
	SnapshotPair
}

// DeleteCommand soft-deletes a column, index, constraint or relationship.
type DeleteCommand struct {
	ProjectID uuid.UUID `json:"-"`
	EntityID  string    `json:"entity_id"`
	SnapshotPair
}
