package models

// IDMappings is the serialized form of a reconciliation map: one
// logical-id -> persisted-id map per entity kind.
type IDMappings struct {
	Schemas             map[string]string `json:"schemas"`
	Tables              map[string]string `json:"tables"`
	Columns             map[string]string `json:"columns"`
	Indexes             map[string]string `json:"indexes"`
	IndexColumns        map[string]string `json:"index_columns"`
	Constraints         map[string]string `json:"constraints"`
	ConstraintColumns   map[string]string `json:"constraint_columns"`
	Relationships       map[string]string `json:"relationships"`
	RelationshipColumns map[string]string `json:"relationship_columns"`
}

// PropagationSource explains why the server touched an entity the client did not name.
type PropagationSource struct {
	SourceType     EntityKind `json:"source_type"`
	SourceID       string     `json:"source_id"`
	SourceColumnID string     `json:"source_column_id,omitempty"`
}

// PropagatedColumn is a column created or modified as a side effect.
type PropagatedColumn struct {
	Column
	PropagationSource
}

// PropagatedConstraint is a constraint created or modified as a side effect.
type PropagatedConstraint struct {
	Constraint
	PropagationSource
}

// PropagatedConstraintColumn is a constraint column created as a side effect.
type PropagatedConstraintColumn struct {
	ConstraintColumn
	PropagationSource
}

// PropagatedIndexColumn is an index column created as a side effect.
type PropagatedIndexColumn struct {
	IndexColumn
	PropagationSource
}

// PropagatedRelationshipColumn is a relationship column created as a side effect.
type PropagatedRelationshipColumn struct {
	RelationshipColumn
	PropagationSource
}

// PropagatedEntities groups every side-effect entity of one command.
type PropagatedEntities struct {
	Columns             []*PropagatedColumn             `json:"columns"`
	Constraints         []*PropagatedConstraint         `json:"constraints"`
	ConstraintColumns   []*PropagatedConstraintColumn   `json:"constraint_columns"`
	IndexColumns        []*PropagatedIndexColumn        `json:"index_columns"`
	RelationshipColumns []*PropagatedRelationshipColumn `json:"relationship_columns"`
}

// IsEmpty reports whether nothing was propagated.
func (p *PropagatedEntities) IsEmpty() bool {
	return len(p.Columns) == 0 && len(p.Constraints) == 0 && len(p.ConstraintColumns) == 0 &&
		len(p.IndexColumns) == 0 && len(p.RelationshipColumns) == 0
}

// CascadeCreatedInfo describes the FK column and relationship column created in a
// relationship's source table when a primary-key column was added to its target.
// The two ExistingConstraint* fields are set only for IDENTIFYING relationships, where the
// new FK column is also appended to the source table's primary key:
// ExistingConstraintColumnID is that new primary-key membership row and
// ExistingConstraintColumnPkColumnID is the parent primary-key column it mirrors.
type CascadeCreatedInfo struct {
	FkColumnID                         string `json:"fk_column_id"`
	FkColumnName                       string `json:"fk_column_name"`
	FkTableID                          string `json:"fk_table_id"`
	RelationshipColumnID               string `json:"relationship_column_id"`
	RelationshipID                     string `json:"relationship_id"`
	ExistingConstraintColumnID         string `json:"existing_constraint_column_id,omitempty"`
	ExistingConstraintColumnPkColumnID string `json:"existing_constraint_column_pk_column_id,omitempty"`
	// PkConstraintID is the source table's primary key the FK column was appended to.
	PkConstraintID string `json:"pk_constraint_id,omitempty"`
	// PkConstraintCreated is true when that primary key did not exist and was created.
	PkConstraintCreated bool `json:"pk_constraint_created,omitempty"`
}

// CascadeRemovedInfo describes links soft-deleted because a primary-key column left its key.
type CascadeRemovedInfo struct {
	RelationshipColumnID string `json:"relationship_column_id"`
	RelationshipID       string `json:"relationship_id"`
	FkTableID            string `json:"fk_table_id"`
	// FkColumnID is set when the FK column became orphaned and was soft-deleted too.
	FkColumnID string `json:"fk_column_id,omitempty"`
}

// MutationResult is the response of every mutation command.
type MutationResult struct {
	// EntityID is the persisted id of the entity the command was about.
	EntityID              string                `json:"entity_id,omitempty"`
	IDMappings            IDMappings            `json:"id_mappings"`
	Propagated            PropagatedEntities    `json:"propagated"`
	CascadeCreatedColumns []*CascadeCreatedInfo `json:"cascade_created_columns,omitempty"`
	CascadeRemoved        []*CascadeRemovedInfo `json:"cascade_removed,omitempty"`
	// DeletedIDs lists entities the command soft-deleted, keyed by kind.
	DeletedIDs map[EntityKind][]string `json:"deleted_ids,omitempty"`
}
