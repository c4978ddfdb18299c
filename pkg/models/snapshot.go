package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ChangeMark tags a snapshot node as unchanged or affected. The mark is supplied by
// the upstream schema validator; the engine never toggles it.
type ChangeMark uint8

const (
	Unchanged ChangeMark = iota
	Affected
)

// IsAffected reports whether the node was flagged as new or changed.
func (m ChangeMark) IsAffected() bool { return m == Affected }

// MarshalJSON encodes the mark as a boolean.
func (m ChangeMark) MarshalJSON() ([]byte, error) {
	return json.Marshal(m == Affected)
}

// UnmarshalJSON decodes the mark from a boolean.
func (m *ChangeMark) UnmarshalJSON(data []byte) error {
	var affected bool
	if err := json.Unmarshal(data, &affected); err != nil {
		return err
	}
	*m = markFromBool(affected)
	return nil
}

// MarshalYAML encodes the mark as a boolean.
func (m ChangeMark) MarshalYAML() (any, error) {
	return m == Affected, nil
}

// UnmarshalYAML decodes the mark from a boolean.
func (m *ChangeMark) UnmarshalYAML(value *yaml.Node) error {
	var affected bool
	if err := value.Decode(&affected); err != nil {
		return err
	}
	*m = markFromBool(affected)
	return nil
}

func markFromBool(affected bool) ChangeMark {
	if affected {
		return Affected
	}
	return Unchanged
}

// SchemaSnapshot is the root of a client-supplied schema tree.
type SchemaSnapshot struct {
	ID        string           `json:"id" yaml:"id"`
	Name      string           `json:"name" yaml:"name"`
	Charset   string           `json:"charset,omitempty" yaml:"charset,omitempty"`
	Collation string           `json:"collation,omitempty" yaml:"collation,omitempty"`
	VendorID  string           `json:"vendor_id,omitempty" yaml:"vendor_id,omitempty"`
	Mark      ChangeMark       `json:"is_affected" yaml:"is_affected"`
	Tables    []*TableSnapshot `json:"tables" yaml:"tables"`
}

// TableSnapshot is a table node with its owned children.
type TableSnapshot struct {
	ID            string                  `json:"id" yaml:"id"`
	SchemaID      string                  `json:"schema_id" yaml:"schema_id"`
	Name          string                  `json:"name" yaml:"name"`
	Options       string                  `json:"options,omitempty" yaml:"options,omitempty"`
	Comment       string                  `json:"comment,omitempty" yaml:"comment,omitempty"`
	Mark          ChangeMark              `json:"is_affected" yaml:"is_affected"`
	Columns       []*ColumnSnapshot       `json:"columns,omitempty" yaml:"columns,omitempty"`
	Indexes       []*IndexSnapshot        `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Constraints   []*ConstraintSnapshot   `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Relationships []*RelationshipSnapshot `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// ColumnSnapshot is a column node.
type ColumnSnapshot struct {
	ID              string     `json:"id" yaml:"id"`
	TableID         string     `json:"table_id" yaml:"table_id"`
	Name            string     `json:"name" yaml:"name"`
	DataType        string     `json:"data_type" yaml:"data_type"`
	OrdinalPosition int        `json:"ordinal_position" yaml:"ordinal_position"`
	IsNullable      bool       `json:"is_nullable" yaml:"is_nullable"`
	IsAutoIncrement bool       `json:"is_auto_increment" yaml:"is_auto_increment"`
	Comment         string     `json:"comment,omitempty" yaml:"comment,omitempty"`
	Mark            ChangeMark `json:"is_affected" yaml:"is_affected"`
}

// IndexSnapshot is an index node with its columns.
type IndexSnapshot struct {
	ID      string                 `json:"id" yaml:"id"`
	TableID string                 `json:"table_id" yaml:"table_id"`
	Name    string                 `json:"name" yaml:"name"`
	Type    IndexType              `json:"type" yaml:"type"`
	Mark    ChangeMark             `json:"is_affected" yaml:"is_affected"`
	Columns []*IndexColumnSnapshot `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// IndexColumnSnapshot is an index-column link node.
type IndexColumnSnapshot struct {
	ID            string        `json:"id" yaml:"id"`
	IndexID       string        `json:"index_id" yaml:"index_id"`
	ColumnID      string        `json:"column_id" yaml:"column_id"`
	SeqNo         int           `json:"seq_no" yaml:"seq_no"`
	SortDirection SortDirection `json:"sort_direction" yaml:"sort_direction"`
	Mark          ChangeMark    `json:"is_affected" yaml:"is_affected"`
}

// ConstraintSnapshot is a constraint node with its columns.
type ConstraintSnapshot struct {
	ID          string                      `json:"id" yaml:"id"`
	TableID     string                      `json:"table_id" yaml:"table_id"`
	Name        string                      `json:"name" yaml:"name"`
	Kind        ConstraintKind              `json:"kind" yaml:"kind"`
	CheckExpr   *string                     `json:"check_expr,omitempty" yaml:"check_expr,omitempty"`
	DefaultExpr *string                     `json:"default_expr,omitempty" yaml:"default_expr,omitempty"`
	Mark        ChangeMark                  `json:"is_affected" yaml:"is_affected"`
	Columns     []*ConstraintColumnSnapshot `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// ConstraintColumnSnapshot is a constraint-column link node.
type ConstraintColumnSnapshot struct {
	ID           string     `json:"id" yaml:"id"`
	ConstraintID string     `json:"constraint_id" yaml:"constraint_id"`
	ColumnID     string     `json:"column_id" yaml:"column_id"`
	SeqNo        int        `json:"seq_no" yaml:"seq_no"`
	Mark         ChangeMark `json:"is_affected" yaml:"is_affected"`
}

// RelationshipSnapshot is a relationship node (anchored at its source table).
type RelationshipSnapshot struct {
	ID          string                        `json:"id" yaml:"id"`
	SrcTableID  string                        `json:"src_table_id" yaml:"src_table_id"`
	TgtTableID  string                        `json:"tgt_table_id" yaml:"tgt_table_id"`
	Name        string                        `json:"name" yaml:"name"`
	Kind        RelationshipKind              `json:"kind" yaml:"kind"`
	Cardinality Cardinality                   `json:"cardinality" yaml:"cardinality"`
	Mark        ChangeMark                    `json:"is_affected" yaml:"is_affected"`
	Columns     []*RelationshipColumnSnapshot `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// RelationshipColumnSnapshot is a relationship-column link node.
type RelationshipColumnSnapshot struct {
	ID             string     `json:"id" yaml:"id"`
	RelationshipID string     `json:"relationship_id" yaml:"relationship_id"`
	FkColumnID     string     `json:"fk_column_id" yaml:"fk_column_id"`
	RefColumnID    string     `json:"ref_column_id" yaml:"ref_column_id"`
	SeqNo          int        `json:"seq_no" yaml:"seq_no"`
	Mark           ChangeMark `json:"is_affected" yaml:"is_affected"`
}

// ============================================================================
// Snapshot <-> entity conversion
// ============================================================================

// ToEntity converts the node into a persistable Schema.
func (s *SchemaSnapshot) ToEntity(projectID uuid.UUID) *Schema {
	return &Schema{ID: s.ID, ProjectID: projectID, Name: s.Name, Charset: s.Charset, Collation: s.Collation, VendorID: s.VendorID}
}

// ToEntity converts the node into a persistable Table.
func (t *TableSnapshot) ToEntity(projectID uuid.UUID) *Table {
	return &Table{ID: t.ID, ProjectID: projectID, SchemaID: t.SchemaID, Name: t.Name, Options: t.Options, Comment: t.Comment}
}

// ToEntity converts the node into a persistable Column.
func (c *ColumnSnapshot) ToEntity(projectID uuid.UUID) *Column {
	return &Column{
		ID:              c.ID,
		ProjectID:       projectID,
		TableID:         c.TableID,
		Name:            c.Name,
		DataType:        c.DataType,
		OrdinalPosition: c.OrdinalPosition,
		IsNullable:      c.IsNullable,
		IsAutoIncrement: c.IsAutoIncrement,
		Comment:         c.Comment,
	}
}

// ToEntity converts the node into a persistable Index.
func (i *IndexSnapshot) ToEntity(projectID uuid.UUID) *Index {
	return &Index{ID: i.ID, ProjectID: projectID, TableID: i.TableID, Name: i.Name, Type: i.Type}
}

// ToEntity converts the node into a persistable IndexColumn.
func (ic *IndexColumnSnapshot) ToEntity(projectID uuid.UUID) *IndexColumn {
	return &IndexColumn{ID: ic.ID, ProjectID: projectID, IndexID: ic.IndexID, ColumnID: ic.ColumnID, SeqNo: ic.SeqNo, SortDirection: ic.SortDirection}
}

// ToEntity converts the node into a persistable Constraint.
func (c *ConstraintSnapshot) ToEntity(projectID uuid.UUID) *Constraint {
	return &Constraint{
		ID:          c.ID,
		ProjectID:   projectID,
		TableID:     c.TableID,
		Name:        c.Name,
		Kind:        c.Kind,
		CheckExpr:   cloneString(c.CheckExpr),
		DefaultExpr: cloneString(c.DefaultExpr),
	}
}

// ToEntity converts the node into a persistable ConstraintColumn.
func (cc *ConstraintColumnSnapshot) ToEntity(projectID uuid.UUID) *ConstraintColumn {
	return &ConstraintColumn{ID: cc.ID, ProjectID: projectID, ConstraintID: cc.ConstraintID, ColumnID: cc.ColumnID, SeqNo: cc.SeqNo}
}

// ToEntity converts the node into a persistable Relationship.
func (r *RelationshipSnapshot) ToEntity(projectID uuid.UUID) *Relationship {
	return &Relationship{
		ID:          r.ID,
		ProjectID:   projectID,
		SrcTableID:  r.SrcTableID,
		TgtTableID:  r.TgtTableID,
		Name:        r.Name,
		Kind:        r.Kind,
		Cardinality: r.Cardinality,
	}
}

// ToEntity converts the node into a persistable RelationshipColumn.
func (rc *RelationshipColumnSnapshot) ToEntity(projectID uuid.UUID) *RelationshipColumn {
	return &RelationshipColumn{
		ID:             rc.ID,
		ProjectID:      projectID,
		RelationshipID: rc.RelationshipID,
		FkColumnID:     rc.FkColumnID,
		RefColumnID:    rc.RefColumnID,
		SeqNo:          rc.SeqNo,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// ============================================================================
// Snapshot index
// ============================================================================

// SnapshotIndex is a flat id lookup over a snapshot tree, one map per kind.
type SnapshotIndex struct {
	Schemas             map[string]*SchemaSnapshot
	Tables              map[string]*TableSnapshot
	Columns             map[string]*ColumnSnapshot
	Indexes             map[string]*IndexSnapshot
	IndexColumns        map[string]*IndexColumnSnapshot
	Constraints         map[string]*ConstraintSnapshot
	ConstraintColumns   map[string]*ConstraintColumnSnapshot
	Relationships       map[string]*RelationshipSnapshot
	RelationshipColumns map[string]*RelationshipColumnSnapshot
}

// NewSnapshotIndex indexes every node of the tree. A nil tree yields an empty index.
func NewSnapshotIndex(s *SchemaSnapshot) *SnapshotIndex {
	idx := &SnapshotIndex{
		Schemas:             map[string]*SchemaSnapshot{},
		Tables:              map[string]*TableSnapshot{},
		Columns:             map[string]*ColumnSnapshot{},
		Indexes:             map[string]*IndexSnapshot{},
		IndexColumns:        map[string]*IndexColumnSnapshot{},
		Constraints:         map[string]*ConstraintSnapshot{},
		ConstraintColumns:   map[string]*ConstraintColumnSnapshot{},
		Relationships:       map[string]*RelationshipSnapshot{},
		RelationshipColumns: map[string]*RelationshipColumnSnapshot{},
	}
	if s == nil {
		return idx
	}
	idx.Schemas[s.ID] = s
	for _, t := range s.Tables {
		idx.Tables[t.ID] = t
		for _, c := range t.Columns {
			idx.Columns[c.ID] = c
		}
		for _, i := range t.Indexes {
			idx.Indexes[i.ID] = i
			for _, ic := range i.Columns {
				idx.IndexColumns[ic.ID] = ic
			}
		}
		for _, c := range t.Constraints {
			idx.Constraints[c.ID] = c
			for _, cc := range c.Columns {
				idx.ConstraintColumns[cc.ID] = cc
			}
		}
		for _, r := range t.Relationships {
			idx.Relationships[r.ID] = r
			for _, rc := range r.Columns {
				idx.RelationshipColumns[rc.ID] = rc
			}
		}
	}
	return idx
}

// Has reports whether a node of the given kind and id is present.
func (idx *SnapshotIndex) Has(kind EntityKind, id string) bool {
	var ok bool
	switch kind {
	case KindSchema:
		_, ok = idx.Schemas[id]
	case KindTable:
		_, ok = idx.Tables[id]
	case KindColumn:
		_, ok = idx.Columns[id]
	case KindIndex:
		_, ok = idx.Indexes[id]
	case KindIndexColumn:
		_, ok = idx.IndexColumns[id]
	case KindConstraint:
		_, ok = idx.Constraints[id]
	case KindConstraintColumn:
		_, ok = idx.ConstraintColumns[id]
	case KindRelationship:
		_, ok = idx.Relationships[id]
	case KindRelationshipColumn:
		_, ok = idx.RelationshipColumns[id]
	}
	return ok
}
