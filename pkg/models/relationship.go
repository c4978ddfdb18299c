package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipKind values.
type RelationshipKind string

const (
	RelationshipIdentifying    RelationshipKind = "IDENTIFYING"
	RelationshipNonIdentifying RelationshipKind = "NON_IDENTIFYING"
)

// IsValid checks if the relationship kind is known.
func (k RelationshipKind) IsValid() bool {
	return k == RelationshipIdentifying || k == RelationshipNonIdentifying
}

// Cardinality of the source side of a relationship.
type Cardinality string

const (
	CardinalityOneToOne   Cardinality = "ONE_TO_ONE"
	CardinalityOneToMany  Cardinality = "ONE_TO_MANY"
	CardinalityZeroOrOne  Cardinality = "ZERO_OR_ONE"
	CardinalityZeroOrMany Cardinality = "ZERO_OR_MANY"
)

// ValidCardinalities contains all valid cardinality values.
var ValidCardinalities = []Cardinality{
	CardinalityOneToOne,
	CardinalityOneToMany,
	CardinalityZeroOrOne,
	CardinalityZeroOrMany,
}

// IsValid checks if the cardinality is known.
func (c Cardinality) IsValid() bool {
	for _, v := range ValidCardinalities {
		if v == c {
			return true
		}
	}
	return false
}

// Relationship is anchored at its source table (which holds the foreign key) and
// targets the table holding the referenced key.
type Relationship struct {
	ID          string           `json:"id"`
	ProjectID   uuid.UUID        `json:"project_id"`
	SrcTableID  string           `json:"src_table_id"`
	TgtTableID  string           `json:"tgt_table_id"`
	Name        string           `json:"name"`
	Kind        RelationshipKind `json:"kind"`
	Cardinality Cardinality      `json:"cardinality"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
}

// IsIdentifying reports whether the FK columns are part of the source primary key.
func (r *Relationship) IsIdentifying() bool {
	return r != nil && r.Kind == RelationshipIdentifying
}

// RelationshipColumn pairs a foreign-key column in the source table with the
// referenced column in the target table.
type RelationshipColumn struct {
	ID             string     `json:"id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	RelationshipID string     `json:"relationship_id"`
	FkColumnID     string     `json:"fk_column_id"`
	RefColumnID    string     `json:"ref_column_id"`
	SeqNo          int        `json:"seq_no"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}
