package models

import (
	"time"

	"github.com/google/uuid"
)

// ConstraintKind values.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "PRIMARY_KEY"
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintCheck      ConstraintKind = "CHECK"
	ConstraintDefault    ConstraintKind = "DEFAULT"
)

// IsValid checks if the constraint kind is known.
func (k ConstraintKind) IsValid() bool {
	switch k {
	case ConstraintPrimaryKey, ConstraintUnique, ConstraintCheck, ConstraintDefault:
		return true
	}
	return false
}

// Constraint is owned by a Table and owns ConstraintColumns.
// At most one PRIMARY_KEY constraint exists per table.
type Constraint struct {
	ID          string         `json:"id"`
	ProjectID   uuid.UUID      `json:"project_id"`
	TableID     string         `json:"table_id"`
	Name        string         `json:"name"`
	Kind        ConstraintKind `json:"kind"`
	CheckExpr   *string        `json:"check_expr,omitempty"`
	DefaultExpr *string        `json:"default_expr,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// IsPrimaryKey reports whether the constraint is the table's primary key.
func (c *Constraint) IsPrimaryKey() bool {
	return c != nil && c.Kind == ConstraintPrimaryKey
}

// ConstraintColumn links a Constraint to a Column. SeqNo is 0-based and contiguous.
type ConstraintColumn struct {
	ID           string     `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	ConstraintID string     `json:"constraint_id"`
	ColumnID     string     `json:"column_id"`
	SeqNo        int        `json:"seq_no"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
