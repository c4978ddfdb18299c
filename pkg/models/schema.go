package models

import (
	"time"

	"github.com/google/uuid"
)

// Schema is the root of the five-level hierarchy. It owns Tables.
type Schema struct {
	ID        string     `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	Name      string     `json:"name"`
	Charset   string     `json:"charset,omitempty"`
	Collation string     `json:"collation,omitempty"`
	VendorID  string     `json:"vendor_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Table owns Columns, Indexes, Constraints and the Relationships anchored at it (as source).
type Table struct {
	ID        string     `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	SchemaID  string     `json:"schema_id"`
	Name      string     `json:"name"`
	Options   string     `json:"options,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Column is a table column. OrdinalPosition is unique per table.
type Column struct {
	ID              string     `json:"id"`
	ProjectID       uuid.UUID  `json:"project_id"`
	TableID         string     `json:"table_id"`
	Name            string     `json:"name"`
	DataType        string     `json:"data_type"`
	OrdinalPosition int        `json:"ordinal_position"`
	IsNullable      bool       `json:"is_nullable"`
	IsAutoIncrement bool       `json:"is_auto_increment"`
	Comment         string     `json:"comment,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// ColumnsByID indexes columns by id.
func ColumnsByID(columns []*Column) map[string]*Column {
	byID := make(map[string]*Column, len(columns))
	for _, c := range columns {
		byID[c.ID] = c
	}
	return byID
}
