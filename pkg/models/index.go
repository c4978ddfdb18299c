package models

import (
	"time"

	"github.com/google/uuid"
)

// IndexType values.
type IndexType string

const (
	IndexTypeBTree    IndexType = "BTREE"
	IndexTypeHash     IndexType = "HASH"
	IndexTypeFullText IndexType = "FULLTEXT"
	IndexTypeSpatial  IndexType = "SPATIAL"
)

// IsValid checks if the index type is known.
func (t IndexType) IsValid() bool {
	switch t {
	case IndexTypeBTree, IndexTypeHash, IndexTypeFullText, IndexTypeSpatial:
		return true
	}
	return false
}

// SortDirection of an index column.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// IsValid checks if the sort direction is known.
func (d SortDirection) IsValid() bool {
	return d == SortAsc || d == SortDesc
}

// Index is owned by a Table and owns IndexColumns.
type Index struct {
	ID        string     `json:"id"`
	ProjectID uuid.UUID  `json:"project_id"`
	TableID   string     `json:"table_id"`
	Name      string     `json:"name"`
	Type      IndexType  `json:"type"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IndexColumn links an Index to a Column. SeqNo is 0-based and contiguous per index.
type IndexColumn struct {
	ID            string        `json:"id"`
	ProjectID     uuid.UUID     `json:"project_id"`
	IndexID       string        `json:"index_id"`
	ColumnID      string        `json:"column_id"`
	SeqNo         int           `json:"seq_no"`
	SortDirection SortDirection `json:"sort_direction"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty"`
}
