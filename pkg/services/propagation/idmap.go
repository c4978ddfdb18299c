// Package propagation reconciles client logical ids with persisted ids and applies the
// side effects a schema change implies: entities flagged in an after-tree, and the
// foreign-key columns that follow a primary key.
package propagation

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// ErrAlreadyMapped is returned when a logical id is put twice for the same kind.
var ErrAlreadyMapped = errors.New("logical id already mapped")

// IDMap is the per-command reconciliation map: one logical-id -> persisted-id table per
// entity kind. Entries are never overwritten. It is not safe for concurrent use; a
// command owns its map and drops it when the command fails.
type IDMap struct {
	byKind map[models.EntityKind]map[string]string
	n      int
}

// NewIDMap creates an empty map.
func NewIDMap() *IDMap {
	byKind := make(map[models.EntityKind]map[string]string, len(models.AllEntityKinds))
	for _, k := range models.AllEntityKinds {
		byKind[k] = map[string]string{}
	}
	return &IDMap{byKind: byKind}
}

// Put records logical -> persisted for kind.
func (m *IDMap) Put(kind models.EntityKind, logical, persisted string) error {
	table, ok := m.byKind[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if logical == "" || persisted == "" {
		return fmt.Errorf("cannot map empty %s id", kind.Label())
	}
	if existing, ok := table[logical]; ok {
		return fmt.Errorf("%w: %s %s -> %s", ErrAlreadyMapped, kind.Label(), logical, existing)
	}
	table[logical] = persisted
	m.n++
	return nil
}

// Get returns the persisted id mapped to logical, if any.
func (m *IDMap) Get(kind models.EntityKind, logical string) (string, bool) {
	persisted, ok := m.byKind[kind][logical]
	return persisted, ok
}

// Resolve returns the mapped persisted id, or id itself when it was never mapped.
func (m *IDMap) Resolve(kind models.EntityKind, id string) string {
	if persisted, ok := m.Get(kind, id); ok {
		return persisted
	}
	return id
}

// Len returns the number of mappings across all kinds.
func (m *IDMap) Len() int {
	return m.n
}

// Snapshot copies the map into its response form.
func (m *IDMap) Snapshot() models.IDMappings {
	cp := func(kind models.EntityKind) map[string]string {
		out := make(map[string]string, len(m.byKind[kind]))
		for k, v := range m.byKind[kind] {
			out[k] = v
		}
		return out
	}
	return models.IDMappings{
		Schemas:             cp(models.KindSchema),
		Tables:              cp(models.KindTable),
		Columns:             cp(models.KindColumn),
		Indexes:             cp(models.KindIndex),
		IndexColumns:        cp(models.KindIndexColumn),
		Constraints:         cp(models.KindConstraint),
		ConstraintColumns:   cp(models.KindConstraintColumn),
		Relationships:       cp(models.KindRelationship),
		RelationshipColumns: cp(models.KindRelationshipColumn),
	}
}
