package models

// EntityKind identifies one of the nine entity kinds of the schema hierarchy.
type EntityKind string

const (
	KindSchema             EntityKind = "SCHEMA"
	KindTable              EntityKind = "TABLE"
	KindColumn             EntityKind = "COLUMN"
	KindIndex              EntityKind = "INDEX"
	KindIndexColumn        EntityKind = "INDEX_COLUMN"
	KindConstraint         EntityKind = "CONSTRAINT"
	KindConstraintColumn   EntityKind = "CONSTRAINT_COLUMN"
	KindRelationship       EntityKind = "RELATIONSHIP"
	KindRelationshipColumn EntityKind = "RELATIONSHIP_COLUMN"
)

// AllEntityKinds lists the kinds in persistence (topological) order.
var AllEntityKinds = []EntityKind{
	KindSchema,
	KindTable,
	KindColumn,
	KindIndex,
	KindConstraint,
	KindRelationship,
	KindIndexColumn,
	KindConstraintColumn,
	KindRelationshipColumn,
}

// IsValid checks if the kind is one of the nine known kinds.
func (k EntityKind) IsValid() bool {
	for _, v := range AllEntityKinds {
		if v == k {
			return true
		}
	}
	return false
}

// Label returns a lower-case human label used in error messages.
func (k EntityKind) Label() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	case KindColumn:
		return "column"
	case KindIndex:
		return "index"
	case KindIndexColumn:
		return "index column"
	case KindConstraint:
		return "constraint"
	case KindConstraintColumn:
		return "constraint column"
	case KindRelationship:
		return "relationship"
	case KindRelationshipColumn:
		return "relationship column"
	}
	return string(k)
}
