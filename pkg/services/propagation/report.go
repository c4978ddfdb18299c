package propagation

import "github.com/ekaya-inc/ekaya-erd/pkg/models"

// Reporter accumulates everything one command did on the client's behalf and renders
// the MutationResult. Records are de-duplicated by id; a later record for the same id
// replaces the earlier one in place. A nil *Reporter discards everything.
type Reporter struct {
	sourceType models.EntityKind
	requested  []string

	excludedColumns             []string
	excludedRelationshipColumns []string

	columns             records[models.PropagatedColumn]
	constraints         records[models.PropagatedConstraint]
	constraintColumns   records[models.PropagatedConstraintColumn]
	indexColumns        records[models.PropagatedIndexColumn]
	relationshipColumns records[models.PropagatedRelationshipColumn]

	created []*models.CascadeCreatedInfo
	removed []*models.CascadeRemovedInfo
	deleted map[models.EntityKind][]string
}

// NewReporter creates a reporter whose records are attributed to sourceType.
func NewReporter(sourceType models.EntityKind) *Reporter {
	return &Reporter{sourceType: sourceType, deleted: map[models.EntityKind][]string{}}
}

// Requested marks ids the client named directly; they never appear as propagated.
func (r *Reporter) Requested(ids ...string) {
	if r == nil {
		return
	}
	r.requested = append(r.requested, ids...)
}

// Exclude marks logical column and relationship-column ids that must never be
// reported as propagated, whatever persisted id they end up with.
func (r *Reporter) Exclude(columnIDs, relationshipColumnIDs []string) {
	if r == nil {
		return
	}
	r.excludedColumns = append(r.excludedColumns, columnIDs...)
	r.excludedRelationshipColumns = append(r.excludedRelationshipColumns, relationshipColumnIDs...)
}

// Column records a propagated column.
func (r *Reporter) Column(c *models.Column, sourceColumnID string) {
	if r == nil || c == nil {
		return
	}
	r.columns.put(c.ID, &models.PropagatedColumn{
		Column:            *c,
		PropagationSource: models.PropagationSource{SourceColumnID: sourceColumnID},
	})
}

// Constraint records a propagated constraint.
func (r *Reporter) Constraint(c *models.Constraint) {
	if r == nil || c == nil {
		return
	}
	r.constraints.put(c.ID, &models.PropagatedConstraint{Constraint: *c})
}

// ConstraintColumn records a propagated constraint column.
func (r *Reporter) ConstraintColumn(cc *models.ConstraintColumn, sourceColumnID string) {
	if r == nil || cc == nil {
		return
	}
	r.constraintColumns.put(cc.ID, &models.PropagatedConstraintColumn{
		ConstraintColumn:  *cc,
		PropagationSource: models.PropagationSource{SourceColumnID: sourceColumnID},
	})
}

// IndexColumn records a propagated index column.
func (r *Reporter) IndexColumn(ic *models.IndexColumn, sourceColumnID string) {
	if r == nil || ic == nil {
		return
	}
	r.indexColumns.put(ic.ID, &models.PropagatedIndexColumn{
		IndexColumn:       *ic,
		PropagationSource: models.PropagationSource{SourceColumnID: sourceColumnID},
	})
}

// RelationshipColumn records a propagated relationship column.
func (r *Reporter) RelationshipColumn(rc *models.RelationshipColumn, sourceColumnID string) {
	if r == nil || rc == nil {
		return
	}
	r.relationshipColumns.put(rc.ID, &models.PropagatedRelationshipColumn{
		RelationshipColumn: *rc,
		PropagationSource:  models.PropagationSource{SourceColumnID: sourceColumnID},
	})
}

// Merge folds a walk's propagated summary into the report.
func (r *Reporter) Merge(p models.PropagatedEntities) {
	if r == nil {
		return
	}
	for _, c := range p.Columns {
		r.columns.put(c.ID, c)
	}
	for _, c := range p.Constraints {
		r.constraints.put(c.ID, c)
	}
	for _, cc := range p.ConstraintColumns {
		r.constraintColumns.put(cc.ID, cc)
	}
	for _, ic := range p.IndexColumns {
		r.indexColumns.put(ic.ID, ic)
	}
	for _, rc := range p.RelationshipColumns {
		r.relationshipColumns.put(rc.ID, rc)
	}
}

// Created records cascade-created FK links.
func (r *Reporter) Created(infos ...*models.CascadeCreatedInfo) {
	if r == nil {
		return
	}
	r.created = append(r.created, infos...)
}

// Removed records cascade-removed FK links.
func (r *Reporter) Removed(infos ...*models.CascadeRemovedInfo) {
	if r == nil {
		return
	}
	r.removed = append(r.removed, infos...)
}

// Deleted records soft-deleted entity ids.
func (r *Reporter) Deleted(kind models.EntityKind, ids ...string) {
	if r == nil {
		return
	}
	r.deleted[kind] = append(r.deleted[kind], ids...)
}

// Result renders the response. entityID is the persisted id of the requested entity and
// becomes the SourceID of every propagated record.
func (r *Reporter) Result(entityID string, ids *IDMap) *models.MutationResult {
	if ids == nil {
		ids = NewIDMap()
	}
	result := &models.MutationResult{
		EntityID:   entityID,
		IDMappings: ids.Snapshot(),
		Propagated: models.PropagatedEntities{
			Columns:             []*models.PropagatedColumn{},
			Constraints:         []*models.PropagatedConstraint{},
			ConstraintColumns:   []*models.PropagatedConstraintColumn{},
			IndexColumns:        []*models.PropagatedIndexColumn{},
			RelationshipColumns: []*models.PropagatedRelationshipColumn{},
		},
	}
	if r == nil {
		return result
	}

	skip := map[string]bool{}
	if entityID != "" {
		skip[entityID] = true
	}
	for _, id := range r.requested {
		skip[id] = true
	}
	for _, id := range r.excludedColumns {
		skip[id] = true
		skip[ids.Resolve(models.KindColumn, id)] = true
	}
	for _, id := range r.excludedRelationshipColumns {
		skip[id] = true
		skip[ids.Resolve(models.KindRelationshipColumn, id)] = true
	}
	source := func(p *models.PropagationSource) {
		p.SourceType = r.sourceType
		p.SourceID = entityID
	}

	for _, c := range r.columns.items {
		if !skip[c.ID] {
			source(&c.PropagationSource)
			result.Propagated.Columns = append(result.Propagated.Columns, c)
		}
	}
	for _, c := range r.constraints.items {
		if !skip[c.ID] {
			source(&c.PropagationSource)
			result.Propagated.Constraints = append(result.Propagated.Constraints, c)
		}
	}
	for _, cc := range r.constraintColumns.items {
		if !skip[cc.ID] {
			source(&cc.PropagationSource)
			result.Propagated.ConstraintColumns = append(result.Propagated.ConstraintColumns, cc)
		}
	}
	for _, ic := range r.indexColumns.items {
		if !skip[ic.ID] {
			source(&ic.PropagationSource)
			result.Propagated.IndexColumns = append(result.Propagated.IndexColumns, ic)
		}
	}
	for _, rc := range r.relationshipColumns.items {
		if !skip[rc.ID] {
			source(&rc.PropagationSource)
			result.Propagated.RelationshipColumns = append(result.Propagated.RelationshipColumns, rc)
		}
	}

	if len(r.created) > 0 {
		result.CascadeCreatedColumns = r.created
	}
	if len(r.removed) > 0 {
		result.CascadeRemoved = r.removed
	}
	if len(r.deleted) > 0 {
		result.DeletedIDs = r.deleted
	}
	return result
}

// records is an insertion-ordered set keyed by entity id.
type records[T any] struct {
	items []*T
	pos   map[string]int
}

func (s *records[T]) put(id string, v *T) {
	if s.pos == nil {
		s.pos = map[string]int{}
	}
	if i, ok := s.pos[id]; ok {
		s.items[i] = v
		return
	}
	s.pos[id] = len(s.items)
	s.items = append(s.items, v)
}
