package propagation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
)

// Action is the persistence step an Operation asks for.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Operation is one entity the walker wants saved. Entity is the *models.<Kind> with
// every id already rewritten to persisted values.
type Operation struct {
	Kind        models.EntityKind
	Action      Action
	LogicalID   string
	PersistedID string
	Entity      any
}

// WalkInput is everything the walker needs for one command.
type WalkInput struct {
	ProjectID uuid.UUID
	Before    *models.SchemaSnapshot
	After     *models.SchemaSnapshot

	// RequestedLogicalID names the entity the command is about. When RequestedPersistedID
	// is set the caller has already saved it, so the walker only maps it.
	RequestedLogicalID   string
	RequestedPersistedID string
	SourceKind           models.EntityKind

	ExcludedColumnIDs             []string
	ExcludedRelationshipColumnIDs []string
	// ExcludedIDs are other logical ids, of any kind, the client named directly.
	ExcludedIDs []string

	// IDs may be pre-seeded by the caller with entities it persisted itself. Nodes whose
	// logical id is already mapped are skipped.
	IDs *IDMap
}

// WalkResult is the walker's output.
type WalkResult struct {
	// Operations are in dependency order: Schema, Table, Column, then Index, Constraint
	// and Relationship, then their link rows.
	Operations []Operation
	IDs        *IDMap
	Propagated models.PropagatedEntities
	// Tree is the after-tree rewritten with IDs.
	Tree *models.SchemaSnapshot
}

// Walker turns a flagged before/after pair into persistence operations.
type Walker struct {
	ports  *repositories.Ports
	ids    idgen.Generator
	logger *zap.Logger
}

// NewWalker creates a Walker. Existing entities are found through ports; new ones get
// ids from gen.
func NewWalker(ports *repositories.Ports, gen idgen.Generator, logger *zap.Logger) *Walker {
	return &Walker{ports: ports, ids: gen, logger: logger.Named("walker")}
}

// pending is an affected node that needs saving, before its references are rewritten.
type pending struct {
	kind      models.EntityKind
	action    Action
	logical   string
	persisted string
	node      any
}

type walkState struct {
	w       *Walker
	in      WalkInput
	ids     *IDMap
	before  *models.SnapshotIndex
	after   *models.SnapshotIndex
	found   map[string]bool
	pending []*pending
}

// Walk visits the after-tree parent before child and emits a create or update for every
// affected node that is new or differs from the before-tree. The walk fails with an
// IntegrityError when a node references an id found in neither tree, the map, nor storage.
func (w *Walker) Walk(ctx context.Context, in WalkInput) (*WalkResult, error) {
	ids := in.IDs
	if ids == nil {
		ids = NewIDMap()
	}
	result := &WalkResult{IDs: ids, Operations: []Operation{}}
	if in.After == nil {
		return result, nil
	}

	before := fillParentRefs(Rewrite(in.Before, nil))
	after := fillParentRefs(Rewrite(in.After, nil))

	st := &walkState{
		w:      w,
		in:     in,
		ids:    ids,
		before: models.NewSnapshotIndex(before),
		after:  models.NewSnapshotIndex(after),
		found:  map[string]bool{},
	}

	if in.RequestedLogicalID != "" && in.RequestedPersistedID != "" && in.RequestedLogicalID != in.RequestedPersistedID {
		if _, ok := ids.Get(in.SourceKind, in.RequestedLogicalID); !ok {
			if err := ids.Put(in.SourceKind, in.RequestedLogicalID, in.RequestedPersistedID); err != nil {
				return nil, err
			}
		}
	}

	if err := st.walkTree(ctx, after); err != nil {
		return nil, err
	}

	for _, p := range st.pending {
		result.Operations = append(result.Operations, st.operation(p))
	}
	result.Propagated = st.propagated(result.Operations)
	result.Tree = Rewrite(after, ids)

	w.logger.Debug("Walked snapshot pair",
		zap.String("source_kind", string(in.SourceKind)),
		zap.String("requested", in.RequestedLogicalID),
		zap.Int("operations", len(result.Operations)),
		zap.Int("mapped", ids.Len()))

	return result, nil
}

type ref struct {
	field string
	kind  models.EntityKind
	id    string
}

// walkTree visits nodes level by level so every parent is mapped before any child.
func (st *walkState) walkTree(ctx context.Context, s *models.SchemaSnapshot) error {
	if err := st.visit(ctx, models.KindSchema, s.ID, s.Mark, nil, s, func(b any) bool {
		return sameSchema(b.(*models.SchemaSnapshot), s)
	}); err != nil {
		return err
	}

	for _, t := range s.Tables {
		if err := st.visit(ctx, models.KindTable, t.ID, t.Mark,
			[]ref{{"schema_id", models.KindSchema, t.SchemaID}}, t, func(b any) bool {
				return sameTable(b.(*models.TableSnapshot), t)
			}); err != nil {
			return err
		}
	}

	for _, t := range s.Tables {
		for _, c := range t.Columns {
			if err := st.visit(ctx, models.KindColumn, c.ID, c.Mark,
				[]ref{{"table_id", models.KindTable, c.TableID}}, c, func(b any) bool {
					return *b.(*models.ColumnSnapshot).ToEntity(uuid.Nil) == *c.ToEntity(uuid.Nil)
				}); err != nil {
				return err
			}
		}
	}

	for _, t := range s.Tables {
		for _, i := range t.Indexes {
			if err := st.visit(ctx, models.KindIndex, i.ID, i.Mark,
				[]ref{{"table_id", models.KindTable, i.TableID}}, i, func(b any) bool {
					return *b.(*models.IndexSnapshot).ToEntity(uuid.Nil) == *i.ToEntity(uuid.Nil)
				}); err != nil {
				return err
			}
		}
		for _, c := range t.Constraints {
			if err := st.visit(ctx, models.KindConstraint, c.ID, c.Mark,
				[]ref{{"table_id", models.KindTable, c.TableID}}, c, func(b any) bool {
					return sameConstraint(b.(*models.ConstraintSnapshot), c)
				}); err != nil {
				return err
			}
		}
		for _, r := range t.Relationships {
			if err := st.visit(ctx, models.KindRelationship, r.ID, r.Mark, []ref{
				{"src_table_id", models.KindTable, r.SrcTableID},
				{"tgt_table_id", models.KindTable, r.TgtTableID},
			}, r, func(b any) bool {
				return *b.(*models.RelationshipSnapshot).ToEntity(uuid.Nil) == *r.ToEntity(uuid.Nil)
			}); err != nil {
				return err
			}
		}
	}

	for _, t := range s.Tables {
		for _, i := range t.Indexes {
			for _, ic := range i.Columns {
				if err := st.visit(ctx, models.KindIndexColumn, ic.ID, ic.Mark, []ref{
					{"index_id", models.KindIndex, ic.IndexID},
					{"column_id", models.KindColumn, ic.ColumnID},
				}, ic, func(b any) bool {
					return *b.(*models.IndexColumnSnapshot).ToEntity(uuid.Nil) == *ic.ToEntity(uuid.Nil)
				}); err != nil {
					return err
				}
			}
		}
		for _, c := range t.Constraints {
			for _, cc := range c.Columns {
				if err := st.visit(ctx, models.KindConstraintColumn, cc.ID, cc.Mark, []ref{
					{"constraint_id", models.KindConstraint, cc.ConstraintID},
					{"column_id", models.KindColumn, cc.ColumnID},
				}, cc, func(b any) bool {
					return *b.(*models.ConstraintColumnSnapshot).ToEntity(uuid.Nil) == *cc.ToEntity(uuid.Nil)
				}); err != nil {
					return err
				}
			}
		}
		for _, r := range t.Relationships {
			for _, rc := range r.Columns {
				if err := st.visit(ctx, models.KindRelationshipColumn, rc.ID, rc.Mark, []ref{
					{"relationship_id", models.KindRelationship, rc.RelationshipID},
					{"fk_column_id", models.KindColumn, rc.FkColumnID},
					{"ref_column_id", models.KindColumn, rc.RefColumnID},
				}, rc, func(b any) bool {
					return *b.(*models.RelationshipColumnSnapshot).ToEntity(uuid.Nil) == *rc.ToEntity(uuid.Nil)
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// visit checks node's references and, if it is affected, decides create or update.
// same compares the node with its before-tree counterpart.
func (st *walkState) visit(ctx context.Context, kind models.EntityKind, id string, mark models.ChangeMark, refs []ref, node any, same func(before any) bool) error {
	if id == "" {
		return &apperrors.IntegrityError{Kind: kind.Label(), NodeID: id, Field: "id", Ref: id}
	}
	for _, r := range refs {
		ok, err := st.resolvable(ctx, r.kind, r.id)
		if err != nil {
			return err
		}
		if !ok {
			return &apperrors.IntegrityError{Kind: kind.Label(), NodeID: id, Field: r.field, Ref: r.id}
		}
	}

	if !mark.IsAffected() {
		return nil
	}
	if id == st.in.RequestedLogicalID && st.in.RequestedPersistedID != "" {
		return nil
	}
	if _, mapped := st.ids.Get(kind, id); mapped {
		return nil
	}

	p := &pending{kind: kind, logical: id, node: node}
	if beforeNode := st.beforeNode(kind, id); beforeNode != nil {
		if same(beforeNode) {
			return nil
		}
		p.action, p.persisted = ActionUpdate, id
	} else {
		exists, err := st.stored(ctx, kind, id)
		if err != nil {
			return err
		}
		if exists {
			p.action, p.persisted = ActionUpdate, id
		} else {
			p.action, p.persisted = ActionCreate, st.w.ids.Generate()
			if err := st.ids.Put(kind, id, p.persisted); err != nil {
				return err
			}
		}
	}
	st.pending = append(st.pending, p)
	return nil
}

func (st *walkState) resolvable(ctx context.Context, kind models.EntityKind, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	if _, ok := st.ids.Get(kind, id); ok {
		return true, nil
	}
	if st.after.Has(kind, id) || st.before.Has(kind, id) {
		return true, nil
	}
	return st.stored(ctx, kind, id)
}

// stored looks the id up through the ports, caching the answer for the walk.
func (st *walkState) stored(ctx context.Context, kind models.EntityKind, id string) (bool, error) {
	key := string(kind) + "/" + id
	if found, ok := st.found[key]; ok {
		return found, nil
	}

	var (
		found bool
		err   error
	)
	ports, pid := st.w.ports, st.in.ProjectID
	switch kind {
	case models.KindSchema:
		var v *models.Schema
		v, err = ports.Schemas.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindTable:
		var v *models.Table
		v, err = ports.Tables.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindColumn:
		var v *models.Column
		v, err = ports.Columns.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindIndex:
		var v *models.Index
		v, err = ports.Indexes.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindIndexColumn:
		var v *models.IndexColumn
		v, err = ports.IndexColumns.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindConstraint:
		var v *models.Constraint
		v, err = ports.Constraints.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindConstraintColumn:
		var v *models.ConstraintColumn
		v, err = ports.ConstraintColumns.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindRelationship:
		var v *models.Relationship
		v, err = ports.Relationships.FindByID(ctx, pid, id)
		found = v != nil
	case models.KindRelationshipColumn:
		var v *models.RelationshipColumn
		v, err = ports.RelationshipColumns.FindByID(ctx, pid, id)
		found = v != nil
	default:
		return false, fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s %s: %w", kind.Label(), id, err)
	}
	st.found[key] = found
	return found, nil
}

func (st *walkState) beforeNode(kind models.EntityKind, id string) any {
	b := st.before
	switch kind {
	case models.KindSchema:
		if v, ok := b.Schemas[id]; ok {
			return v
		}
	case models.KindTable:
		if v, ok := b.Tables[id]; ok {
			return v
		}
	case models.KindColumn:
		if v, ok := b.Columns[id]; ok {
			return v
		}
	case models.KindIndex:
		if v, ok := b.Indexes[id]; ok {
			return v
		}
	case models.KindIndexColumn:
		if v, ok := b.IndexColumns[id]; ok {
			return v
		}
	case models.KindConstraint:
		if v, ok := b.Constraints[id]; ok {
			return v
		}
	case models.KindConstraintColumn:
		if v, ok := b.ConstraintColumns[id]; ok {
			return v
		}
	case models.KindRelationship:
		if v, ok := b.Relationships[id]; ok {
			return v
		}
	case models.KindRelationshipColumn:
		if v, ok := b.RelationshipColumns[id]; ok {
			return v
		}
	}
	return nil
}

// operation builds the entity for p with every id resolved through the map.
func (st *walkState) operation(p *pending) Operation {
	ids, pid := st.ids, st.in.ProjectID
	var entity any

	switch n := p.node.(type) {
	case *models.SchemaSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		entity = e
	case *models.TableSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.SchemaID = ids.Resolve(models.KindSchema, e.SchemaID)
		entity = e
	case *models.ColumnSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.TableID = ids.Resolve(models.KindTable, e.TableID)
		entity = e
	case *models.IndexSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.TableID = ids.Resolve(models.KindTable, e.TableID)
		entity = e
	case *models.IndexColumnSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.IndexID = ids.Resolve(models.KindIndex, e.IndexID)
		e.ColumnID = ids.Resolve(models.KindColumn, e.ColumnID)
		if e.SortDirection == "" {
			e.SortDirection = models.SortAsc
		}
		entity = e
	case *models.ConstraintSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.TableID = ids.Resolve(models.KindTable, e.TableID)
		entity = e
	case *models.ConstraintColumnSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.ConstraintID = ids.Resolve(models.KindConstraint, e.ConstraintID)
		e.ColumnID = ids.Resolve(models.KindColumn, e.ColumnID)
		entity = e
	case *models.RelationshipSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.SrcTableID = ids.Resolve(models.KindTable, e.SrcTableID)
		e.TgtTableID = ids.Resolve(models.KindTable, e.TgtTableID)
		entity = e
	case *models.RelationshipColumnSnapshot:
		e := n.ToEntity(pid)
		e.ID = p.persisted
		e.RelationshipID = ids.Resolve(models.KindRelationship, e.RelationshipID)
		e.FkColumnID = ids.Resolve(models.KindColumn, e.FkColumnID)
		e.RefColumnID = ids.Resolve(models.KindColumn, e.RefColumnID)
		entity = e
	}

	return Operation{Kind: p.kind, Action: p.action, LogicalID: p.logical, PersistedID: p.persisted, Entity: entity}
}

// propagated summarizes the operations that were not named by the client.
func (st *walkState) propagated(ops []Operation) models.PropagatedEntities {
	out := models.PropagatedEntities{
		Columns:             []*models.PropagatedColumn{},
		Constraints:         []*models.PropagatedConstraint{},
		ConstraintColumns:   []*models.PropagatedConstraintColumn{},
		IndexColumns:        []*models.PropagatedIndexColumn{},
		RelationshipColumns: []*models.PropagatedRelationshipColumn{},
	}

	skip := map[string]bool{}
	for _, id := range st.in.ExcludedColumnIDs {
		skip[string(models.KindColumn)+"/"+id] = true
	}
	for _, id := range st.in.ExcludedRelationshipColumnIDs {
		skip[string(models.KindRelationshipColumn)+"/"+id] = true
	}
	for _, id := range st.in.ExcludedIDs {
		for _, k := range models.AllEntityKinds {
			skip[string(k)+"/"+id] = true
		}
	}
	if st.in.RequestedLogicalID != "" {
		skip[string(st.in.SourceKind)+"/"+st.in.RequestedLogicalID] = true
	}

	sourceID := st.in.RequestedPersistedID
	if sourceID == "" {
		sourceID = st.ids.Resolve(st.in.SourceKind, st.in.RequestedLogicalID)
	}
	source := func(sourceColumnID string) models.PropagationSource {
		return models.PropagationSource{SourceType: st.in.SourceKind, SourceID: sourceID, SourceColumnID: sourceColumnID}
	}

	// The column an FK column mirrors, keyed by the FK column's logical id.
	mirrors := map[string]string{}
	for _, rc := range st.after.RelationshipColumns {
		if _, ok := mirrors[rc.FkColumnID]; !ok {
			mirrors[rc.FkColumnID] = rc.RefColumnID
		}
	}
	mirrorOf := func(columnLogicalID string) string {
		ref, ok := mirrors[columnLogicalID]
		if !ok {
			return ""
		}
		return st.ids.Resolve(models.KindColumn, ref)
	}

	for _, op := range ops {
		if skip[string(op.Kind)+"/"+op.LogicalID] || skip[string(op.Kind)+"/"+op.PersistedID] {
			continue
		}
		switch e := op.Entity.(type) {
		case *models.Column:
			out.Columns = append(out.Columns, &models.PropagatedColumn{Column: *e, PropagationSource: source(mirrorOf(op.LogicalID))})
		case *models.Constraint:
			out.Constraints = append(out.Constraints, &models.PropagatedConstraint{Constraint: *e, PropagationSource: source("")})
		case *models.ConstraintColumn:
			cc := st.after.ConstraintColumns[op.LogicalID]
			out.ConstraintColumns = append(out.ConstraintColumns, &models.PropagatedConstraintColumn{ConstraintColumn: *e, PropagationSource: source(mirrorOf(cc.ColumnID))})
		case *models.IndexColumn:
			ic := st.after.IndexColumns[op.LogicalID]
			out.IndexColumns = append(out.IndexColumns, &models.PropagatedIndexColumn{IndexColumn: *e, PropagationSource: source(mirrorOf(ic.ColumnID))})
		case *models.RelationshipColumn:
			out.RelationshipColumns = append(out.RelationshipColumns, &models.PropagatedRelationshipColumn{RelationshipColumn: *e, PropagationSource: source(e.RefColumnID)})
		}
	}
	return out
}

// ============================================================================
// Tree helpers
// ============================================================================

// fillParentRefs sets empty parent references from the enclosing node, in place.
func fillParentRefs(s *models.SchemaSnapshot) *models.SchemaSnapshot {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		t.SchemaID = orDefault(t.SchemaID, s.ID)
		for _, c := range t.Columns {
			c.TableID = orDefault(c.TableID, t.ID)
		}
		for _, i := range t.Indexes {
			i.TableID = orDefault(i.TableID, t.ID)
			for _, ic := range i.Columns {
				ic.IndexID = orDefault(ic.IndexID, i.ID)
			}
		}
		for _, c := range t.Constraints {
			c.TableID = orDefault(c.TableID, t.ID)
			for _, cc := range c.Columns {
				cc.ConstraintID = orDefault(cc.ConstraintID, c.ID)
			}
		}
		for _, r := range t.Relationships {
			r.SrcTableID = orDefault(r.SrcTableID, t.ID)
			for _, rc := range r.Columns {
				rc.RelationshipID = orDefault(rc.RelationshipID, r.ID)
			}
		}
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func sameSchema(a, b *models.SchemaSnapshot) bool {
	return a.Name == b.Name && a.Charset == b.Charset && a.Collation == b.Collation && a.VendorID == b.VendorID
}

func sameTable(a, b *models.TableSnapshot) bool {
	return a.SchemaID == b.SchemaID && a.Name == b.Name && a.Options == b.Options && a.Comment == b.Comment
}

func sameConstraint(a, b *models.ConstraintSnapshot) bool {
	return a.TableID == b.TableID && a.Name == b.Name && a.Kind == b.Kind &&
		deref(a.CheckExpr) == deref(b.CheckExpr) && deref(a.DefaultExpr) == deref(b.DefaultExpr)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
