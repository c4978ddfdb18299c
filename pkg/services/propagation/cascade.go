package propagation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
)

// DefaultMaxDepth bounds how far a primary-key addition follows an identifying chain.
const DefaultMaxDepth = 2

// Options tunes the cascade engine.
type Options struct {
	// LockTargetTable takes a row lock on the table whose primary key changed before
	// any FK column is created or removed for it.
	LockTargetTable bool
	// MaxDepth is the number of relationship levels a primary-key addition travels.
	// Zero means DefaultMaxDepth. Removals are not bounded.
	MaxDepth int
}

// CascadeEngine keeps FK columns and relationship columns in step with the primary keys
// they reference.
type CascadeEngine struct {
	ports   *repositories.Ports
	ids     idgen.Generator
	members *Members
	opts    Options
	logger  *zap.Logger
}

// NewCascadeEngine creates a CascadeEngine.
func NewCascadeEngine(ports *repositories.Ports, gen idgen.Generator, members *Members, opts Options, logger *zap.Logger) *CascadeEngine {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &CascadeEngine{
		ports:   ports,
		ids:     gen,
		members: members,
		opts:    opts,
		logger:  logger.Named("cascade"),
	}
}

// CascadeAddPkColumn creates, for every relationship in rels that targets table, an FK
// column in the relationship's source table and the relationship column linking it to
// newPk. existingPk are the primary-key columns table already had.
//
// The engine does not check whether a relationship already mirrors newPk; callers filter
// rels first.
func (e *CascadeEngine) CascadeAddPkColumn(ctx context.Context, projectID uuid.UUID, table *models.Table, newPk *models.Column, existingPk []*models.Column, rels []*models.Relationship, rep *Reporter) ([]*models.CascadeCreatedInfo, error) {
	infos := []*models.CascadeCreatedInfo{}

	for _, rel := range rels {
		if rel.TgtTableID != table.ID {
			continue
		}

		cols, err := e.ports.Columns.FindByTableID(ctx, projectID, rel.SrcTableID)
		if err != nil {
			return nil, fmt.Errorf("failed to list columns of %s: %w", rel.SrcTableID, err)
		}
		maxOrdinal := 0
		for _, c := range cols {
			if c.OrdinalPosition > maxOrdinal {
				maxOrdinal = c.OrdinalPosition
			}
		}

		fk := &models.Column{
			ID:              e.ids.Generate(),
			ProjectID:       projectID,
			TableID:         rel.SrcTableID,
			Name:            uniqueColumnName(cols, newPk.Name),
			DataType:        newPk.DataType,
			OrdinalPosition: maxOrdinal + 1,
			IsNullable:      !rel.IsIdentifying(),
		}
		if err := e.ports.Columns.Save(ctx, fk); err != nil {
			return nil, fmt.Errorf("failed to create FK column: %w", err)
		}
		rep.Column(fk, newPk.ID)

		pairs, err := e.ports.RelationshipColumns.FindByRelationshipID(ctx, projectID, rel.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}
		if len(pairs) != len(existingPk) {
			e.logger.Warn("Relationship column count differs from primary key",
				zap.String("relationship_id", rel.ID),
				zap.Int("relationship_columns", len(pairs)),
				zap.Int("pk_columns", len(existingPk)))
		}

		rc := &models.RelationshipColumn{
			ID:             e.ids.Generate(),
			ProjectID:      projectID,
			RelationshipID: rel.ID,
			FkColumnID:     fk.ID,
			RefColumnID:    newPk.ID,
			SeqNo:          len(pairs),
		}
		if err := e.ports.RelationshipColumns.Save(ctx, rc); err != nil {
			return nil, fmt.Errorf("failed to create relationship column: %w", err)
		}
		rep.RelationshipColumn(rc, newPk.ID)

		info := &models.CascadeCreatedInfo{
			FkColumnID:           fk.ID,
			FkColumnName:         fk.Name,
			FkTableID:            fk.TableID,
			RelationshipColumnID: rc.ID,
			RelationshipID:       rel.ID,
		}

		if rel.IsIdentifying() {
			pk, cc, created, err := e.appendToPrimaryKey(ctx, projectID, rel.SrcTableID, fk, newPk.ID, rep)
			if err != nil {
				return nil, err
			}
			info.ExistingConstraintColumnID = cc.ID
			info.ExistingConstraintColumnPkColumnID = newPk.ID
			info.PkConstraintID = pk.ID
			info.PkConstraintCreated = created
		}

		e.logger.Debug("Cascade-created FK column",
			zap.String("relationship_id", rel.ID),
			zap.String("fk_table_id", fk.TableID),
			zap.String("fk_column", fk.Name))
		infos = append(infos, info)
	}

	rep.Created(infos...)
	return infos, nil
}

// appendToPrimaryKey adds column to tableID's primary key, creating the key when the
// table has none.
func (e *CascadeEngine) appendToPrimaryKey(ctx context.Context, projectID uuid.UUID, tableID string, column *models.Column, sourceColumnID string, rep *Reporter) (*models.Constraint, *models.ConstraintColumn, bool, error) {
	pk, err := e.ports.Constraints.FindPrimaryKeyByTableID(ctx, projectID, tableID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to load primary key: %w", err)
	}

	created := false
	if pk == nil {
		table, err := e.ports.Tables.FindByID(ctx, projectID, tableID)
		if err != nil {
			return nil, nil, false, fmt.Errorf("failed to load table: %w", err)
		}
		if table == nil {
			return nil, nil, false, apperrors.NewNotFound(models.KindTable.Label(), tableID)
		}
		name, err := e.uniqueConstraintName(ctx, projectID, table.SchemaID, "pk_"+table.Name)
		if err != nil {
			return nil, nil, false, err
		}
		pk = &models.Constraint{
			ID:        e.ids.Generate(),
			ProjectID: projectID,
			TableID:   tableID,
			Name:      name,
			Kind:      models.ConstraintPrimaryKey,
		}
		if err := e.ports.Constraints.Save(ctx, pk); err != nil {
			return nil, nil, false, fmt.Errorf("failed to create primary key: %w", err)
		}
		rep.Constraint(pk)
		created = true
	}

	members, err := e.ports.ConstraintColumns.FindByConstraintID(ctx, projectID, pk.ID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to list primary key columns: %w", err)
	}
	for _, m := range members {
		if m.ColumnID == column.ID {
			return pk, m, created, nil
		}
	}

	cc := &models.ConstraintColumn{
		ID:           e.ids.Generate(),
		ProjectID:    projectID,
		ConstraintID: pk.ID,
		ColumnID:     column.ID,
		SeqNo:        len(members),
	}
	if err := e.ports.ConstraintColumns.Save(ctx, cc); err != nil {
		return nil, nil, false, fmt.Errorf("failed to append to primary key: %w", err)
	}
	rep.ConstraintColumn(cc, sourceColumnID)
	return pk, cc, created, nil
}

// removedFk is an FK column deleted by a removal cascade that was itself part of its
// table's primary key, so the removal travels on from there.
type removedFk struct {
	tableID  string
	columnID string
}

// CascadeRemovePkColumn soft-deletes every relationship column that links a relationship
// targeting tableID to pkColumnID, then the FK columns left without any relationship
// column. Ids in excludedRelationshipColumnIDs and excludedColumnIDs are left alone.
func (e *CascadeEngine) CascadeRemovePkColumn(ctx context.Context, projectID uuid.UUID, tableID, pkColumnID string, excludedRelationshipColumnIDs, excludedColumnIDs []string, rep *Reporter) ([]*models.CascadeRemovedInfo, error) {
	infos, _, err := e.removePkColumn(ctx, projectID, tableID, pkColumnID, toSet(excludedRelationshipColumnIDs), toSet(excludedColumnIDs), rep)
	return infos, err
}

func (e *CascadeEngine) removePkColumn(ctx context.Context, projectID uuid.UUID, tableID, pkColumnID string, exclRC, exclCols map[string]bool, rep *Reporter) ([]*models.CascadeRemovedInfo, []removedFk, error) {
	infos := []*models.CascadeRemovedInfo{}
	var next []removedFk

	rcs, err := e.ports.RelationshipColumns.FindByRefColumnID(ctx, projectID, pkColumnID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list referencing relationship columns: %w", err)
	}

	for _, rc := range rcs {
		if exclRC[rc.ID] {
			continue
		}
		rel, err := e.ports.Relationships.FindByID(ctx, projectID, rc.RelationshipID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load relationship: %w", err)
		}
		if rel == nil || rel.TgtTableID != tableID {
			continue
		}

		if _, err := e.members.RemoveRelationshipColumn(ctx, projectID, rc, false, rep); err != nil {
			return nil, nil, err
		}
		info := &models.CascadeRemovedInfo{
			RelationshipColumnID: rc.ID,
			RelationshipID:       rel.ID,
			FkTableID:            rel.SrcTableID,
		}

		if !exclCols[rc.FkColumnID] {
			remaining, err := e.ports.RelationshipColumns.FindByFkColumnID(ctx, projectID, rc.FkColumnID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to list FK column links: %w", err)
			}
			if len(remaining) == 0 {
				wasPk, err := e.deleteOrphanedColumn(ctx, projectID, rc.FkColumnID, rep)
				if err != nil {
					return nil, nil, err
				}
				info.FkColumnID = rc.FkColumnID
				if wasPk {
					next = append(next, removedFk{tableID: rel.SrcTableID, columnID: rc.FkColumnID})
				}
			}
		}

		e.logger.Debug("Cascade-removed FK link",
			zap.String("relationship_id", rel.ID),
			zap.String("relationship_column_id", rc.ID),
			zap.String("fk_column_id", info.FkColumnID))
		infos = append(infos, info)
	}

	rep.Removed(infos...)
	return infos, next, nil
}

func (e *CascadeEngine) deleteOrphanedColumn(ctx context.Context, projectID uuid.UUID, columnID string, rep *Reporter) (bool, error) {
	col, err := e.ports.Columns.FindByID(ctx, projectID, columnID)
	if err != nil {
		return false, fmt.Errorf("failed to load FK column: %w", err)
	}
	if col == nil {
		return false, nil
	}
	return e.members.DeleteColumn(ctx, projectID, col, rep)
}

// PropagatePkAdd runs the add cascade for a column that just joined tableID's primary
// key and follows identifying relationships down the chain. Relationships that already
// have a relationship column referencing pkColumnID are skipped.
//
// The walk stops after MaxDepth levels: the FK column added to the last table joins its
// primary key, but relationships that reference that table get no pair for it.
func (e *CascadeEngine) PropagatePkAdd(ctx context.Context, projectID uuid.UUID, tableID, pkColumnID string, rep *Reporter) ([]*models.CascadeCreatedInfo, error) {
	return e.propagatePkAdd(ctx, projectID, tableID, pkColumnID, 1, map[string]bool{}, rep)
}

func (e *CascadeEngine) propagatePkAdd(ctx context.Context, projectID uuid.UUID, tableID, pkColumnID string, depth int, visited map[string]bool, rep *Reporter) ([]*models.CascadeCreatedInfo, error) {
	if depth > e.opts.MaxDepth || visited[pkColumnID] {
		return nil, nil
	}
	visited[pkColumnID] = true

	if err := e.lock(ctx, projectID, tableID); err != nil {
		return nil, err
	}

	table, err := e.ports.Tables.FindByID(ctx, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	if table == nil {
		return nil, apperrors.NewNotFound(models.KindTable.Label(), tableID)
	}
	newPk, err := e.ports.Columns.FindByID(ctx, projectID, pkColumnID)
	if err != nil {
		return nil, fmt.Errorf("failed to load column: %w", err)
	}
	if newPk == nil {
		return nil, apperrors.NewNotFound(models.KindColumn.Label(), pkColumnID)
	}

	existing, err := e.primaryKeyColumns(ctx, projectID, tableID, pkColumnID)
	if err != nil {
		return nil, err
	}

	rels, err := e.ports.Relationships.FindByTgtTableID(ctx, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships targeting %s: %w", tableID, err)
	}
	var pending []*models.Relationship
	for _, rel := range rels {
		mirrored, err := e.mirrors(ctx, projectID, rel.ID, pkColumnID)
		if err != nil {
			return nil, err
		}
		if !mirrored {
			pending = append(pending, rel)
		}
	}

	infos, err := e.CascadeAddPkColumn(ctx, projectID, table, newPk, existing, pending, rep)
	if err != nil {
		return nil, err
	}

	all := infos
	for _, info := range infos {
		if info.ExistingConstraintColumnID == "" {
			continue
		}
		more, err := e.propagatePkAdd(ctx, projectID, info.FkTableID, info.FkColumnID, depth+1, visited, rep)
		if err != nil {
			return nil, err
		}
		all = append(all, more...)
	}
	return all, nil
}

// PropagatePkRemove runs the remove cascade for a column that just left tableID's
// primary key. FK columns deleted on the way that were themselves primary-key members
// carry the removal one level further. The walk runs until no such column is left, so
// no live relationship column is ever left referencing a deleted column; visited
// columns end cycles.
func (e *CascadeEngine) PropagatePkRemove(ctx context.Context, projectID uuid.UUID, tableID, pkColumnID string, excludedRelationshipColumnIDs, excludedColumnIDs []string, rep *Reporter) ([]*models.CascadeRemovedInfo, error) {
	exclRC, exclCols := toSet(excludedRelationshipColumnIDs), toSet(excludedColumnIDs)
	visited := map[string]bool{}

	var all []*models.CascadeRemovedInfo
	level := []removedFk{{tableID: tableID, columnID: pkColumnID}}
	for len(level) > 0 {
		var next []removedFk
		for _, r := range level {
			if visited[r.columnID] {
				continue
			}
			visited[r.columnID] = true

			if err := e.lock(ctx, projectID, r.tableID); err != nil {
				return nil, err
			}
			infos, more, err := e.removePkColumn(ctx, projectID, r.tableID, r.columnID, exclRC, exclCols, rep)
			if err != nil {
				return nil, err
			}
			all = append(all, infos...)
			next = append(next, more...)
		}
		level = next
	}
	if all == nil {
		all = []*models.CascadeRemovedInfo{}
	}
	return all, nil
}

// CascadeRelationship links a relationship that has no columns yet to every column of
// its target's primary key, creating the FK columns in its source table.
func (e *CascadeEngine) CascadeRelationship(ctx context.Context, projectID uuid.UUID, rel *models.Relationship, rep *Reporter) ([]*models.CascadeCreatedInfo, error) {
	if err := e.lock(ctx, projectID, rel.TgtTableID); err != nil {
		return nil, err
	}

	target, err := e.ports.Tables.FindByID(ctx, projectID, rel.TgtTableID)
	if err != nil {
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	if target == nil {
		return nil, apperrors.NewNotFound(models.KindTable.Label(), rel.TgtTableID)
	}
	pkCols, err := e.primaryKeyColumns(ctx, projectID, rel.TgtTableID, "")
	if err != nil {
		return nil, err
	}

	all := []*models.CascadeCreatedInfo{}
	visited := map[string]bool{}
	for i, pkCol := range pkCols {
		infos, err := e.CascadeAddPkColumn(ctx, projectID, target, pkCol, pkCols[:i], []*models.Relationship{rel}, rep)
		if err != nil {
			return nil, err
		}
		all = append(all, infos...)
		for _, info := range infos {
			if info.ExistingConstraintColumnID == "" {
				continue
			}
			more, err := e.propagatePkAdd(ctx, projectID, info.FkTableID, info.FkColumnID, 2, visited, rep)
			if err != nil {
				return nil, err
			}
			all = append(all, more...)
		}
	}
	return all, nil
}

// PromoteRelationship moves a relationship's FK columns into its source table's primary
// key, makes them NOT NULL and propagates the new key columns onward.
func (e *CascadeEngine) PromoteRelationship(ctx context.Context, projectID uuid.UUID, rel *models.Relationship, rep *Reporter) ([]*models.CascadeCreatedInfo, error) {
	rcs, err := e.ports.RelationshipColumns.FindByRelationshipID(ctx, projectID, rel.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship columns: %w", err)
	}

	all := []*models.CascadeCreatedInfo{}
	visited := map[string]bool{}
	for _, rc := range rcs {
		fk, err := e.ports.Columns.FindByID(ctx, projectID, rc.FkColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load FK column: %w", err)
		}
		if fk == nil {
			return nil, apperrors.NewNotFound(models.KindColumn.Label(), rc.FkColumnID)
		}
		if fk.IsNullable {
			fk.IsNullable = false
			if err := e.ports.Columns.Save(ctx, fk); err != nil {
				return nil, fmt.Errorf("failed to update FK column: %w", err)
			}
			rep.Column(fk, rc.RefColumnID)
		}
		if _, _, _, err := e.appendToPrimaryKey(ctx, projectID, rel.SrcTableID, fk, rc.RefColumnID, rep); err != nil {
			return nil, err
		}
		more, err := e.propagatePkAdd(ctx, projectID, rel.SrcTableID, fk.ID, 2, visited, rep)
		if err != nil {
			return nil, err
		}
		all = append(all, more...)
	}
	return all, nil
}

// DemoteRelationship takes a relationship's FK columns out of its source table's primary
// key, makes them nullable and removes what that key change propagated.
func (e *CascadeEngine) DemoteRelationship(ctx context.Context, projectID uuid.UUID, rel *models.Relationship, rep *Reporter) ([]*models.CascadeRemovedInfo, error) {
	rcs, err := e.ports.RelationshipColumns.FindByRelationshipID(ctx, projectID, rel.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	pk, err := e.ports.Constraints.FindPrimaryKeyByTableID(ctx, projectID, rel.SrcTableID)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary key: %w", err)
	}

	all := []*models.CascadeRemovedInfo{}
	for _, rc := range rcs {
		if pk != nil {
			ccs, err := e.ports.ConstraintColumns.FindByColumnID(ctx, projectID, rc.FkColumnID)
			if err != nil {
				return nil, fmt.Errorf("failed to list constraint memberships: %w", err)
			}
			for _, cc := range ccs {
				if cc.ConstraintID != pk.ID {
					continue
				}
				if _, err := e.members.RemoveConstraintColumn(ctx, projectID, cc, true, rep); err != nil {
					return nil, err
				}
				removed, err := e.PropagatePkRemove(ctx, projectID, rel.SrcTableID, rc.FkColumnID, nil, nil, rep)
				if err != nil {
					return nil, err
				}
				all = append(all, removed...)
			}
		}

		fk, err := e.ports.Columns.FindByID(ctx, projectID, rc.FkColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load FK column: %w", err)
		}
		if fk != nil && !fk.IsNullable {
			fk.IsNullable = true
			if err := e.ports.Columns.Save(ctx, fk); err != nil {
				return nil, fmt.Errorf("failed to update FK column: %w", err)
			}
			rep.Column(fk, rc.RefColumnID)
		}
	}
	return all, nil
}

// PropagateColumnType copies col's data type to every FK column that mirrors it,
// following chains of relationships. It returns the columns it changed.
func (e *CascadeEngine) PropagateColumnType(ctx context.Context, projectID uuid.UUID, col *models.Column, rep *Reporter) ([]*models.Column, error) {
	changed := []*models.Column{}
	visited := map[string]bool{col.ID: true}
	queue := []string{col.ID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rcs, err := e.ports.RelationshipColumns.FindByRefColumnID(ctx, projectID, current)
		if err != nil {
			return nil, fmt.Errorf("failed to list referencing relationship columns: %w", err)
		}
		for _, rc := range rcs {
			if visited[rc.FkColumnID] {
				continue
			}
			visited[rc.FkColumnID] = true

			fk, err := e.ports.Columns.FindByID(ctx, projectID, rc.FkColumnID)
			if err != nil {
				return nil, fmt.Errorf("failed to load FK column: %w", err)
			}
			if fk == nil {
				continue
			}
			if fk.DataType != col.DataType {
				fk.DataType = col.DataType
				if err := e.ports.Columns.Save(ctx, fk); err != nil {
					return nil, fmt.Errorf("failed to update FK column type: %w", err)
				}
				rep.Column(fk, current)
				changed = append(changed, fk)
			}
			queue = append(queue, fk.ID)
		}
	}
	return changed, nil
}

func (e *CascadeEngine) lock(ctx context.Context, projectID uuid.UUID, tableID string) error {
	if !e.opts.LockTargetTable {
		return nil
	}
	if err := e.ports.Tables.LockForUpdate(ctx, projectID, tableID); err != nil {
		return fmt.Errorf("failed to lock table %s: %w", tableID, err)
	}
	return nil
}

// primaryKeyColumns returns tableID's primary-key columns in key order, leaving out
// exceptID.
func (e *CascadeEngine) primaryKeyColumns(ctx context.Context, projectID uuid.UUID, tableID, exceptID string) ([]*models.Column, error) {
	pk, err := e.ports.Constraints.FindPrimaryKeyByTableID(ctx, projectID, tableID)
	if err != nil {
		return nil, fmt.Errorf("failed to load primary key: %w", err)
	}
	if pk == nil {
		return nil, nil
	}
	ccs, err := e.ports.ConstraintColumns.FindByConstraintID(ctx, projectID, pk.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list primary key columns: %w", err)
	}

	cols := make([]*models.Column, 0, len(ccs))
	for _, cc := range ccs {
		if cc.ColumnID == exceptID {
			continue
		}
		c, err := e.ports.Columns.FindByID(ctx, projectID, cc.ColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load primary key column: %w", err)
		}
		if c != nil {
			cols = append(cols, c)
		}
	}
	return cols, nil
}

// mirrors reports whether relationshipID already has a pair referencing columnID.
func (e *CascadeEngine) mirrors(ctx context.Context, projectID uuid.UUID, relationshipID, columnID string) (bool, error) {
	rcs, err := e.ports.RelationshipColumns.FindByRelationshipID(ctx, projectID, relationshipID)
	if err != nil {
		return false, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	for _, rc := range rcs {
		if rc.RefColumnID == columnID {
			return true, nil
		}
	}
	return false, nil
}

func (e *CascadeEngine) uniqueConstraintName(ctx context.Context, projectID uuid.UUID, schemaID, base string) (string, error) {
	name := base
	for i := 1; ; i++ {
		taken, err := e.ports.Constraints.ExistsBySchemaAndNameExcludingID(ctx, projectID, schemaID, name, "")
		if err != nil {
			return "", fmt.Errorf("failed to check constraint name: %w", err)
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}

// uniqueColumnName returns base, or base_1, base_2, ... when a column of that name
// already exists. Names compare case-insensitively.
func uniqueColumnName(existing []*models.Column, base string) string {
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[strings.ToLower(c.Name)] = true
	}
	name := base
	for i := 1; taken[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
