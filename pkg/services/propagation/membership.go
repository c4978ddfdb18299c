package propagation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
)

// Members removes link rows and keeps their owners' seq_no (and a table's ordinal
// positions) contiguous. Every row it rewrites is reported as propagated.
type Members struct {
	ports  *repositories.Ports
	logger *zap.Logger
}

// NewMembers creates a Members helper.
func NewMembers(ports *repositories.Ports, logger *zap.Logger) *Members {
	return &Members{ports: ports, logger: logger.Named("members")}
}

// RemoveConstraintColumn soft-deletes cc and renumbers the rest of its constraint.
// When deleteEmptyOwner is set and no members remain, the constraint is deleted too.
func (m *Members) RemoveConstraintColumn(ctx context.Context, projectID uuid.UUID, cc *models.ConstraintColumn, deleteEmptyOwner bool, rep *Reporter) (bool, error) {
	if err := m.ports.ConstraintColumns.SoftDeleteByID(ctx, projectID, cc.ID); err != nil {
		return false, fmt.Errorf("failed to delete constraint column: %w", err)
	}
	rep.Deleted(models.KindConstraintColumn, cc.ID)

	rest, err := m.ports.ConstraintColumns.FindByConstraintID(ctx, projectID, cc.ConstraintID)
	if err != nil {
		return false, fmt.Errorf("failed to list constraint columns: %w", err)
	}
	for i, other := range rest {
		if other.SeqNo == i {
			continue
		}
		other.SeqNo = i
		if err := m.ports.ConstraintColumns.Save(ctx, other); err != nil {
			return false, fmt.Errorf("failed to renumber constraint column: %w", err)
		}
		rep.ConstraintColumn(other, "")
	}

	if len(rest) > 0 || !deleteEmptyOwner {
		return false, nil
	}
	if err := m.ports.Constraints.SoftDeleteByID(ctx, projectID, cc.ConstraintID); err != nil {
		return false, fmt.Errorf("failed to delete empty constraint: %w", err)
	}
	rep.Deleted(models.KindConstraint, cc.ConstraintID)
	m.logger.Debug("Deleted empty constraint", zap.String("constraint_id", cc.ConstraintID))
	return true, nil
}

// RemoveIndexColumn soft-deletes ic and renumbers the rest of its index.
// When deleteEmptyOwner is set and no members remain, the index is deleted too.
func (m *Members) RemoveIndexColumn(ctx context.Context, projectID uuid.UUID, ic *models.IndexColumn, deleteEmptyOwner bool, rep *Reporter) (bool, error) {
	if err := m.ports.IndexColumns.SoftDeleteByID(ctx, projectID, ic.ID); err != nil {
		return false, fmt.Errorf("failed to delete index column: %w", err)
	}
	rep.Deleted(models.KindIndexColumn, ic.ID)

	rest, err := m.ports.IndexColumns.FindByIndexID(ctx, projectID, ic.IndexID)
	if err != nil {
		return false, fmt.Errorf("failed to list index columns: %w", err)
	}
	for i, other := range rest {
		if other.SeqNo == i {
			continue
		}
		other.SeqNo = i
		if err := m.ports.IndexColumns.Save(ctx, other); err != nil {
			return false, fmt.Errorf("failed to renumber index column: %w", err)
		}
		rep.IndexColumn(other, "")
	}

	if len(rest) > 0 || !deleteEmptyOwner {
		return false, nil
	}
	if err := m.ports.Indexes.SoftDeleteByID(ctx, projectID, ic.IndexID); err != nil {
		return false, fmt.Errorf("failed to delete empty index: %w", err)
	}
	rep.Deleted(models.KindIndex, ic.IndexID)
	m.logger.Debug("Deleted empty index", zap.String("index_id", ic.IndexID))
	return true, nil
}

// RemoveRelationshipColumn soft-deletes rc and renumbers the rest of its relationship.
// When deleteEmptyOwner is set and no pairs remain, the relationship is deleted too.
func (m *Members) RemoveRelationshipColumn(ctx context.Context, projectID uuid.UUID, rc *models.RelationshipColumn, deleteEmptyOwner bool, rep *Reporter) (bool, error) {
	if err := m.ports.RelationshipColumns.SoftDeleteByID(ctx, projectID, rc.ID); err != nil {
		return false, fmt.Errorf("failed to delete relationship column: %w", err)
	}
	rep.Deleted(models.KindRelationshipColumn, rc.ID)

	rest, err := m.ports.RelationshipColumns.FindByRelationshipID(ctx, projectID, rc.RelationshipID)
	if err != nil {
		return false, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	for i, other := range rest {
		if other.SeqNo == i {
			continue
		}
		other.SeqNo = i
		if err := m.ports.RelationshipColumns.Save(ctx, other); err != nil {
			return false, fmt.Errorf("failed to renumber relationship column: %w", err)
		}
		rep.RelationshipColumn(other, other.RefColumnID)
	}

	if len(rest) > 0 || !deleteEmptyOwner {
		return false, nil
	}
	if err := m.ports.Relationships.SoftDeleteByID(ctx, projectID, rc.RelationshipID); err != nil {
		return false, fmt.Errorf("failed to delete empty relationship: %w", err)
	}
	rep.Deleted(models.KindRelationship, rc.RelationshipID)
	m.logger.Debug("Deleted empty relationship", zap.String("relationship_id", rc.RelationshipID))
	return true, nil
}

// CompactOrdinals renumbers a table's live columns to 1..n in their current order.
func (m *Members) CompactOrdinals(ctx context.Context, projectID uuid.UUID, tableID string, rep *Reporter) error {
	cols, err := m.ports.Columns.FindByTableID(ctx, projectID, tableID)
	if err != nil {
		return fmt.Errorf("failed to list columns: %w", err)
	}
	for i, c := range cols {
		if c.OrdinalPosition == i+1 {
			continue
		}
		c.OrdinalPosition = i + 1
		if err := m.ports.Columns.Save(ctx, c); err != nil {
			return fmt.Errorf("failed to renumber column %s: %w", c.ID, err)
		}
		rep.Column(c, "")
	}
	return nil
}

// DetachColumn removes every constraint and index membership of a column, deleting
// owners left empty. It reports whether the column was in its table's primary key.
func (m *Members) DetachColumn(ctx context.Context, projectID uuid.UUID, columnID string, rep *Reporter) (bool, error) {
	wasPk := false

	ccs, err := m.ports.ConstraintColumns.FindByColumnID(ctx, projectID, columnID)
	if err != nil {
		return false, fmt.Errorf("failed to list constraint memberships: %w", err)
	}
	for _, cc := range ccs {
		c, err := m.ports.Constraints.FindByID(ctx, projectID, cc.ConstraintID)
		if err != nil {
			return false, fmt.Errorf("failed to load constraint: %w", err)
		}
		if c.IsPrimaryKey() {
			wasPk = true
		}
		if _, err := m.RemoveConstraintColumn(ctx, projectID, cc, true, rep); err != nil {
			return false, err
		}
	}

	ics, err := m.ports.IndexColumns.FindByColumnID(ctx, projectID, columnID)
	if err != nil {
		return false, fmt.Errorf("failed to list index memberships: %w", err)
	}
	for _, ic := range ics {
		if _, err := m.RemoveIndexColumn(ctx, projectID, ic, true, rep); err != nil {
			return false, err
		}
	}
	return wasPk, nil
}

// DeleteColumn detaches col from its constraints and indexes, soft-deletes it and
// compacts its table's ordinals. It reports whether col was a primary-key member.
// Relationship columns that use col are left to the caller.
func (m *Members) DeleteColumn(ctx context.Context, projectID uuid.UUID, col *models.Column, rep *Reporter) (bool, error) {
	wasPk, err := m.DetachColumn(ctx, projectID, col.ID, rep)
	if err != nil {
		return false, err
	}
	if err := m.ports.Columns.SoftDeleteByID(ctx, projectID, col.ID); err != nil {
		return false, fmt.Errorf("failed to delete column: %w", err)
	}
	rep.Deleted(models.KindColumn, col.ID)

	if err := m.CompactOrdinals(ctx, projectID, col.TableID, rep); err != nil {
		return false, err
	}
	return wasPk, nil
}
