package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/logging"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
	"github.com/ekaya-inc/ekaya-erd/pkg/sql"
)

// ConstraintService mutates constraints and their column memberships. Primary-key
// membership changes cascade to the FK columns that reference the key.
type ConstraintService interface {
	CreateConstraint(ctx context.Context, cmd *models.CreateConstraintCommand) (*models.MutationResult, error)
	AddColumnToConstraint(ctx context.Context, cmd *models.AddConstraintColumnCommand) (*models.MutationResult, error)
	RemoveColumnFromConstraint(ctx context.Context, cmd *models.RemoveConstraintColumnCommand) (*models.MutationResult, error)
	ChangeConstraintName(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error)
	// ChangeConstraintExpression replaces the expression of a CHECK or DEFAULT constraint.
	ChangeConstraintExpression(ctx context.Context, cmd *models.ChangeConstraintExpressionCommand) (*models.MutationResult, error)
	DeleteConstraint(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error)
}

type constraintService struct {
	mutator
	expressions ExpressionValidator
}

// NewConstraintService creates a new constraint service with dependencies.
func NewConstraintService(
	ports *repositories.Ports,
	engine *propagation.Engine,
	gen idgen.Generator,
	expressions ExpressionValidator,
	logger *zap.Logger,
) ConstraintService {
	return &constraintService{
		mutator:     newMutator(ports, engine, gen, logger.Named("constraints")),
		expressions: expressions,
	}
}

var _ ConstraintService = (*constraintService)(nil)

func (s *constraintService) CreateConstraint(ctx context.Context, cmd *models.CreateConstraintCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindConstraint, cmd.Name)
		if err != nil {
			return nil, err
		}
		if !cmd.Kind.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown constraint kind %q", cmd.Kind)
		}
		table, err := s.loadTable(ctx, cmd.ProjectID, cmd.TableID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, table.SchemaID, name, ""); err != nil {
			return nil, err
		}

		ids := make([]string, len(cmd.Columns))
		for i, in := range cmd.Columns {
			ids[i] = in.ColumnID
		}
		cols, err := s.loadTableColumns(ctx, cmd.ProjectID, table.ID, ids)
		if err != nil {
			return nil, err
		}

		c := &models.Constraint{
			ProjectID: cmd.ProjectID,
			TableID:   table.ID,
			Name:      name,
			Kind:      cmd.Kind,
		}
		switch cmd.Kind {
		case models.ConstraintPrimaryKey, models.ConstraintUnique:
			if len(cols) == 0 {
				return nil, apperrors.NewValidation(apperrors.RuleColumnCount, "%s constraint needs at least one column", cmd.Kind)
			}
			if cmd.Kind == models.ConstraintPrimaryKey {
				existing, err := s.ports.Constraints.FindPrimaryKeyByTableID(ctx, cmd.ProjectID, table.ID)
				if err != nil {
					return nil, fmt.Errorf("failed to load primary key: %w", err)
				}
				if existing != nil {
					return nil, apperrors.NewValidation(apperrors.RulePrimaryKeyExists, "table %s already has primary key %s", table.Name, existing.Name)
				}
			}
			if err := s.checkColumnSet(ctx, cmd.ProjectID, table.ID, cmd.Kind, "", ids); err != nil {
				return nil, err
			}
		case models.ConstraintCheck:
			if len(cols) > 1 {
				return nil, apperrors.NewValidation(apperrors.RuleColumnCount, "CHECK constraint takes at most one column")
			}
			expr, err := s.expression(sql.CheckExpression, cmd.CheckExpr)
			if err != nil {
				return nil, err
			}
			c.CheckExpr = &expr
			if len(cols) == 1 {
				if err := s.checkColumnSet(ctx, cmd.ProjectID, table.ID, cmd.Kind, "", ids); err != nil {
					return nil, err
				}
			}
		case models.ConstraintDefault:
			if len(cols) != 1 {
				return nil, apperrors.NewValidation(apperrors.RuleColumnCount, "DEFAULT constraint takes exactly one column")
			}
			expr, err := s.expression(sql.DefaultExpression, cmd.DefaultExpr)
			if err != nil {
				return nil, err
			}
			c.DefaultExpr = &expr
			if err := s.checkColumnSet(ctx, cmd.ProjectID, table.ID, cmd.Kind, "", ids); err != nil {
				return nil, err
			}
		}

		c.ID = s.ids.Generate()
		if err := s.ports.Constraints.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to save constraint: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindConstraint, cmd.SnapshotPair)
		if err := session.Seed(models.KindConstraint, cmd.LogicalID, c.ID); err != nil {
			return nil, err
		}
		memberLogicalIDs := make([]string, 0, len(cols))
		for i, col := range cols {
			cc := &models.ConstraintColumn{
				ID:           s.ids.Generate(),
				ProjectID:    cmd.ProjectID,
				ConstraintID: c.ID,
				ColumnID:     col.ID,
				SeqNo:        i,
			}
			if err := s.ports.ConstraintColumns.Save(ctx, cc); err != nil {
				return nil, fmt.Errorf("failed to save constraint column: %w", err)
			}
			if err := session.Seed(models.KindConstraintColumn, cmd.Columns[i].LogicalID, cc.ID); err != nil {
				return nil, err
			}
			memberLogicalIDs = append(memberLogicalIDs, logicalOr(cmd.Columns[i].LogicalID, cc.ID))
		}

		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, c.ID), c.ID, memberLogicalIDs...); err != nil {
			return nil, err
		}

		if c.IsPrimaryKey() {
			for _, col := range cols {
				if _, err := s.engine.Cascade.PropagatePkAdd(ctx, cmd.ProjectID, table.ID, col.ID, session.Report); err != nil {
					return nil, err
				}
			}
		}

		s.logger.Info("Created constraint",
			zap.String("constraint_id", c.ID),
			zap.String("table_id", table.ID),
			zap.String("kind", string(c.Kind)),
			zap.Int("columns", len(cols)),
		)
		return session.Result(c.ID), nil
	})
}

func (s *constraintService) AddColumnToConstraint(ctx context.Context, cmd *models.AddConstraintColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		c, err := s.loadConstraint(ctx, cmd.ProjectID, cmd.ConstraintID)
		if err != nil {
			return nil, err
		}
		cols, err := s.loadTableColumns(ctx, cmd.ProjectID, c.TableID, []string{cmd.ColumnID})
		if err != nil {
			return nil, err
		}
		col := cols[0]

		members, err := s.ports.ConstraintColumns.FindByConstraintID(ctx, cmd.ProjectID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list constraint columns: %w", err)
		}
		set := make([]string, 0, len(members)+1)
		for _, cc := range members {
			if cc.ColumnID == col.ID {
				return nil, apperrors.NewValidation(apperrors.RuleAlreadyMember, "column %s is already in constraint %s", col.Name, c.Name)
			}
			set = append(set, cc.ColumnID)
		}
		if err := requireSeqNo(cmd.SeqNo, len(members)); err != nil {
			return nil, err
		}
		set = append(set, col.ID)

		switch c.Kind {
		case models.ConstraintCheck, models.ConstraintDefault:
			if len(members) > 0 {
				return nil, apperrors.NewValidation(apperrors.RuleColumnCount, "%s constraint takes a single column", c.Kind)
			}
		}
		if err := s.checkColumnSet(ctx, cmd.ProjectID, c.TableID, c.Kind, c.ID, set); err != nil {
			return nil, err
		}

		cc := &models.ConstraintColumn{
			ID:           s.ids.Generate(),
			ProjectID:    cmd.ProjectID,
			ConstraintID: c.ID,
			ColumnID:     col.ID,
			SeqNo:        cmd.SeqNo,
		}
		if err := s.ports.ConstraintColumns.Save(ctx, cc); err != nil {
			return nil, fmt.Errorf("failed to save constraint column: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindConstraintColumn, cmd.SnapshotPair)
		if err := session.Seed(models.KindConstraintColumn, cmd.LogicalID, cc.ID); err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, cc.ID), cc.ID); err != nil {
			return nil, err
		}

		if c.IsPrimaryKey() {
			if _, err := s.engine.Cascade.PropagatePkAdd(ctx, cmd.ProjectID, c.TableID, col.ID, session.Report); err != nil {
				return nil, err
			}
		}

		s.logger.Debug("Added column to constraint",
			zap.String("constraint_id", c.ID),
			zap.String("column_id", col.ID),
			zap.Int("seq_no", cc.SeqNo),
		)
		return session.Result(cc.ID), nil
	})
}

func (s *constraintService) RemoveColumnFromConstraint(ctx context.Context, cmd *models.RemoveConstraintColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		cc, err := s.ports.ConstraintColumns.FindByID(ctx, cmd.ProjectID, cmd.ConstraintColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load constraint column: %w", err)
		}
		if cc == nil {
			return nil, apperrors.NewNotFound(models.KindConstraintColumn.Label(), cmd.ConstraintColumnID)
		}
		c, err := s.loadConstraint(ctx, cmd.ProjectID, cc.ConstraintID)
		if err != nil {
			return nil, err
		}

		session := s.session(cmd.ProjectID, models.KindConstraintColumn, cmd.SnapshotPair)
		deleted, err := s.engine.Members.RemoveConstraintColumn(ctx, cmd.ProjectID, cc, true, session.Report)
		if err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, cc.ID, cc.ID); err != nil {
			return nil, err
		}

		if c.IsPrimaryKey() {
			exclRC, exclCols := excluded(session, cmd.SnapshotPair)
			if _, err := s.engine.Cascade.PropagatePkRemove(ctx, cmd.ProjectID, c.TableID, cc.ColumnID, exclRC, exclCols, session.Report); err != nil {
				return nil, err
			}
		}

		s.logger.Debug("Removed column from constraint",
			zap.String("constraint_id", c.ID),
			zap.String("column_id", cc.ColumnID),
			zap.Bool("constraint_deleted", deleted),
		)
		return session.Result(cc.ID), nil
	})
}

func (s *constraintService) ChangeConstraintName(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindConstraint, cmd.Name)
		if err != nil {
			return nil, err
		}
		c, err := s.loadConstraint(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		table, err := s.loadTable(ctx, cmd.ProjectID, c.TableID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, table.SchemaID, name, c.ID); err != nil {
			return nil, err
		}

		c.Name = name
		if err := s.ports.Constraints.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to save constraint: %w", err)
		}
		return s.finish(ctx, cmd.ProjectID, cmd.SnapshotPair, c.ID)
	})
}

func (s *constraintService) ChangeConstraintExpression(ctx context.Context, cmd *models.ChangeConstraintExpressionCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		c, err := s.loadConstraint(ctx, cmd.ProjectID, cmd.ConstraintID)
		if err != nil {
			return nil, err
		}
		switch c.Kind {
		case models.ConstraintCheck:
			expr, err := s.expression(sql.CheckExpression, &cmd.Expression)
			if err != nil {
				return nil, err
			}
			c.CheckExpr = &expr
		case models.ConstraintDefault:
			expr, err := s.expression(sql.DefaultExpression, &cmd.Expression)
			if err != nil {
				return nil, err
			}
			c.DefaultExpr = &expr
		default:
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "%s constraint has no expression", c.Kind)
		}

		if err := s.ports.Constraints.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to save constraint: %w", err)
		}
		return s.finish(ctx, cmd.ProjectID, cmd.SnapshotPair, c.ID)
	})
}

func (s *constraintService) DeleteConstraint(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		c, err := s.loadConstraint(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		members, err := s.ports.ConstraintColumns.FindByConstraintID(ctx, cmd.ProjectID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list constraint columns: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindConstraint, cmd.SnapshotPair)
		// Last to first, so no surviving member is renumbered.
		for i := len(members) - 1; i >= 0; i-- {
			if _, err := s.engine.Members.RemoveConstraintColumn(ctx, cmd.ProjectID, members[i], false, session.Report); err != nil {
				return nil, err
			}
		}
		if err := s.ports.Constraints.SoftDeleteByID(ctx, cmd.ProjectID, c.ID); err != nil {
			return nil, fmt.Errorf("failed to delete constraint: %w", err)
		}
		session.Report.Deleted(models.KindConstraint, c.ID)

		if _, err := session.Walk(ctx, c.ID, c.ID); err != nil {
			return nil, err
		}

		if c.IsPrimaryKey() {
			exclRC, exclCols := excluded(session, cmd.SnapshotPair)
			for _, cc := range members {
				if _, err := s.engine.Cascade.PropagatePkRemove(ctx, cmd.ProjectID, c.TableID, cc.ColumnID, exclRC, exclCols, session.Report); err != nil {
					return nil, err
				}
			}
		}

		s.logger.Info("Deleted constraint",
			zap.String("constraint_id", c.ID),
			zap.String("kind", string(c.Kind)),
		)
		return session.Result(c.ID), nil
	})
}

// finish runs the walk for a command whose direct change touched only entityID.
func (s *constraintService) finish(ctx context.Context, projectID uuid.UUID, pair models.SnapshotPair, entityID string) (*models.MutationResult, error) {
	session := s.session(projectID, models.KindConstraint, pair)
	if _, err := session.Walk(ctx, entityID, entityID); err != nil {
		return nil, err
	}
	return session.Result(entityID), nil
}

func (s *constraintService) checkName(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) error {
	exists, err := s.ports.Constraints.ExistsBySchemaAndNameExcludingID(ctx, projectID, schemaID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check constraint name: %w", err)
	}
	if exists {
		return duplicateName(models.KindConstraint, name)
	}
	return nil
}

// checkColumnSet rejects a column set already covered by another constraint of the
// table. Keys (PRIMARY_KEY, UNIQUE) collide with either key kind; CHECK and DEFAULT
// collide only with their own kind. Sets are compared regardless of order.
func (s *constraintService) checkColumnSet(ctx context.Context, projectID uuid.UUID, tableID string, kind models.ConstraintKind, selfID string, set []string) error {
	if len(set) == 0 {
		return nil
	}
	others, err := s.ports.Constraints.FindByTableID(ctx, projectID, tableID)
	if err != nil {
		return fmt.Errorf("failed to list constraints: %w", err)
	}
	for _, other := range others {
		if other.ID == selfID || !collides(kind, other.Kind) {
			continue
		}
		members, err := s.ports.ConstraintColumns.FindByConstraintID(ctx, projectID, other.ID)
		if err != nil {
			return fmt.Errorf("failed to list constraint columns: %w", err)
		}
		ids := make([]string, len(members))
		for i, cc := range members {
			ids[i] = cc.ColumnID
		}
		if len(ids) == 0 || !sameSet(ids, set) {
			continue
		}
		if other.Kind == kind {
			return apperrors.NewValidation(apperrors.RuleDuplicateColumnSet, "constraint %s already covers these columns", other.Name)
		}
		return apperrors.NewValidation(apperrors.RuleUniqueEqualsPK, "UNIQUE constraint would repeat the primary key (%s)", other.Name)
	}
	return nil
}

func isKey(kind models.ConstraintKind) bool {
	return kind == models.ConstraintPrimaryKey || kind == models.ConstraintUnique
}

func collides(kind, other models.ConstraintKind) bool {
	if isKey(kind) {
		return isKey(other)
	}
	return kind == other
}

func (s *constraintService) expression(kind sql.ExpressionKind, fragment *string) (string, error) {
	if fragment == nil {
		return "", apperrors.NewValidation(apperrors.RuleInvalidExpression, "%s constraint needs an expression", kind)
	}
	normalized, err := s.expressions.Validate(kind, *fragment)
	if err != nil {
		s.logger.Debug("Rejected constraint expression",
			zap.String("kind", string(kind)),
			zap.String("expression", logging.TruncateExpression(*fragment)),
			zap.Error(err))
		return "", apperrors.NewValidation(apperrors.RuleInvalidExpression, "%s", err.Error())
	}
	return normalized, nil
}
