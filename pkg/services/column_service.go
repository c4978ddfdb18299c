package services

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
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
)

// ColumnService mutates table columns. Ordinal positions stay 1..n per table.
type ColumnService interface {
	// AddColumn inserts a column at OrdinalPosition, shifting later columns, or appends it.
	AddColumn(ctx context.Context, cmd *models.AddColumnCommand) (*models.MutationResult, error)
	RenameColumn(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error)
	MoveColumn(ctx context.Context, cmd *models.MoveColumnCommand) (*models.MutationResult, error)
	// ChangeColumnType changes the data type and copies it to every FK column mirroring
	// the column.
	ChangeColumnType(ctx context.Context, cmd *models.ChangeColumnTypeCommand) (*models.MutationResult, error)
	// DeleteColumn removes the column from its constraints, indexes and relationships
	// before deleting it. Leaving a primary key cascades.
	DeleteColumn(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error)
}

type columnService struct {
	mutator
}

// NewColumnService creates a new column service with dependencies.
func NewColumnService(
	ports *repositories.Ports,
	engine *propagation.Engine,
	gen idgen.Generator,
	logger *zap.Logger,
) ColumnService {
	return &columnService{
		mutator: newMutator(ports, engine, gen, logger.Named("columns")),
	}
}

var _ ColumnService = (*columnService)(nil)

func (s *columnService) AddColumn(ctx context.Context, cmd *models.AddColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindColumn, cmd.Name)
		if err != nil {
			return nil, err
		}
		dataType := strings.TrimSpace(cmd.DataType)
		if dataType == "" {
			return nil, apperrors.NewValidation(apperrors.RuleBlankName, "column data type must not be blank")
		}
		table, err := s.loadTable(ctx, cmd.ProjectID, cmd.TableID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, table.ID, name, ""); err != nil {
			return nil, err
		}

		cols, err := s.ports.Columns.FindByTableID(ctx, cmd.ProjectID, table.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list columns: %w", err)
		}
		pos := len(cols) + 1
		if cmd.OrdinalPosition != nil {
			pos = *cmd.OrdinalPosition
			if pos < 1 || pos > len(cols)+1 {
				return nil, apperrors.NewValidation(apperrors.RuleInvalidPosition, "ordinal position must be between 1 and %d, got %d", len(cols)+1, pos)
			}
		}

		session := s.session(cmd.ProjectID, models.KindColumn, cmd.SnapshotPair)
		// Shift from the end so positions never collide mid-way.
		for i := len(cols) - 1; i >= pos-1; i-- {
			c := cols[i]
			c.OrdinalPosition = i + 2
			if err := s.ports.Columns.Save(ctx, c); err != nil {
				return nil, fmt.Errorf("failed to shift column %s: %w", c.ID, err)
			}
			session.Report.Column(c, "")
		}

		col := &models.Column{
			ID:              s.ids.Generate(),
			ProjectID:       cmd.ProjectID,
			TableID:         table.ID,
			Name:            name,
			DataType:        dataType,
			OrdinalPosition: pos,
			IsNullable:      cmd.IsNullable,
			IsAutoIncrement: cmd.IsAutoIncrement,
		}
		if err := s.ports.Columns.Save(ctx, col); err != nil {
			return nil, fmt.Errorf("failed to save column: %w", err)
		}

		if err := session.Seed(models.KindColumn, cmd.LogicalID, col.ID); err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, col.ID), col.ID); err != nil {
			return nil, err
		}

		s.logger.Info("Added column",
			zap.String("column_id", col.ID),
			zap.String("table_id", table.ID),
			zap.Int("ordinal_position", pos),
		)
		return session.Result(col.ID), nil
	})
}

func (s *columnService) RenameColumn(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindColumn, cmd.Name)
		if err != nil {
			return nil, err
		}
		col, err := s.loadColumn(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, col.TableID, name, col.ID); err != nil {
			return nil, err
		}

		col.Name = name
		if err := s.ports.Columns.Save(ctx, col); err != nil {
			return nil, fmt.Errorf("failed to save column: %w", err)
		}
		session := s.session(cmd.ProjectID, models.KindColumn, cmd.SnapshotPair)
		if _, err := session.Walk(ctx, col.ID, col.ID); err != nil {
			return nil, err
		}
		return session.Result(col.ID), nil
	})
}

func (s *columnService) MoveColumn(ctx context.Context, cmd *models.MoveColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		col, err := s.loadColumn(ctx, cmd.ProjectID, cmd.ColumnID)
		if err != nil {
			return nil, err
		}
		cols, err := s.ports.Columns.FindByTableID(ctx, cmd.ProjectID, col.TableID)
		if err != nil {
			return nil, fmt.Errorf("failed to list columns: %w", err)
		}
		if cmd.OrdinalPosition < 1 || cmd.OrdinalPosition > len(cols) {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidPosition, "ordinal position must be between 1 and %d, got %d", len(cols), cmd.OrdinalPosition)
		}

		ordered := make([]*models.Column, 0, len(cols))
		for _, c := range cols {
			if c.ID != col.ID {
				ordered = append(ordered, c)
			}
		}
		at := cmd.OrdinalPosition - 1
		ordered = append(ordered[:at], append([]*models.Column{col}, ordered[at:]...)...)

		session := s.session(cmd.ProjectID, models.KindColumn, cmd.SnapshotPair)
		for i, c := range ordered {
			if c.OrdinalPosition == i+1 {
				continue
			}
			c.OrdinalPosition = i + 1
			if err := s.ports.Columns.Save(ctx, c); err != nil {
				return nil, fmt.Errorf("failed to move column %s: %w", c.ID, err)
			}
			if c.ID != col.ID {
				session.Report.Column(c, "")
			}
		}
		if _, err := session.Walk(ctx, col.ID, col.ID); err != nil {
			return nil, err
		}
		return session.Result(col.ID), nil
	})
}

func (s *columnService) ChangeColumnType(ctx context.Context, cmd *models.ChangeColumnTypeCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		dataType := strings.TrimSpace(cmd.DataType)
		if dataType == "" {
			return nil, apperrors.NewValidation(apperrors.RuleBlankName, "column data type must not be blank")
		}
		col, err := s.loadColumn(ctx, cmd.ProjectID, cmd.ColumnID)
		if err != nil {
			return nil, err
		}

		col.DataType = dataType
		if err := s.ports.Columns.Save(ctx, col); err != nil {
			return nil, fmt.Errorf("failed to save column: %w", err)
		}
		session := s.session(cmd.ProjectID, models.KindColumn, cmd.SnapshotPair)
		if _, err := session.Walk(ctx, col.ID, col.ID); err != nil {
			return nil, err
		}
		changed, err := s.engine.Cascade.PropagateColumnType(ctx, cmd.ProjectID, col, session.Report)
		if err != nil {
			return nil, err
		}

		s.logger.Debug("Changed column type",
			zap.String("column_id", col.ID),
			zap.String("data_type", dataType),
			zap.Int("fk_columns_changed", len(changed)),
		)
		return session.Result(col.ID), nil
	})
}

func (s *columnService) DeleteColumn(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		col, err := s.loadColumn(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		session := s.session(cmd.ProjectID, models.KindColumn, cmd.SnapshotPair)

		asFk, err := s.ports.RelationshipColumns.FindByFkColumnID(ctx, cmd.ProjectID, col.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}
		for _, rc := range asFk {
			if _, err := s.engine.Members.RemoveRelationshipColumn(ctx, cmd.ProjectID, rc, true, session.Report); err != nil {
				return nil, err
			}
		}

		wasPk, err := s.engine.Members.DeleteColumn(ctx, cmd.ProjectID, col, session.Report)
		if err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, col.ID, col.ID); err != nil {
			return nil, err
		}
		if wasPk {
			exclRC, exclCols := excluded(session, cmd.SnapshotPair)
			if _, err := s.engine.Cascade.PropagatePkRemove(ctx, cmd.ProjectID, col.TableID, col.ID, exclRC, exclCols, session.Report); err != nil {
				return nil, err
			}
		}

		// References the cascade did not cover: the column was referenced without being a key.
		asRef, err := s.ports.RelationshipColumns.FindByRefColumnID(ctx, cmd.ProjectID, col.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}
		for _, rc := range asRef {
			if _, err := s.engine.Members.RemoveRelationshipColumn(ctx, cmd.ProjectID, rc, true, session.Report); err != nil {
				return nil, err
			}
		}

		s.logger.Info("Deleted column",
			zap.String("column_id", col.ID),
			zap.String("table_id", col.TableID),
			zap.Bool("was_pk", wasPk),
		)
		return session.Result(col.ID), nil
	})
}

func (s *columnService) checkName(ctx context.Context, projectID uuid.UUID, tableID, name, excludeID string) error {
	exists, err := s.ports.Columns.ExistsByTableAndNameExcludingID(ctx, projectID, tableID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check column name: %w", err)
	}
	if exists {
		return apperrors.NewValidation(apperrors.RuleDuplicateName, "column name %q is already used in this table", name)
	}
	return nil
}
