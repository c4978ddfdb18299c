package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
)

// IndexService mutates indexes and their column memberships.
type IndexService interface {
	CreateIndex(ctx context.Context, cmd *models.CreateIndexCommand) (*models.MutationResult, error)
	AddColumnToIndex(ctx context.Context, cmd *models.AddIndexColumnCommand) (*models.MutationResult, error)
	RemoveColumnFromIndex(ctx context.Context, cmd *models.RemoveIndexColumnCommand) (*models.MutationResult, error)
	ChangeIndexName(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error)
	ChangeIndexColumnSortDirection(ctx context.Context, cmd *models.ChangeIndexColumnSortCommand) (*models.MutationResult, error)
	DeleteIndex(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error)
}

type indexService struct {
	mutator
}

// NewIndexService creates a new index service with dependencies.
func NewIndexService(
	ports *repositories.Ports,
	engine *propagation.Engine,
	gen idgen.Generator,
	logger *zap.Logger,
) IndexService {
	return &indexService{
		mutator: newMutator(ports, engine, gen, logger.Named("indexes")),
	}
}

var _ IndexService = (*indexService)(nil)

func (s *indexService) CreateIndex(ctx context.Context, cmd *models.CreateIndexCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindIndex, cmd.Name)
		if err != nil {
			return nil, err
		}
		indexType := cmd.Type
		if indexType == "" {
			indexType = models.IndexTypeBTree
		}
		if !indexType.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown index type %q", indexType)
		}
		table, err := s.loadTable(ctx, cmd.ProjectID, cmd.TableID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, table.SchemaID, name, ""); err != nil {
			return nil, err
		}

		if len(cmd.Columns) == 0 {
			return nil, apperrors.NewValidation(apperrors.RuleColumnCount, "index needs at least one column")
		}
		ids := make([]string, len(cmd.Columns))
		directions := make([]models.SortDirection, len(cmd.Columns))
		for i, in := range cmd.Columns {
			ids[i] = in.ColumnID
			dir, err := sortDirection(in.SortDirection)
			if err != nil {
				return nil, err
			}
			directions[i] = dir
		}
		if _, err := s.loadTableColumns(ctx, cmd.ProjectID, table.ID, ids); err != nil {
			return nil, err
		}
		if err := s.checkColumnSet(ctx, cmd.ProjectID, table.ID, "", ids); err != nil {
			return nil, err
		}

		idx := &models.Index{
			ID:        s.ids.Generate(),
			ProjectID: cmd.ProjectID,
			TableID:   table.ID,
			Name:      name,
			Type:      indexType,
		}
		if err := s.ports.Indexes.Save(ctx, idx); err != nil {
			return nil, fmt.Errorf("failed to save index: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindIndex, cmd.SnapshotPair)
		if err := session.Seed(models.KindIndex, cmd.LogicalID, idx.ID); err != nil {
			return nil, err
		}
		memberLogicalIDs := make([]string, 0, len(ids))
		for i, columnID := range ids {
			ic := &models.IndexColumn{
				ID:            s.ids.Generate(),
				ProjectID:     cmd.ProjectID,
				IndexID:       idx.ID,
				ColumnID:      columnID,
				SeqNo:         i,
				SortDirection: directions[i],
			}
			if err := s.ports.IndexColumns.Save(ctx, ic); err != nil {
				return nil, fmt.Errorf("failed to save index column: %w", err)
			}
			if err := session.Seed(models.KindIndexColumn, cmd.Columns[i].LogicalID, ic.ID); err != nil {
				return nil, err
			}
			memberLogicalIDs = append(memberLogicalIDs, logicalOr(cmd.Columns[i].LogicalID, ic.ID))
		}

		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, idx.ID), idx.ID, memberLogicalIDs...); err != nil {
			return nil, err
		}

		s.logger.Info("Created index",
			zap.String("index_id", idx.ID),
			zap.String("table_id", table.ID),
			zap.Int("columns", len(ids)),
		)
		return session.Result(idx.ID), nil
	})
}

func (s *indexService) AddColumnToIndex(ctx context.Context, cmd *models.AddIndexColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		idx, err := s.loadIndex(ctx, cmd.ProjectID, cmd.IndexID)
		if err != nil {
			return nil, err
		}
		if _, err := s.loadTableColumns(ctx, cmd.ProjectID, idx.TableID, []string{cmd.ColumnID}); err != nil {
			return nil, err
		}
		dir, err := sortDirection(cmd.SortDirection)
		if err != nil {
			return nil, err
		}

		members, err := s.ports.IndexColumns.FindByIndexID(ctx, cmd.ProjectID, idx.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list index columns: %w", err)
		}
		set := make([]string, 0, len(members)+1)
		for _, ic := range members {
			if ic.ColumnID == cmd.ColumnID {
				return nil, apperrors.NewValidation(apperrors.RuleAlreadyMember, "column %s is already in index %s", cmd.ColumnID, idx.Name)
			}
			set = append(set, ic.ColumnID)
		}
		if err := requireSeqNo(cmd.SeqNo, len(members)); err != nil {
			return nil, err
		}
		if err := s.checkColumnSet(ctx, cmd.ProjectID, idx.TableID, idx.ID, append(set, cmd.ColumnID)); err != nil {
			return nil, err
		}

		ic := &models.IndexColumn{
			ID:            s.ids.Generate(),
			ProjectID:     cmd.ProjectID,
			IndexID:       idx.ID,
			ColumnID:      cmd.ColumnID,
			SeqNo:         cmd.SeqNo,
			SortDirection: dir,
		}
		if err := s.ports.IndexColumns.Save(ctx, ic); err != nil {
			return nil, fmt.Errorf("failed to save index column: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindIndexColumn, cmd.SnapshotPair)
		if err := session.Seed(models.KindIndexColumn, cmd.LogicalID, ic.ID); err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, ic.ID), ic.ID); err != nil {
			return nil, err
		}
		return session.Result(ic.ID), nil
	})
}

func (s *indexService) RemoveColumnFromIndex(ctx context.Context, cmd *models.RemoveIndexColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		ic, err := s.ports.IndexColumns.FindByID(ctx, cmd.ProjectID, cmd.IndexColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load index column: %w", err)
		}
		if ic == nil {
			return nil, apperrors.NewNotFound(models.KindIndexColumn.Label(), cmd.IndexColumnID)
		}

		session := s.session(cmd.ProjectID, models.KindIndexColumn, cmd.SnapshotPair)
		deleted, err := s.engine.Members.RemoveIndexColumn(ctx, cmd.ProjectID, ic, true, session.Report)
		if err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, ic.ID, ic.ID); err != nil {
			return nil, err
		}

		s.logger.Debug("Removed column from index",
			zap.String("index_id", ic.IndexID),
			zap.String("column_id", ic.ColumnID),
			zap.Bool("index_deleted", deleted),
		)
		return session.Result(ic.ID), nil
	})
}

func (s *indexService) ChangeIndexName(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindIndex, cmd.Name)
		if err != nil {
			return nil, err
		}
		idx, err := s.loadIndex(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		table, err := s.loadTable(ctx, cmd.ProjectID, idx.TableID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, table.SchemaID, name, idx.ID); err != nil {
			return nil, err
		}

		idx.Name = name
		if err := s.ports.Indexes.Save(ctx, idx); err != nil {
			return nil, fmt.Errorf("failed to save index: %w", err)
		}
		session := s.session(cmd.ProjectID, models.KindIndex, cmd.SnapshotPair)
		if _, err := session.Walk(ctx, idx.ID, idx.ID); err != nil {
			return nil, err
		}
		return session.Result(idx.ID), nil
	})
}

func (s *indexService) ChangeIndexColumnSortDirection(ctx context.Context, cmd *models.ChangeIndexColumnSortCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		if !cmd.SortDirection.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown sort direction %q", cmd.SortDirection)
		}
		ic, err := s.ports.IndexColumns.FindByID(ctx, cmd.ProjectID, cmd.IndexColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load index column: %w", err)
		}
		if ic == nil {
			return nil, apperrors.NewNotFound(models.KindIndexColumn.Label(), cmd.IndexColumnID)
		}

		ic.SortDirection = cmd.SortDirection
		if err := s.ports.IndexColumns.Save(ctx, ic); err != nil {
			return nil, fmt.Errorf("failed to save index column: %w", err)
		}
		session := s.session(cmd.ProjectID, models.KindIndexColumn, cmd.SnapshotPair)
		if _, err := session.Walk(ctx, ic.ID, ic.ID); err != nil {
			return nil, err
		}
		return session.Result(ic.ID), nil
	})
}

func (s *indexService) DeleteIndex(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		idx, err := s.loadIndex(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		members, err := s.ports.IndexColumns.FindByIndexID(ctx, cmd.ProjectID, idx.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list index columns: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindIndex, cmd.SnapshotPair)
		for i := len(members) - 1; i >= 0; i-- {
			if _, err := s.engine.Members.RemoveIndexColumn(ctx, cmd.ProjectID, members[i], false, session.Report); err != nil {
				return nil, err
			}
		}
		if err := s.ports.Indexes.SoftDeleteByID(ctx, cmd.ProjectID, idx.ID); err != nil {
			return nil, fmt.Errorf("failed to delete index: %w", err)
		}
		session.Report.Deleted(models.KindIndex, idx.ID)

		if _, err := session.Walk(ctx, idx.ID, idx.ID); err != nil {
			return nil, err
		}

		s.logger.Info("Deleted index", zap.String("index_id", idx.ID))
		return session.Result(idx.ID), nil
	})
}

func (s *indexService) checkName(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) error {
	exists, err := s.ports.Indexes.ExistsBySchemaAndNameExcludingID(ctx, projectID, schemaID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check index name: %w", err)
	}
	if exists {
		return duplicateName(models.KindIndex, name)
	}
	return nil
}

// checkColumnSet rejects an index whose column set another index of the table already has.
func (s *indexService) checkColumnSet(ctx context.Context, projectID uuid.UUID, tableID, selfID string, set []string) error {
	others, err := s.ports.Indexes.FindByTableID(ctx, projectID, tableID)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, other := range others {
		if other.ID == selfID {
			continue
		}
		members, err := s.ports.IndexColumns.FindByIndexID(ctx, projectID, other.ID)
		if err != nil {
			return fmt.Errorf("failed to list index columns: %w", err)
		}
		ids := make([]string, len(members))
		for i, ic := range members {
			ids[i] = ic.ColumnID
		}
		if len(ids) > 0 && sameSet(ids, set) {
			return apperrors.NewValidation(apperrors.RuleDuplicateColumnSet, "index %s already covers these columns", other.Name)
		}
	}
	return nil
}

func sortDirection(d models.SortDirection) (models.SortDirection, error) {
	if d == "" {
		return models.SortAsc, nil
	}
	if !d.IsValid() {
		return "", apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown sort direction %q", d)
	}
	return d, nil
}
