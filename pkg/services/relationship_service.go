package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
)

// RelationshipService mutates relationships and their FK/ref column pairs.
type RelationshipService interface {
	// CreateRelationship creates a relationship. Without columns, an FK column is created
	// in the source table for every primary-key column of the target.
	CreateRelationship(ctx context.Context, cmd *models.CreateRelationshipCommand) (*models.MutationResult, error)
	AddColumnToRelationship(ctx context.Context, cmd *models.AddRelationshipColumnCommand) (*models.MutationResult, error)
	RemoveColumnFromRelationship(ctx context.Context, cmd *models.RemoveRelationshipColumnCommand) (*models.MutationResult, error)
	ChangeRelationshipName(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error)
	// ChangeRelationshipKind moves the FK columns into (IDENTIFYING) or out of
	// (NON_IDENTIFYING) the source table's primary key.
	ChangeRelationshipKind(ctx context.Context, cmd *models.ChangeRelationshipKindCommand) (*models.MutationResult, error)
	ChangeRelationshipCardinality(ctx context.Context, cmd *models.ChangeRelationshipCardinalityCommand) (*models.MutationResult, error)
	// DeleteRelationship removes the relationship, its pairs and the FK columns no other
	// relationship uses.
	DeleteRelationship(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error)
}

type relationshipService struct {
	mutator
}

// NewRelationshipService creates a new relationship service with dependencies.
func NewRelationshipService(
	ports *repositories.Ports,
	engine *propagation.Engine,
	gen idgen.Generator,
	logger *zap.Logger,
) RelationshipService {
	return &relationshipService{
		mutator: newMutator(ports, engine, gen, logger.Named("relationships")),
	}
}

var _ RelationshipService = (*relationshipService)(nil)

func (s *relationshipService) CreateRelationship(ctx context.Context, cmd *models.CreateRelationshipCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		src, err := s.loadTable(ctx, cmd.ProjectID, cmd.SrcTableID)
		if err != nil {
			return nil, err
		}
		tgt, err := s.loadTable(ctx, cmd.ProjectID, cmd.TgtTableID)
		if err != nil {
			return nil, err
		}

		kind := cmd.Kind
		if kind == "" {
			kind = models.RelationshipNonIdentifying
		}
		if !kind.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown relationship kind %q", kind)
		}
		cardinality := cmd.Cardinality
		if cardinality == "" {
			cardinality = models.CardinalityOneToMany
		}
		if !cardinality.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown cardinality %q", cardinality)
		}

		var name string
		if strings.TrimSpace(cmd.Name) == "" {
			name, err = s.defaultName(ctx, cmd.ProjectID, src, tgt)
			if err != nil {
				return nil, err
			}
		} else {
			name, _ = requireName(models.KindRelationship, cmd.Name)
			if err := s.checkName(ctx, cmd.ProjectID, src.SchemaID, name, ""); err != nil {
				return nil, err
			}
		}

		seen := map[string]bool{}
		for _, in := range cmd.Columns {
			if seen[in.FkColumnID] {
				return nil, apperrors.NewValidation(apperrors.RuleAlreadyMember, "FK column %s is listed twice", in.FkColumnID)
			}
			seen[in.FkColumnID] = true
			if err := s.checkPair(ctx, cmd.ProjectID, src.ID, tgt.ID, in.FkColumnID, in.RefColumnID); err != nil {
				return nil, err
			}
		}

		rel := &models.Relationship{
			ID:          s.ids.Generate(),
			ProjectID:   cmd.ProjectID,
			SrcTableID:  src.ID,
			TgtTableID:  tgt.ID,
			Name:        name,
			Kind:        kind,
			Cardinality: cardinality,
		}
		if err := s.ports.Relationships.Save(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to save relationship: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindRelationship, cmd.SnapshotPair)
		if err := session.Seed(models.KindRelationship, cmd.LogicalID, rel.ID); err != nil {
			return nil, err
		}
		pairLogicalIDs := make([]string, 0, len(cmd.Columns))
		for i, in := range cmd.Columns {
			rc := &models.RelationshipColumn{
				ID:             s.ids.Generate(),
				ProjectID:      cmd.ProjectID,
				RelationshipID: rel.ID,
				FkColumnID:     in.FkColumnID,
				RefColumnID:    in.RefColumnID,
				SeqNo:          i,
			}
			if err := s.ports.RelationshipColumns.Save(ctx, rc); err != nil {
				return nil, fmt.Errorf("failed to save relationship column: %w", err)
			}
			if err := session.Seed(models.KindRelationshipColumn, in.LogicalID, rc.ID); err != nil {
				return nil, err
			}
			pairLogicalIDs = append(pairLogicalIDs, logicalOr(in.LogicalID, rc.ID))
		}

		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, rel.ID), rel.ID, pairLogicalIDs...); err != nil {
			return nil, err
		}

		// The walk may already have saved the client's FK columns for this relationship.
		pairs, err := s.ports.RelationshipColumns.FindByRelationshipID(ctx, cmd.ProjectID, rel.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}
		switch {
		case len(pairs) == 0:
			if _, err := s.engine.Cascade.CascadeRelationship(ctx, cmd.ProjectID, rel, session.Report); err != nil {
				return nil, err
			}
		case rel.IsIdentifying():
			if _, err := s.engine.Cascade.PromoteRelationship(ctx, cmd.ProjectID, rel, session.Report); err != nil {
				return nil, err
			}
		}

		s.logger.Info("Created relationship",
			zap.String("relationship_id", rel.ID),
			zap.String("src_table_id", src.ID),
			zap.String("tgt_table_id", tgt.ID),
			zap.String("kind", string(rel.Kind)),
		)
		return session.Result(rel.ID), nil
	})
}

func (s *relationshipService) AddColumnToRelationship(ctx context.Context, cmd *models.AddRelationshipColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		rel, err := s.loadRelationship(ctx, cmd.ProjectID, cmd.RelationshipID)
		if err != nil {
			return nil, err
		}
		if err := s.checkPair(ctx, cmd.ProjectID, rel.SrcTableID, rel.TgtTableID, cmd.FkColumnID, cmd.RefColumnID); err != nil {
			return nil, err
		}
		pairs, err := s.ports.RelationshipColumns.FindByRelationshipID(ctx, cmd.ProjectID, rel.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}
		for _, rc := range pairs {
			if rc.FkColumnID == cmd.FkColumnID {
				return nil, apperrors.NewValidation(apperrors.RuleAlreadyMember, "column %s is already an FK column of relationship %s", cmd.FkColumnID, rel.Name)
			}
		}
		if err := requireSeqNo(cmd.SeqNo, len(pairs)); err != nil {
			return nil, err
		}

		rc := &models.RelationshipColumn{
			ID:             s.ids.Generate(),
			ProjectID:      cmd.ProjectID,
			RelationshipID: rel.ID,
			FkColumnID:     cmd.FkColumnID,
			RefColumnID:    cmd.RefColumnID,
			SeqNo:          cmd.SeqNo,
		}
		if err := s.ports.RelationshipColumns.Save(ctx, rc); err != nil {
			return nil, fmt.Errorf("failed to save relationship column: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindRelationshipColumn, cmd.SnapshotPair)
		if err := session.Seed(models.KindRelationshipColumn, cmd.LogicalID, rc.ID); err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, logicalOr(cmd.LogicalID, rc.ID), rc.ID); err != nil {
			return nil, err
		}
		if rel.IsIdentifying() {
			if _, err := s.engine.Cascade.PromoteRelationship(ctx, cmd.ProjectID, rel, session.Report); err != nil {
				return nil, err
			}
		}

		s.logger.Debug("Added column to relationship",
			zap.String("relationship_id", rel.ID),
			zap.String("fk_column_id", rc.FkColumnID),
			zap.String("ref_column_id", rc.RefColumnID),
		)
		return session.Result(rc.ID), nil
	})
}

func (s *relationshipService) RemoveColumnFromRelationship(ctx context.Context, cmd *models.RemoveRelationshipColumnCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		rc, err := s.ports.RelationshipColumns.FindByID(ctx, cmd.ProjectID, cmd.RelationshipColumnID)
		if err != nil {
			return nil, fmt.Errorf("failed to load relationship column: %w", err)
		}
		if rc == nil {
			return nil, apperrors.NewNotFound(models.KindRelationshipColumn.Label(), cmd.RelationshipColumnID)
		}

		rel, err := s.loadRelationship(ctx, cmd.ProjectID, rc.RelationshipID)
		if err != nil {
			return nil, err
		}

		session := s.session(cmd.ProjectID, models.KindRelationshipColumn, cmd.SnapshotPair)
		deleted, err := s.engine.Members.RemoveRelationshipColumn(ctx, cmd.ProjectID, rc, true, session.Report)
		if err != nil {
			return nil, err
		}
		if _, err := session.Walk(ctx, rc.ID, rc.ID); err != nil {
			return nil, err
		}

		// The FK column goes with its last link unless the client kept it.
		exclRC, exclCols := excluded(session, cmd.SnapshotPair)
		if !slices.Contains(exclCols, rc.FkColumnID) {
			wasPk, err := s.deleteOrphanedFk(ctx, cmd.ProjectID, rc.FkColumnID, session.Report)
			if err != nil {
				return nil, err
			}
			if wasPk {
				if _, err := s.engine.Cascade.PropagatePkRemove(ctx, cmd.ProjectID, rel.SrcTableID, rc.FkColumnID, exclRC, exclCols, session.Report); err != nil {
					return nil, err
				}
			}
		}

		s.logger.Debug("Removed column from relationship",
			zap.String("relationship_id", rc.RelationshipID),
			zap.String("fk_column_id", rc.FkColumnID),
			zap.Bool("relationship_deleted", deleted),
		)
		return session.Result(rc.ID), nil
	})
}

func (s *relationshipService) ChangeRelationshipName(ctx context.Context, cmd *models.RenameCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		name, err := requireName(models.KindRelationship, cmd.Name)
		if err != nil {
			return nil, err
		}
		rel, err := s.loadRelationship(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		src, err := s.loadTable(ctx, cmd.ProjectID, rel.SrcTableID)
		if err != nil {
			return nil, err
		}
		if err := s.checkName(ctx, cmd.ProjectID, src.SchemaID, name, rel.ID); err != nil {
			return nil, err
		}

		rel.Name = name
		if err := s.ports.Relationships.Save(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to save relationship: %w", err)
		}
		return s.finish(ctx, cmd.ProjectID, cmd.SnapshotPair, rel.ID)
	})
}

func (s *relationshipService) ChangeRelationshipKind(ctx context.Context, cmd *models.ChangeRelationshipKindCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		if !cmd.Kind.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown relationship kind %q", cmd.Kind)
		}
		rel, err := s.loadRelationship(ctx, cmd.ProjectID, cmd.RelationshipID)
		if err != nil {
			return nil, err
		}

		session := s.session(cmd.ProjectID, models.KindRelationship, cmd.SnapshotPair)
		if rel.Kind == cmd.Kind {
			return session.Result(rel.ID), nil
		}

		rel.Kind = cmd.Kind
		if err := s.ports.Relationships.Save(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to save relationship: %w", err)
		}
		if _, err := session.Walk(ctx, rel.ID, rel.ID); err != nil {
			return nil, err
		}

		if rel.IsIdentifying() {
			_, err = s.engine.Cascade.PromoteRelationship(ctx, cmd.ProjectID, rel, session.Report)
		} else {
			_, err = s.engine.Cascade.DemoteRelationship(ctx, cmd.ProjectID, rel, session.Report)
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info("Changed relationship kind",
			zap.String("relationship_id", rel.ID),
			zap.String("kind", string(rel.Kind)),
		)
		return session.Result(rel.ID), nil
	})
}

func (s *relationshipService) ChangeRelationshipCardinality(ctx context.Context, cmd *models.ChangeRelationshipCardinalityCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		if !cmd.Cardinality.IsValid() {
			return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "unknown cardinality %q", cmd.Cardinality)
		}
		rel, err := s.loadRelationship(ctx, cmd.ProjectID, cmd.RelationshipID)
		if err != nil {
			return nil, err
		}

		rel.Cardinality = cmd.Cardinality
		if err := s.ports.Relationships.Save(ctx, rel); err != nil {
			return nil, fmt.Errorf("failed to save relationship: %w", err)
		}
		return s.finish(ctx, cmd.ProjectID, cmd.SnapshotPair, rel.ID)
	})
}

func (s *relationshipService) DeleteRelationship(ctx context.Context, cmd *models.DeleteCommand) (*models.MutationResult, error) {
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		rel, err := s.loadRelationship(ctx, cmd.ProjectID, cmd.EntityID)
		if err != nil {
			return nil, err
		}
		pairs, err := s.ports.RelationshipColumns.FindByRelationshipID(ctx, cmd.ProjectID, rel.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}

		session := s.session(cmd.ProjectID, models.KindRelationship, cmd.SnapshotPair)
		var orphanedPk []string
		for i := len(pairs) - 1; i >= 0; i-- {
			rc := pairs[i]
			if _, err := s.engine.Members.RemoveRelationshipColumn(ctx, cmd.ProjectID, rc, false, session.Report); err != nil {
				return nil, err
			}
			wasPk, err := s.deleteOrphanedFk(ctx, cmd.ProjectID, rc.FkColumnID, session.Report)
			if err != nil {
				return nil, err
			}
			if wasPk {
				orphanedPk = append(orphanedPk, rc.FkColumnID)
			}
		}
		if err := s.ports.Relationships.SoftDeleteByID(ctx, cmd.ProjectID, rel.ID); err != nil {
			return nil, fmt.Errorf("failed to delete relationship: %w", err)
		}
		session.Report.Deleted(models.KindRelationship, rel.ID)

		if _, err := session.Walk(ctx, rel.ID, rel.ID); err != nil {
			return nil, err
		}

		exclRC, exclCols := excluded(session, cmd.SnapshotPair)
		for _, columnID := range orphanedPk {
			if _, err := s.engine.Cascade.PropagatePkRemove(ctx, cmd.ProjectID, rel.SrcTableID, columnID, exclRC, exclCols, session.Report); err != nil {
				return nil, err
			}
		}

		s.logger.Info("Deleted relationship",
			zap.String("relationship_id", rel.ID),
			zap.Int("pairs", len(pairs)),
		)
		return session.Result(rel.ID), nil
	})
}

// deleteOrphanedFk deletes an FK column no other relationship uses. It reports whether
// the column was a primary-key member of its table.
func (s *relationshipService) deleteOrphanedFk(ctx context.Context, projectID uuid.UUID, columnID string, rep *propagation.Reporter) (bool, error) {
	others, err := s.ports.RelationshipColumns.FindByFkColumnID(ctx, projectID, columnID)
	if err != nil {
		return false, fmt.Errorf("failed to list relationship columns: %w", err)
	}
	if len(others) > 0 {
		return false, nil
	}
	col, err := s.ports.Columns.FindByID(ctx, projectID, columnID)
	if err != nil {
		return false, fmt.Errorf("failed to load FK column: %w", err)
	}
	if col == nil {
		return false, nil
	}
	return s.engine.Members.DeleteColumn(ctx, projectID, col, rep)
}

func (s *relationshipService) finish(ctx context.Context, projectID uuid.UUID, pair models.SnapshotPair, entityID string) (*models.MutationResult, error) {
	session := s.session(projectID, models.KindRelationship, pair)
	if _, err := session.Walk(ctx, entityID, entityID); err != nil {
		return nil, err
	}
	return session.Result(entityID), nil
}

// checkPair validates that fk lives in the source table and ref in the target table.
func (s *relationshipService) checkPair(ctx context.Context, projectID uuid.UUID, srcTableID, tgtTableID, fkColumnID, refColumnID string) error {
	fk, err := s.loadColumn(ctx, projectID, fkColumnID)
	if err != nil {
		return err
	}
	if fk.TableID != srcTableID {
		return apperrors.NewValidation(apperrors.RuleCrossTableColumn, "FK column %s does not belong to the source table", fkColumnID)
	}
	ref, err := s.loadColumn(ctx, projectID, refColumnID)
	if err != nil {
		return err
	}
	if ref.TableID != tgtTableID {
		return apperrors.NewValidation(apperrors.RuleCrossTableColumn, "referenced column %s does not belong to the target table", refColumnID)
	}
	return nil
}

func (s *relationshipService) checkName(ctx context.Context, projectID uuid.UUID, schemaID, name, excludeID string) error {
	exists, err := s.ports.Relationships.ExistsBySchemaAndNameExcludingID(ctx, projectID, schemaID, name, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check relationship name: %w", err)
	}
	if exists {
		return duplicateName(models.KindRelationship, name)
	}
	return nil
}

// defaultName derives fk_<source>_<target> from the singular table names, adding a
// numeric suffix until the name is free in the source schema.
func (s *relationshipService) defaultName(ctx context.Context, projectID uuid.UUID, src, tgt *models.Table) (string, error) {
	base := "fk_" + strings.ToLower(inflection.Singular(src.Name)) + "_" + strings.ToLower(inflection.Singular(tgt.Name))
	name := base
	for i := 1; ; i++ {
		exists, err := s.ports.Relationships.ExistsBySchemaAndNameExcludingID(ctx, projectID, src.SchemaID, name, "")
		if err != nil {
			return "", fmt.Errorf("failed to check relationship name: %w", err)
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}
