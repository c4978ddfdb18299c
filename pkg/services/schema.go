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

// SchemaService reads and reconciles whole schema trees.
type SchemaService interface {
	// GetSchemaTree returns the live tree of a schema with persisted ids and no marks.
	GetSchemaTree(ctx context.Context, projectID uuid.UUID, schemaID string) (*models.SchemaSnapshot, error)

	// ApplyTree persists every affected node of pair.After, as the walker would for any
	// entity command, without a requested entity of its own.
	ApplyTree(ctx context.Context, projectID uuid.UUID, pair models.SnapshotPair) (*models.MutationResult, error)
}

type schemaService struct {
	mutator
}

// NewSchemaService creates a new schema service with dependencies.
func NewSchemaService(
	ports *repositories.Ports,
	engine *propagation.Engine,
	gen idgen.Generator,
	logger *zap.Logger,
) SchemaService {
	return &schemaService{
		mutator: newMutator(ports, engine, gen, logger.Named("schemas")),
	}
}

var _ SchemaService = (*schemaService)(nil)

// GetSchemaTree loads the schema and every live descendant.
func (s *schemaService) GetSchemaTree(ctx context.Context, projectID uuid.UUID, schemaID string) (*models.SchemaSnapshot, error) {
	schema, err := s.ports.Schemas.FindByID(ctx, projectID, schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	if schema == nil {
		return nil, apperrors.NewNotFound(models.KindSchema.Label(), schemaID)
	}

	tables, err := s.ports.Tables.FindBySchemaID(ctx, projectID, schema.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tree := &models.SchemaSnapshot{
		ID:        schema.ID,
		Name:      schema.Name,
		Charset:   schema.Charset,
		Collation: schema.Collation,
		VendorID:  schema.VendorID,
		Tables:    make([]*models.TableSnapshot, 0, len(tables)),
	}
	for _, t := range tables {
		node, err := s.tableTree(ctx, projectID, t)
		if err != nil {
			return nil, err
		}
		tree.Tables = append(tree.Tables, node)
	}
	return tree, nil
}

func (s *schemaService) tableTree(ctx context.Context, projectID uuid.UUID, t *models.Table) (*models.TableSnapshot, error) {
	node := &models.TableSnapshot{
		ID:       t.ID,
		SchemaID: t.SchemaID,
		Name:     t.Name,
		Options:  t.Options,
		Comment:  t.Comment,
	}

	cols, err := s.ports.Columns.FindByTableID(ctx, projectID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", t.Name, err)
	}
	for _, c := range cols {
		node.Columns = append(node.Columns, &models.ColumnSnapshot{
			ID:              c.ID,
			TableID:         c.TableID,
			Name:            c.Name,
			DataType:        c.DataType,
			OrdinalPosition: c.OrdinalPosition,
			IsNullable:      c.IsNullable,
			IsAutoIncrement: c.IsAutoIncrement,
			Comment:         c.Comment,
		})
	}

	indexes, err := s.ports.Indexes.FindByTableID(ctx, projectID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", t.Name, err)
	}
	for _, idx := range indexes {
		members, err := s.ports.IndexColumns.FindByIndexID(ctx, projectID, idx.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list index columns: %w", err)
		}
		in := &models.IndexSnapshot{ID: idx.ID, TableID: idx.TableID, Name: idx.Name, Type: idx.Type}
		for _, ic := range members {
			in.Columns = append(in.Columns, &models.IndexColumnSnapshot{
				ID:            ic.ID,
				IndexID:       ic.IndexID,
				ColumnID:      ic.ColumnID,
				SeqNo:         ic.SeqNo,
				SortDirection: ic.SortDirection,
			})
		}
		node.Indexes = append(node.Indexes, in)
	}

	constraints, err := s.ports.Constraints.FindByTableID(ctx, projectID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list constraints of %s: %w", t.Name, err)
	}
	for _, c := range constraints {
		members, err := s.ports.ConstraintColumns.FindByConstraintID(ctx, projectID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list constraint columns: %w", err)
		}
		cn := &models.ConstraintSnapshot{
			ID:          c.ID,
			TableID:     c.TableID,
			Name:        c.Name,
			Kind:        c.Kind,
			CheckExpr:   c.CheckExpr,
			DefaultExpr: c.DefaultExpr,
		}
		for _, cc := range members {
			cn.Columns = append(cn.Columns, &models.ConstraintColumnSnapshot{
				ID:           cc.ID,
				ConstraintID: cc.ConstraintID,
				ColumnID:     cc.ColumnID,
				SeqNo:        cc.SeqNo,
			})
		}
		node.Constraints = append(node.Constraints, cn)
	}

	rels, err := s.ports.Relationships.FindBySrcTableID(ctx, projectID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships of %s: %w", t.Name, err)
	}
	for _, r := range rels {
		pairs, err := s.ports.RelationshipColumns.FindByRelationshipID(ctx, projectID, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list relationship columns: %w", err)
		}
		rn := &models.RelationshipSnapshot{
			ID:          r.ID,
			SrcTableID:  r.SrcTableID,
			TgtTableID:  r.TgtTableID,
			Name:        r.Name,
			Kind:        r.Kind,
			Cardinality: r.Cardinality,
		}
		for _, rc := range pairs {
			rn.Columns = append(rn.Columns, &models.RelationshipColumnSnapshot{
				ID:             rc.ID,
				RelationshipID: rc.RelationshipID,
				FkColumnID:     rc.FkColumnID,
				RefColumnID:    rc.RefColumnID,
				SeqNo:          rc.SeqNo,
			})
		}
		node.Relationships = append(node.Relationships, rn)
	}
	return node, nil
}

// ApplyTree walks pair inside one transaction. Columns the tree adds to a primary key
// are then cascaded like AddColumnToConstraint does, skipping relationships the tree
// already linked to them.
func (s *schemaService) ApplyTree(ctx context.Context, projectID uuid.UUID, pair models.SnapshotPair) (*models.MutationResult, error) {
	if !pair.HasTrees() {
		return nil, apperrors.NewValidation(apperrors.RuleInvalidKind, "an after tree is required")
	}
	return s.run(ctx, func(ctx context.Context) (*models.MutationResult, error) {
		session := s.session(projectID, models.KindSchema, pair)
		result, err := session.Walk(ctx, "", "")
		if err != nil {
			return nil, err
		}
		if err := s.cascadeNewPkColumns(ctx, projectID, result.Operations, session.Report); err != nil {
			return nil, err
		}

		entityID := session.IDs.Resolve(models.KindSchema, pair.After.ID)
		s.logger.Info("Applied schema tree",
			zap.String("schema_id", entityID),
			zap.Int("operations", len(result.Operations)),
		)
		return session.Result(entityID), nil
	})
}

func (s *schemaService) cascadeNewPkColumns(ctx context.Context, projectID uuid.UUID, ops []propagation.Operation, rep *propagation.Reporter) error {
	for _, op := range ops {
		if op.Kind != models.KindConstraintColumn || op.Action != propagation.ActionCreate {
			continue
		}
		cc, ok := op.Entity.(*models.ConstraintColumn)
		if !ok {
			continue
		}
		c, err := s.ports.Constraints.FindByID(ctx, projectID, cc.ConstraintID)
		if err != nil {
			return fmt.Errorf("failed to load constraint: %w", err)
		}
		if c == nil || !c.IsPrimaryKey() {
			continue
		}
		if _, err := s.engine.Cascade.PropagatePkAdd(ctx, projectID, c.TableID, cc.ColumnID, rep); err != nil {
			return err
		}
	}
	return nil
}
