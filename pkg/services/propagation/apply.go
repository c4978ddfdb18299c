package propagation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
)

// Applier saves walker operations through the repository ports.
type Applier struct {
	ports  *repositories.Ports
	logger *zap.Logger
}

// NewApplier creates an Applier.
func NewApplier(ports *repositories.Ports, logger *zap.Logger) *Applier {
	return &Applier{ports: ports, logger: logger.Named("applier")}
}

// Apply saves ops in order. It must run inside the command's unit of work so a failure
// part way through leaves nothing behind.
func (a *Applier) Apply(ctx context.Context, ops []Operation) error {
	for _, op := range ops {
		var err error
		switch e := op.Entity.(type) {
		case *models.Schema:
			err = a.ports.Schemas.Save(ctx, e)
		case *models.Table:
			err = a.ports.Tables.Save(ctx, e)
		case *models.Column:
			err = a.ports.Columns.Save(ctx, e)
		case *models.Index:
			err = a.ports.Indexes.Save(ctx, e)
		case *models.IndexColumn:
			err = a.ports.IndexColumns.Save(ctx, e)
		case *models.Constraint:
			err = a.ports.Constraints.Save(ctx, e)
		case *models.ConstraintColumn:
			err = a.ports.ConstraintColumns.Save(ctx, e)
		case *models.Relationship:
			err = a.ports.Relationships.Save(ctx, e)
		case *models.RelationshipColumn:
			err = a.ports.RelationshipColumns.Save(ctx, e)
		default:
			err = fmt.Errorf("unsupported entity %T", op.Entity)
		}
		if err != nil {
			return fmt.Errorf("failed to %s %s %s: %w", op.Action, op.Kind.Label(), op.LogicalID, err)
		}
	}

	if len(ops) > 0 {
		a.logger.Debug("Applied operations", zap.Int("count", len(ops)))
	}
	return nil
}
