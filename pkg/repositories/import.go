package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// ImportTree persists every node of tree as-is, parents before children, inside one
// transaction. Ids are taken from the tree; nothing is reconciled. Relationships are
// written after all tables so that cross-table column references resolve.
func ImportTree(ctx context.Context, ports *Ports, projectID uuid.UUID, tree *models.SchemaSnapshot) error {
	if tree == nil {
		return fmt.Errorf("import tree: no schema")
	}

	return ports.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := ports.Schemas.Save(ctx, tree.ToEntity(projectID)); err != nil {
			return fmt.Errorf("failed to import schema %s: %w", tree.ID, err)
		}

		for _, t := range tree.Tables {
			if err := importTable(ctx, ports, projectID, t); err != nil {
				return err
			}
		}

		for _, t := range tree.Tables {
			for _, r := range t.Relationships {
				if err := ports.Relationships.Save(ctx, r.ToEntity(projectID)); err != nil {
					return fmt.Errorf("failed to import relationship %s: %w", r.ID, err)
				}
				for _, rc := range r.Columns {
					if err := ports.RelationshipColumns.Save(ctx, rc.ToEntity(projectID)); err != nil {
						return fmt.Errorf("failed to import relationship column %s: %w", rc.ID, err)
					}
				}
			}
		}
		return nil
	})
}

func importTable(ctx context.Context, ports *Ports, projectID uuid.UUID, t *models.TableSnapshot) error {
	if err := ports.Tables.Save(ctx, t.ToEntity(projectID)); err != nil {
		return fmt.Errorf("failed to import table %s: %w", t.ID, err)
	}
	for _, c := range t.Columns {
		if err := ports.Columns.Save(ctx, c.ToEntity(projectID)); err != nil {
			return fmt.Errorf("failed to import column %s: %w", c.ID, err)
		}
	}
	for _, i := range t.Indexes {
		if err := ports.Indexes.Save(ctx, i.ToEntity(projectID)); err != nil {
			return fmt.Errorf("failed to import index %s: %w", i.ID, err)
		}
		for _, ic := range i.Columns {
			if err := ports.IndexColumns.Save(ctx, ic.ToEntity(projectID)); err != nil {
				return fmt.Errorf("failed to import index column %s: %w", ic.ID, err)
			}
		}
	}
	for _, c := range t.Constraints {
		if err := ports.Constraints.Save(ctx, c.ToEntity(projectID)); err != nil {
			return fmt.Errorf("failed to import constraint %s: %w", c.ID, err)
		}
		for _, cc := range c.Columns {
			if err := ports.ConstraintColumns.Save(ctx, cc.ToEntity(projectID)); err != nil {
				return fmt.Errorf("failed to import constraint column %s: %w", cc.ID, err)
			}
		}
	}
	return nil
}
