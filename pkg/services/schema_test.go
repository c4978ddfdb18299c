package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

func TestSchemaService_GetSchemaTree(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.createPK("customers", "pk_customers", "cust-id")
	f.createRelationship(models.CreateRelationshipCommand{SrcTableID: "orders", TgtTableID: "customers"})
	f.createIndex("orders", "idx_total", "ord-total")

	tree, err := f.schemas.GetSchemaTree(f.ctx, f.projectID, "shop")
	require.NoError(t, err)

	assert.Equal(t, "shop", tree.ID)
	require.Len(t, tree.Tables, 2)

	byName := map[string]*models.TableSnapshot{}
	for _, tbl := range tree.Tables {
		byName[tbl.Name] = tbl
		assert.False(t, tbl.Mark.IsAffected())
	}
	customers, orders := byName["customers"], byName["orders"]
	require.NotNil(t, customers)
	require.NotNil(t, orders)

	require.Len(t, customers.Constraints, 1)
	assert.Equal(t, models.ConstraintPrimaryKey, customers.Constraints[0].Kind)
	require.Len(t, customers.Constraints[0].Columns, 1)
	assert.Equal(t, "cust-id", customers.Constraints[0].Columns[0].ColumnID)

	assert.Len(t, orders.Columns, 3)
	require.Len(t, orders.Indexes, 1)
	require.Len(t, orders.Relationships, 1)
	require.Len(t, orders.Relationships[0].Columns, 1)
	assert.Equal(t, "cust-id", orders.Relationships[0].Columns[0].RefColumnID)
	assert.Empty(t, customers.Relationships, "relationships hang off their source table")
}

func TestSchemaService_GetSchemaTreeMissing(t *testing.T) {
	f := newSvcFixture(t)

	_, err := f.schemas.GetSchemaTree(f.ctx, f.projectID, "nowhere")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSchemaService_ApplyTreePersistsAffectedNodes(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()

	result, err := f.schemas.ApplyTree(f.ctx, f.projectID, loadPair(t, "shop_unique.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "shop", result.EntityID)
	constraintID := result.IDMappings.Constraints["uq-logical"]
	require.NotEmpty(t, constraintID)
	noteID := result.IDMappings.Columns["note-logical"]
	require.NotEmpty(t, noteID)

	c := f.findConstraint(constraintID)
	require.NotNil(t, c)
	assert.Equal(t, models.ConstraintUnique, c.Kind)
	ccs := f.members(constraintID)
	require.Len(t, ccs, 1)
	assert.Equal(t, "cust-email", ccs[0].ColumnID)

	assert.Len(t, result.Propagated.Columns, 1)
	assert.Len(t, result.Propagated.Constraints, 1)
	assert.Len(t, result.Propagated.ConstraintColumns, 1)
	assert.Len(t, f.columnsOf("customers"), 3)
}

func TestSchemaService_ApplyTreeRequiresAfterTree(t *testing.T) {
	f := newSvcFixture(t)

	_, err := f.schemas.ApplyTree(f.ctx, f.projectID, models.SnapshotPair{})
	assertRule(t, err, apperrors.RuleInvalidKind)
}

func TestSchemaService_ApplyTreeCascadesNewPrimaryKeyColumn(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	pkID := f.createPK("customers", "pk_customers", "cust-id").EntityID
	relID := f.createRelationship(models.CreateRelationshipCommand{SrcTableID: "orders", TgtTableID: "customers"}).EntityID
	require.Len(t, f.pairsOf(relID), 1)

	customers := func(extra bool) *models.SchemaSnapshot {
		tbl := &models.TableSnapshot{
			ID: "customers", SchemaID: "shop", Name: "customers",
			Columns: []*models.ColumnSnapshot{
				{ID: "cust-id", TableID: "customers", Name: "id", DataType: "INT", OrdinalPosition: 1},
			},
			Constraints: []*models.ConstraintSnapshot{
				{ID: pkID, TableID: "customers", Name: "pk_customers", Kind: models.ConstraintPrimaryKey},
			},
		}
		if extra {
			tbl.Mark = models.Affected
			tbl.Columns = append(tbl.Columns, &models.ColumnSnapshot{
				ID: "region-logical", TableID: "customers", Name: "region", DataType: "CHAR(2)",
				OrdinalPosition: 3, Mark: models.Affected,
			})
			tbl.Constraints[0].Columns = []*models.ConstraintColumnSnapshot{
				{ID: "pkcc-logical", ConstraintID: pkID, ColumnID: "region-logical", SeqNo: 1, Mark: models.Affected},
			}
		}
		return &models.SchemaSnapshot{ID: "shop", Name: "shop", Tables: []*models.TableSnapshot{tbl}}
	}

	result, err := f.schemas.ApplyTree(f.ctx, f.projectID, models.SnapshotPair{Before: customers(false), After: customers(true)})
	require.NoError(t, err)

	regionID := result.IDMappings.Columns["region-logical"]
	require.NotEmpty(t, regionID)
	require.Len(t, f.members(pkID), 2)

	require.Len(t, result.CascadeCreatedColumns, 1)
	info := result.CascadeCreatedColumns[0]
	assert.Equal(t, "orders", info.FkTableID)

	pairs := f.pairsOf(relID)
	require.Len(t, pairs, 2)
	assert.Equal(t, regionID, pairs[1].RefColumnID)
	assert.Equal(t, info.FkColumnID, pairs[1].FkColumnID)
	assert.Len(t, f.columnsOf("orders"), 4)
}
