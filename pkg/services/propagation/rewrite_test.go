package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// fullMap maps every logical id in parent_child.yaml's after tree to "p-<id>".
func fullMap(t *testing.T, tree *models.SchemaSnapshot) *IDMap {
	t.Helper()
	ids := NewIDMap()
	idx := models.NewSnapshotIndex(tree)
	put := func(kind models.EntityKind, id string) {
		require.NoError(t, ids.Put(kind, id, "p-"+id))
	}
	for id := range idx.Schemas {
		put(models.KindSchema, id)
	}
	for id := range idx.Tables {
		put(models.KindTable, id)
	}
	for id := range idx.Columns {
		put(models.KindColumn, id)
	}
	for id := range idx.Constraints {
		put(models.KindConstraint, id)
	}
	for id := range idx.ConstraintColumns {
		put(models.KindConstraintColumn, id)
	}
	for id := range idx.Relationships {
		put(models.KindRelationship, id)
	}
	for id := range idx.RelationshipColumns {
		put(models.KindRelationshipColumn, id)
	}
	return ids
}

func TestRewrite_RoundTripLeavesNoLogicalIDs(t *testing.T) {
	tree := loadPair(t, "parent_child.yaml").After
	ids := fullMap(t, tree)

	out := Rewrite(tree, ids)

	assert.Equal(t, "p-s-app", out.ID)
	child := out.Tables[1]
	assert.Equal(t, "p-t-child", child.ID)
	assert.Equal(t, "p-s-app", child.SchemaID)
	assert.Equal(t, "p-fk-col-logical", child.Columns[0].ID)
	assert.Equal(t, "p-t-child", child.Columns[0].TableID)

	rel := child.Relationships[0]
	assert.Equal(t, "p-rel-logical", rel.ID)
	assert.Equal(t, "p-t-child", rel.SrcTableID)
	assert.Equal(t, "p-t-parent", rel.TgtTableID)

	rc := rel.Columns[0]
	assert.Equal(t, "p-relcol-logical", rc.ID)
	assert.Equal(t, "p-rel-logical", rc.RelationshipID)
	assert.Equal(t, "p-fk-col-logical", rc.FkColumnID)
	assert.Equal(t, "p-c-parent-id", rc.RefColumnID)

	cc := out.Tables[0].Constraints[0].Columns[0]
	assert.Equal(t, "p-pk-parent", cc.ConstraintID)
	assert.Equal(t, "p-c-parent-id", cc.ColumnID)
}

func TestRewrite_IsIdempotent(t *testing.T) {
	tree := loadPair(t, "parent_child.yaml").After
	ids := fullMap(t, tree)

	once := Rewrite(tree, ids)
	twice := Rewrite(once, ids)
	assert.Equal(t, once, twice)
}

func TestRewrite_UnmappedReferencesAreKept(t *testing.T) {
	tree := loadPair(t, "parent_child.yaml").After
	ids := NewIDMap()
	require.NoError(t, ids.Put(models.KindColumn, "fk-col-logical", "col-1"))

	out := Rewrite(tree, ids)
	rc := out.Tables[1].Relationships[0].Columns[0]
	assert.Equal(t, "col-1", rc.FkColumnID)
	assert.Equal(t, "c-parent-id", rc.RefColumnID)
	assert.Equal(t, "rel-logical", rc.RelationshipID)
}

func TestRewrite_DoesNotMutateInput(t *testing.T) {
	tree := loadPair(t, "parent_child.yaml").After
	expr := "id > 0"
	tree.Tables[0].Constraints = append(tree.Tables[0].Constraints, &models.ConstraintSnapshot{
		ID: "chk", TableID: "t-parent", Name: "chk", Kind: models.ConstraintCheck, CheckExpr: &expr,
	})
	ids := fullMap(t, tree)

	out := Rewrite(tree, ids)
	*out.Tables[0].Constraints[1].CheckExpr = "changed"
	out.Tables[1].Columns[0].Name = "changed"

	assert.Equal(t, "s-app", tree.ID)
	assert.Equal(t, "fk-col-logical", tree.Tables[1].Columns[0].ID)
	assert.Equal(t, "parent_id", tree.Tables[1].Columns[0].Name)
	assert.Equal(t, "id > 0", *tree.Tables[0].Constraints[1].CheckExpr)
}

func TestRewrite_Nil(t *testing.T) {
	assert.Nil(t, Rewrite(nil, NewIDMap()))
}
