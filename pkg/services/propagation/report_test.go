package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

func TestReporter_StampsSourceAndSkipsRequested(t *testing.T) {
	rep := NewReporter(models.KindConstraintColumn)
	rep.Requested("cc-requested")
	rep.Column(&models.Column{ID: "col-1", Name: "parent_id"}, "pk-col")
	rep.ConstraintColumn(&models.ConstraintColumn{ID: "cc-requested"}, "")
	rep.ConstraintColumn(&models.ConstraintColumn{ID: "cc-other", SeqNo: 1}, "")

	result := rep.Result("c-1", nil)

	require.Len(t, result.Propagated.Columns, 1)
	col := result.Propagated.Columns[0]
	assert.Equal(t, models.KindConstraintColumn, col.SourceType)
	assert.Equal(t, "c-1", col.SourceID)
	assert.Equal(t, "pk-col", col.SourceColumnID)

	require.Len(t, result.Propagated.ConstraintColumns, 1)
	assert.Equal(t, "cc-other", result.Propagated.ConstraintColumns[0].ID)
	assert.Equal(t, "c-1", result.EntityID)
}

func TestReporter_ExcludedLogicalIDsNeverPropagate(t *testing.T) {
	ids := NewIDMap()
	require.NoError(t, ids.Put(models.KindColumn, "col-logical", "col-1"))
	require.NoError(t, ids.Put(models.KindRelationshipColumn, "rc-logical", "rc-1"))

	rep := NewReporter(models.KindRelationship)
	rep.Exclude([]string{"col-logical"}, []string{"rc-logical"})
	rep.Column(&models.Column{ID: "col-1"}, "")
	rep.Column(&models.Column{ID: "col-2"}, "")
	rep.RelationshipColumn(&models.RelationshipColumn{ID: "rc-1"}, "")

	result := rep.Result("r-1", ids)
	require.Len(t, result.Propagated.Columns, 1)
	assert.Equal(t, "col-2", result.Propagated.Columns[0].ID)
	assert.Empty(t, result.Propagated.RelationshipColumns)
	assert.Equal(t, "col-1", result.IDMappings.Columns["col-logical"])
}

func TestReporter_LaterRecordReplacesEarlier(t *testing.T) {
	rep := NewReporter(models.KindColumn)
	rep.Column(&models.Column{ID: "col-1", DataType: "INT"}, "src")
	rep.Column(&models.Column{ID: "col-2"}, "")
	rep.Column(&models.Column{ID: "col-1", DataType: "BIGINT"}, "src")

	result := rep.Result("x", nil)
	require.Len(t, result.Propagated.Columns, 2)
	assert.Equal(t, "col-1", result.Propagated.Columns[0].ID)
	assert.Equal(t, "BIGINT", result.Propagated.Columns[0].DataType)
}

func TestReporter_CascadeAndDeletedSections(t *testing.T) {
	rep := NewReporter(models.KindConstraint)
	rep.Created(&models.CascadeCreatedInfo{FkColumnID: "fk-1"})
	rep.Removed(&models.CascadeRemovedInfo{RelationshipColumnID: "rc-1"})
	rep.Deleted(models.KindConstraint, "c-1")

	result := rep.Result("c-1", nil)
	require.Len(t, result.CascadeCreatedColumns, 1)
	require.Len(t, result.CascadeRemoved, 1)
	assert.Equal(t, []string{"c-1"}, result.DeletedIDs[models.KindConstraint])
}

func TestReporter_EmptyResultHasNonNilLists(t *testing.T) {
	result := NewReporter(models.KindIndex).Result("i-1", nil)
	assert.NotNil(t, result.Propagated.Columns)
	assert.NotNil(t, result.Propagated.RelationshipColumns)
	assert.True(t, result.Propagated.IsEmpty())
	assert.Nil(t, result.CascadeCreatedColumns)
	assert.Nil(t, result.DeletedIDs)
}

func TestReporter_NilIsSafe(t *testing.T) {
	var rep *Reporter
	rep.Column(&models.Column{ID: "c"}, "")
	rep.Created(&models.CascadeCreatedInfo{})
	result := rep.Result("e", nil)
	assert.True(t, result.Propagated.IsEmpty())
}
