package propagation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

func TestMembers_RemovalKeepsSeqNoContiguous(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for remove := 0; remove < n; remove++ {
			f := newFixture(t)
			f.schema("s")
			f.table("s", "t", "t")
			ids := make([]string, n)
			for i := range ids {
				ids[i] = f.column("t", string(rune('a'+i)), string(rune('a'+i)), "INT").ID
			}
			f.constraint("t", "uq", models.ConstraintUnique, ids...)

			cc, err := f.ports.ConstraintColumns.FindByID(f.ctx, f.projectID, "uq-"+ids[remove])
			require.NoError(t, err)
			deleted, err := f.engine.Members.RemoveConstraintColumn(f.ctx, f.projectID, cc, true, nil)
			require.NoError(t, err)
			assert.Equal(t, n == 1, deleted)

			rest, err := f.ports.ConstraintColumns.FindByConstraintID(f.ctx, f.projectID, "uq")
			require.NoError(t, err)
			require.Len(t, rest, n-1)
			for i, r := range rest {
				assert.Equal(t, i, r.SeqNo, "n=%d remove=%d", n, remove)
			}
		}
	}
}

func TestMembers_RemoveLastIndexColumnDeletesIndex(t *testing.T) {
	f := newFixture(t)
	f.schema("s")
	f.table("s", "t", "t")
	f.column("t", "a", "a", "INT")
	require.NoError(t, f.ports.Indexes.Save(f.ctx, &models.Index{ID: "idx", ProjectID: f.projectID, TableID: "t", Name: "idx", Type: models.IndexTypeBTree}))
	ic := &models.IndexColumn{ID: "idx-a", ProjectID: f.projectID, IndexID: "idx", ColumnID: "a", SortDirection: models.SortAsc}
	require.NoError(t, f.ports.IndexColumns.Save(f.ctx, ic))

	rep := NewReporter(models.KindIndexColumn)
	deleted, err := f.engine.Members.RemoveIndexColumn(f.ctx, f.projectID, ic, true, rep)
	require.NoError(t, err)
	assert.True(t, deleted)

	idx, err := f.ports.Indexes.FindByID(f.ctx, f.projectID, "idx")
	require.NoError(t, err)
	assert.Nil(t, idx)

	result := rep.Result("idx-a", nil)
	assert.Equal(t, []string{"idx"}, result.DeletedIDs[models.KindIndex])
	assert.Equal(t, []string{"idx-a"}, result.DeletedIDs[models.KindIndexColumn])
}

func TestMembers_KeepEmptyOwnerWhenAsked(t *testing.T) {
	f := newFixture(t)
	f.schema("s")
	f.table("s", "parent", "parent")
	f.table("s", "child", "child")
	f.column("parent", "p", "id", "INT")
	f.column("child", "c", "parent_id", "INT")
	f.relationship("r", "child", "parent", models.RelationshipNonIdentifying)
	rc := f.pair("r", "r-0", "c", "p", 0)

	deleted, err := f.engine.Members.RemoveRelationshipColumn(f.ctx, f.projectID, rc, false, nil)
	require.NoError(t, err)
	assert.False(t, deleted)

	rel, err := f.ports.Relationships.FindByID(f.ctx, f.projectID, "r")
	require.NoError(t, err)
	assert.NotNil(t, rel)
}

func TestMembers_DetachColumnReportsPrimaryKeyMembership(t *testing.T) {
	f := newFixture(t)
	f.schema("s")
	f.table("s", "t", "t")
	f.column("t", "a", "a", "INT")
	f.column("t", "b", "b", "INT")
	f.constraint("t", "pk", models.ConstraintPrimaryKey, "a", "b")
	f.constraint("t", "uq", models.ConstraintUnique, "a")

	wasPk, err := f.engine.Members.DetachColumn(f.ctx, f.projectID, "a", nil)
	require.NoError(t, err)
	assert.True(t, wasPk)

	pk := f.pkMembers("t")
	require.Len(t, pk, 1)
	assert.Equal(t, "b", pk[0].ColumnID)
	assert.Equal(t, 0, pk[0].SeqNo)

	uq, err := f.ports.Constraints.FindByID(f.ctx, f.projectID, "uq")
	require.NoError(t, err)
	assert.Nil(t, uq, "emptied UNIQUE constraint is deleted")
}

func TestMembers_CompactOrdinals(t *testing.T) {
	f := newFixture(t)
	f.schema("s")
	f.table("s", "t", "t")
	f.column("t", "a", "a", "INT")
	f.column("t", "b", "b", "INT")
	f.column("t", "c", "c", "INT")
	require.NoError(t, f.ports.Columns.SoftDeleteByID(f.ctx, f.projectID, "a"))

	rep := NewReporter(models.KindColumn)
	require.NoError(t, f.engine.Members.CompactOrdinals(f.ctx, f.projectID, "t", rep))

	cols := f.columnsOf("t")
	require.Len(t, cols, 2)
	assert.Equal(t, 1, cols[0].OrdinalPosition)
	assert.Equal(t, 2, cols[1].OrdinalPosition)
	assert.Len(t, rep.Result("a", nil).Propagated.Columns, 2)
}
