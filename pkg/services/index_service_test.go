package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

func (f *svcFixture) createIndex(tableID, name string, columnIDs ...string) *models.MutationResult {
	f.t.Helper()
	cols := make([]models.IndexColumnInput, len(columnIDs))
	for i, id := range columnIDs {
		cols[i] = models.IndexColumnInput{ColumnID: id}
	}
	result, err := f.indexes.CreateIndex(f.ctx, &models.CreateIndexCommand{
		ProjectID: f.projectID,
		TableID:   tableID,
		Name:      name,
		Columns:   cols,
	})
	require.NoError(f.t, err)
	return result
}

func (f *svcFixture) indexColumns(indexID string) []*models.IndexColumn {
	f.t.Helper()
	ics, err := f.ports.IndexColumns.FindByIndexID(f.ctx, f.projectID, indexID)
	require.NoError(f.t, err)
	return ics
}

func TestIndexService_CreateAppliesDefaults(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()

	result := f.createIndex("orders", "  idx_orders_total ", "ord-total", "ord-id")

	idx, err := f.ports.Indexes.FindByID(f.ctx, f.projectID, result.EntityID)
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "idx_orders_total", idx.Name)
	assert.Equal(t, models.IndexTypeBTree, idx.Type)

	ics := f.indexColumns(idx.ID)
	require.Len(t, ics, 2)
	assert.Equal(t, "ord-total", ics[0].ColumnID)
	assert.Equal(t, 0, ics[0].SeqNo)
	assert.Equal(t, models.SortAsc, ics[0].SortDirection)
	assert.Equal(t, 1, ics[1].SeqNo)
	assert.True(t, result.Propagated.IsEmpty())
	assert.Empty(t, f.locks.locked)
}

func TestIndexService_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		cmd  models.CreateIndexCommand
		rule string
	}{
		{
			name: "blank name",
			cmd:  models.CreateIndexCommand{TableID: "orders", Name: "", Columns: []models.IndexColumnInput{{ColumnID: "ord-id"}}},
			rule: apperrors.RuleBlankName,
		},
		{
			name: "no columns",
			cmd:  models.CreateIndexCommand{TableID: "orders", Name: "idx"},
			rule: apperrors.RuleColumnCount,
		},
		{
			name: "unknown type",
			cmd:  models.CreateIndexCommand{TableID: "orders", Name: "idx", Type: "GIN", Columns: []models.IndexColumnInput{{ColumnID: "ord-id"}}},
			rule: apperrors.RuleInvalidKind,
		},
		{
			name: "unknown sort direction",
			cmd:  models.CreateIndexCommand{TableID: "orders", Name: "idx", Columns: []models.IndexColumnInput{{ColumnID: "ord-id", SortDirection: "UP"}}},
			rule: apperrors.RuleInvalidKind,
		},
		{
			name: "column of another table",
			cmd:  models.CreateIndexCommand{TableID: "orders", Name: "idx", Columns: []models.IndexColumnInput{{ColumnID: "cust-id"}}},
			rule: apperrors.RuleCrossTableColumn,
		},
		{
			name: "same column set as an existing index",
			cmd: models.CreateIndexCommand{TableID: "orders", Name: "idx_again",
				Columns: []models.IndexColumnInput{{ColumnID: "ord-id"}, {ColumnID: "ord-total"}}},
			rule: apperrors.RuleDuplicateColumnSet,
		},
		{
			name: "name used elsewhere in the schema",
			cmd:  models.CreateIndexCommand{TableID: "customers", Name: "idx_existing", Columns: []models.IndexColumnInput{{ColumnID: "cust-id"}}},
			rule: apperrors.RuleDuplicateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSvcFixture(t)
			f.seedShop()
			f.createIndex("orders", "idx_existing", "ord-total", "ord-id")
			before := f.store.RowCount(models.KindIndex)

			cmd := tt.cmd
			cmd.ProjectID = f.projectID
			_, err := f.indexes.CreateIndex(f.ctx, &cmd)

			assertRule(t, err, tt.rule)
			assert.Equal(t, before, f.store.RowCount(models.KindIndex))
		})
	}
}

func TestIndexService_RemoveLastColumnDeletesIndex(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	created := f.createIndex("orders", "idx_total", "ord-total")
	ics := f.indexColumns(created.EntityID)
	require.Len(t, ics, 1)

	result, err := f.indexes.RemoveColumnFromIndex(f.ctx, &models.RemoveIndexColumnCommand{
		ProjectID:     f.projectID,
		IndexColumnID: ics[0].ID,
	})
	require.NoError(t, err)

	idx, err := f.ports.Indexes.FindByID(f.ctx, f.projectID, created.EntityID)
	require.NoError(t, err)
	assert.Nil(t, idx)
	assert.Equal(t, []string{created.EntityID}, result.DeletedIDs[models.KindIndex])
}

func TestIndexService_MembershipStaysContiguous(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.column("orders", "ord-placed", "placed_at", "TIMESTAMP")
	created := f.createIndex("orders", "idx_orders", "ord-id", "ord-total", "ord-placed")
	ics := f.indexColumns(created.EntityID)

	_, err := f.indexes.RemoveColumnFromIndex(f.ctx, &models.RemoveIndexColumnCommand{
		ProjectID:     f.projectID,
		IndexColumnID: ics[0].ID,
	})
	require.NoError(t, err)

	rest := f.indexColumns(created.EntityID)
	require.Len(t, rest, 2)
	assert.Equal(t, "ord-total", rest[0].ColumnID)
	assert.Equal(t, 0, rest[0].SeqNo)
	assert.Equal(t, 1, rest[1].SeqNo)

	_, err = f.indexes.AddColumnToIndex(f.ctx, &models.AddIndexColumnCommand{
		ProjectID: f.projectID,
		IndexID:   created.EntityID,
		ColumnID:  "ord-id",
		SeqNo:     0,
	})
	assertRule(t, err, apperrors.RuleInvalidSeqNo)

	added, err := f.indexes.AddColumnToIndex(f.ctx, &models.AddIndexColumnCommand{
		ProjectID:     f.projectID,
		IndexID:       created.EntityID,
		ColumnID:      "ord-id",
		SeqNo:         2,
		SortDirection: models.SortDesc,
	})
	require.NoError(t, err)
	all := f.indexColumns(created.EntityID)
	require.Len(t, all, 3)
	assert.Equal(t, added.EntityID, all[2].ID)
	assert.Equal(t, models.SortDesc, all[2].SortDirection)
}

func TestIndexService_ChangeSortDirection(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	created := f.createIndex("orders", "idx_total", "ord-total")
	ic := f.indexColumns(created.EntityID)[0]

	_, err := f.indexes.ChangeIndexColumnSortDirection(f.ctx, &models.ChangeIndexColumnSortCommand{
		ProjectID:     f.projectID,
		IndexColumnID: ic.ID,
		SortDirection: models.SortDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SortDesc, f.indexColumns(created.EntityID)[0].SortDirection)

	_, err = f.indexes.ChangeIndexColumnSortDirection(f.ctx, &models.ChangeIndexColumnSortCommand{
		ProjectID:     f.projectID,
		IndexColumnID: ic.ID,
		SortDirection: "SIDEWAYS",
	})
	assertRule(t, err, apperrors.RuleInvalidKind)
}

func TestIndexService_RenameAndDelete(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	created := f.createIndex("orders", "idx_total", "ord-total")
	f.createIndex("customers", "idx_email", "cust-email")

	_, err := f.indexes.ChangeIndexName(f.ctx, &models.RenameCommand{ProjectID: f.projectID, EntityID: created.EntityID, Name: "idx_email"})
	assertRule(t, err, apperrors.RuleDuplicateName)

	_, err = f.indexes.ChangeIndexName(f.ctx, &models.RenameCommand{ProjectID: f.projectID, EntityID: created.EntityID, Name: "idx_order_total"})
	require.NoError(t, err)

	result, err := f.indexes.DeleteIndex(f.ctx, &models.DeleteCommand{ProjectID: f.projectID, EntityID: created.EntityID})
	require.NoError(t, err)
	assert.Len(t, result.DeletedIDs[models.KindIndexColumn], 1)
	assert.Empty(t, f.indexColumns(created.EntityID))
}
