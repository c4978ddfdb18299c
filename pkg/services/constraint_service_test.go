package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestConstraintService_CreatePrimaryKeyCascadesToReferencingTables(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.relationship("fk_order_customer", "orders", "customers", models.RelationshipNonIdentifying)

	result := f.createPK("customers", "pk_customers", "cust-id")

	require.Len(t, result.CascadeCreatedColumns, 1)
	info := result.CascadeCreatedColumns[0]
	assert.Equal(t, "orders", info.FkTableID)
	assert.Equal(t, "id_1", info.FkColumnName, "orders already has an id column")
	assert.Equal(t, "fk_order_customer", info.RelationshipID)
	assert.Empty(t, info.ExistingConstraintColumnID)

	fk := f.findColumn(info.FkColumnID)
	require.NotNil(t, fk)
	assert.Equal(t, "INT", fk.DataType)
	assert.True(t, fk.IsNullable)
	assert.Equal(t, 3, fk.OrdinalPosition)

	pairs := f.pairsOf("fk_order_customer")
	require.Len(t, pairs, 1)
	assert.Equal(t, "cust-id", pairs[0].RefColumnID)
	assert.Equal(t, 0, pairs[0].SeqNo)

	require.Len(t, result.Propagated.Columns, 1)
	assert.Equal(t, models.KindConstraint, result.Propagated.Columns[0].SourceType)
	assert.Equal(t, result.EntityID, result.Propagated.Columns[0].SourceID)
	assert.Equal(t, "cust-id", result.Propagated.Columns[0].SourceColumnID)
	assert.Equal(t, []string{"customers"}, f.locks.locked)
}

func TestConstraintService_RemoveOnlyUniqueColumnDeletesConstraintWithoutCascade(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.relationship("fk_order_customer", "orders", "customers", models.RelationshipNonIdentifying)
	created := f.createConstraint("customers", "uq_customer_email", models.ConstraintUnique, "cust-email")
	ccs := f.members(created.EntityID)
	require.Len(t, ccs, 1)
	f.locks.locked = nil

	result, err := f.constraints.RemoveColumnFromConstraint(f.ctx, &models.RemoveConstraintColumnCommand{
		ProjectID:          f.projectID,
		ConstraintColumnID: ccs[0].ID,
	})
	require.NoError(t, err)

	assert.Nil(t, f.findConstraint(created.EntityID))
	assert.Equal(t, []string{created.EntityID}, result.DeletedIDs[models.KindConstraint])
	assert.Equal(t, []string{ccs[0].ID}, result.DeletedIDs[models.KindConstraintColumn])
	assert.Empty(t, result.CascadeRemoved)
	assert.Empty(t, result.CascadeCreatedColumns)
	assert.Empty(t, f.locks.locked, "the cascade engine must not run for UNIQUE constraints")
	assert.Empty(t, f.pairsOf("fk_order_customer"))
}

func TestConstraintService_RemovePrimaryKeyColumnCascades(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.relationship("fk_order_customer", "orders", "customers", models.RelationshipNonIdentifying)
	created := f.createPK("customers", "pk_customers", "cust-id")
	fkID := created.CascadeCreatedColumns[0].FkColumnID
	ccs := f.members(created.EntityID)

	result, err := f.constraints.RemoveColumnFromConstraint(f.ctx, &models.RemoveConstraintColumnCommand{
		ProjectID:          f.projectID,
		ConstraintColumnID: ccs[0].ID,
	})
	require.NoError(t, err)

	require.Len(t, result.CascadeRemoved, 1)
	assert.Equal(t, fkID, result.CascadeRemoved[0].FkColumnID)
	assert.Nil(t, f.findColumn(fkID))
	assert.Empty(t, f.pairsOf("fk_order_customer"))
	assert.NotNil(t, f.findRelationship("fk_order_customer"), "the relationship itself survives")
	assert.Nil(t, f.primaryKey("customers"))
}

func TestConstraintService_DeletePrimaryKeyCascades(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.relationship("fk_order_customer", "orders", "customers", models.RelationshipNonIdentifying)
	created := f.createPK("customers", "pk_customers", "cust-id")
	fkID := created.CascadeCreatedColumns[0].FkColumnID

	result, err := f.constraints.DeleteConstraint(f.ctx, &models.DeleteCommand{ProjectID: f.projectID, EntityID: created.EntityID})
	require.NoError(t, err)

	assert.Nil(t, f.findConstraint(created.EntityID))
	assert.Nil(t, f.findColumn(fkID))
	require.Len(t, result.CascadeRemoved, 1)
	assert.Contains(t, result.DeletedIDs[models.KindColumn], fkID)
}

func TestConstraintService_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *svcFixture)
		cmd     models.CreateConstraintCommand
		rule    string
	}{
		{
			name: "blank name",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "  ", Kind: models.ConstraintUnique, Columns: []models.ConstraintColumnInput{{ColumnID: "cust-email"}}},
			rule: apperrors.RuleBlankName,
		},
		{
			name: "unknown kind",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "x", Kind: "FOREIGN_KEY"},
			rule: apperrors.RuleInvalidKind,
		},
		{
			name: "name used elsewhere in the schema",
			prepare: func(f *svcFixture) {
				f.createConstraint("orders", "uq_total", models.ConstraintUnique, "ord-total")
			},
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "uq_total", Kind: models.ConstraintUnique, Columns: []models.ConstraintColumnInput{{ColumnID: "cust-email"}}},
			rule: apperrors.RuleDuplicateName,
		},
		{
			name: "second primary key",
			prepare: func(f *svcFixture) {
				f.createPK("customers", "pk_customers", "cust-id")
			},
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "pk_again", Kind: models.ConstraintPrimaryKey, Columns: []models.ConstraintColumnInput{{ColumnID: "cust-email"}}},
			rule: apperrors.RulePrimaryKeyExists,
		},
		{
			name: "unique over the primary key columns",
			prepare: func(f *svcFixture) {
				f.createPK("customers", "pk_customers", "cust-id")
			},
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "uq_id", Kind: models.ConstraintUnique, Columns: []models.ConstraintColumnInput{{ColumnID: "cust-id"}}},
			rule: apperrors.RuleUniqueEqualsPK,
		},
		{
			name: "same column set in another order",
			prepare: func(f *svcFixture) {
				f.createConstraint("customers", "uq_a", models.ConstraintUnique, "cust-email", "cust-id")
			},
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "uq_b", Kind: models.ConstraintUnique, Columns: []models.ConstraintColumnInput{{ColumnID: "cust-id"}, {ColumnID: "cust-email"}}},
			rule: apperrors.RuleDuplicateColumnSet,
		},
		{
			name: "check over two columns",
			cmd: models.CreateConstraintCommand{TableID: "customers", Name: "ck", Kind: models.ConstraintCheck, CheckExpr: ptr("id > 0"),
				Columns: []models.ConstraintColumnInput{{ColumnID: "cust-id"}, {ColumnID: "cust-email"}}},
			rule: apperrors.RuleColumnCount,
		},
		{
			name: "default without a column",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "df", Kind: models.ConstraintDefault, DefaultExpr: ptr("0")},
			rule: apperrors.RuleColumnCount,
		},
		{
			name: "check without an expression",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "ck", Kind: models.ConstraintCheck},
			rule: apperrors.RuleInvalidExpression,
		},
		{
			name: "rejected expression",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "ck", Kind: models.ConstraintCheck, CheckExpr: ptr("1; DROP TABLE customers")},
			rule: apperrors.RuleInvalidExpression,
		},
		{
			name: "column of another table",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "uq", Kind: models.ConstraintUnique, Columns: []models.ConstraintColumnInput{{ColumnID: "ord-total"}}},
			rule: apperrors.RuleCrossTableColumn,
		},
		{
			name: "column listed twice",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "uq", Kind: models.ConstraintUnique, Columns: []models.ConstraintColumnInput{{ColumnID: "cust-id"}, {ColumnID: "cust-id"}}},
			rule: apperrors.RuleAlreadyMember,
		},
		{
			name: "primary key without columns",
			cmd:  models.CreateConstraintCommand{TableID: "customers", Name: "pk", Kind: models.ConstraintPrimaryKey},
			rule: apperrors.RuleColumnCount,
		},
		{
			name: "second default on the same column",
			prepare: func(f *svcFixture) {
				f.createExprConstraint("orders", "df_total_a", models.ConstraintDefault, "0", "ord-total")
			},
			cmd: models.CreateConstraintCommand{TableID: "orders", Name: "df_total_b", Kind: models.ConstraintDefault, DefaultExpr: ptr("1"),
				Columns: []models.ConstraintColumnInput{{ColumnID: "ord-total"}}},
			rule: apperrors.RuleDuplicateColumnSet,
		},
		{
			name: "second check on the same column",
			prepare: func(f *svcFixture) {
				f.createExprConstraint("orders", "ck_total_a", models.ConstraintCheck, "total > 0", "ord-total")
			},
			cmd: models.CreateConstraintCommand{TableID: "orders", Name: "ck_total_b", Kind: models.ConstraintCheck, CheckExpr: ptr("total < 100"),
				Columns: []models.ConstraintColumnInput{{ColumnID: "ord-total"}}},
			rule: apperrors.RuleDuplicateColumnSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSvcFixture(t)
			f.seedShop()
			if tt.prepare != nil {
				tt.prepare(f)
			}
			before := f.store.RowCount(models.KindConstraint)

			cmd := tt.cmd
			cmd.ProjectID = f.projectID
			_, err := f.constraints.CreateConstraint(f.ctx, &cmd)

			assertRule(t, err, tt.rule)
			assert.Equal(t, before, f.store.RowCount(models.KindConstraint), "a rejected command writes nothing")
		})
	}
}

func TestConstraintService_CreateOnMissingTable(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()

	_, err := f.constraints.CreateConstraint(f.ctx, &models.CreateConstraintCommand{
		ProjectID: f.projectID,
		TableID:   "ghost",
		Name:      "uq",
		Kind:      models.ConstraintUnique,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestConstraintService_MembershipStaysContiguous(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.column("customers", "cust-phone", "phone", "VARCHAR(32)")
	created := f.createConstraint("customers", "uq_contact", models.ConstraintUnique, "cust-id", "cust-email", "cust-phone")

	ccs := f.members(created.EntityID)
	require.Len(t, ccs, 3)
	result, err := f.constraints.RemoveColumnFromConstraint(f.ctx, &models.RemoveConstraintColumnCommand{
		ProjectID:          f.projectID,
		ConstraintColumnID: ccs[1].ID,
	})
	require.NoError(t, err)

	rest := f.members(created.EntityID)
	require.Len(t, rest, 2)
	assert.Equal(t, "cust-id", rest[0].ColumnID)
	assert.Equal(t, 0, rest[0].SeqNo)
	assert.Equal(t, "cust-phone", rest[1].ColumnID)
	assert.Equal(t, 1, rest[1].SeqNo)
	require.Len(t, result.Propagated.ConstraintColumns, 1, "the renumbered member is reported")

	_, err = f.constraints.AddColumnToConstraint(f.ctx, &models.AddConstraintColumnCommand{
		ProjectID:    f.projectID,
		ConstraintID: created.EntityID,
		ColumnID:     "cust-email",
		SeqNo:        3,
	})
	assertRule(t, err, apperrors.RuleInvalidSeqNo)

	_, err = f.constraints.AddColumnToConstraint(f.ctx, &models.AddConstraintColumnCommand{
		ProjectID:    f.projectID,
		ConstraintID: created.EntityID,
		ColumnID:     "cust-phone",
		SeqNo:        2,
	})
	assertRule(t, err, apperrors.RuleAlreadyMember)

	added, err := f.constraints.AddColumnToConstraint(f.ctx, &models.AddConstraintColumnCommand{
		ProjectID:    f.projectID,
		ConstraintID: created.EntityID,
		ColumnID:     "cust-email",
		SeqNo:        2,
	})
	require.NoError(t, err)
	all := f.members(created.EntityID)
	require.Len(t, all, 3)
	assert.Equal(t, added.EntityID, all[2].ID)
}

func TestConstraintService_AddPrimaryKeyColumnCascades(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.relationship("fk_order_customer", "orders", "customers", models.RelationshipNonIdentifying)
	created := f.createPK("customers", "pk_customers", "cust-id")

	result, err := f.constraints.AddColumnToConstraint(f.ctx, &models.AddConstraintColumnCommand{
		ProjectID:    f.projectID,
		ConstraintID: created.EntityID,
		ColumnID:     "cust-email",
		SeqNo:        1,
	})
	require.NoError(t, err)

	require.Len(t, result.CascadeCreatedColumns, 1)
	assert.Equal(t, "email", result.CascadeCreatedColumns[0].FkColumnName)
	pairs := f.pairsOf("fk_order_customer")
	require.Len(t, pairs, 2)
	assert.Equal(t, "cust-email", pairs[1].RefColumnID)
	assert.Equal(t, 1, pairs[1].SeqNo)
}

func TestConstraintService_ChangeExpression(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()

	created, err := f.constraints.CreateConstraint(f.ctx, &models.CreateConstraintCommand{
		ProjectID: f.projectID,
		TableID:   "orders",
		Name:      "ck_total",
		Kind:      models.ConstraintCheck,
		CheckExpr: ptr("total > 0"),
		Columns:   []models.ConstraintColumnInput{{ColumnID: "ord-total"}},
	})
	require.NoError(t, err)

	_, err = f.constraints.ChangeConstraintExpression(f.ctx, &models.ChangeConstraintExpressionCommand{
		ProjectID:    f.projectID,
		ConstraintID: created.EntityID,
		Expression:   "  total >= 0 ",
	})
	require.NoError(t, err)
	c := f.findConstraint(created.EntityID)
	require.NotNil(t, c.CheckExpr)
	assert.Equal(t, "total >= 0", *c.CheckExpr)

	uq := f.createConstraint("customers", "uq_email", models.ConstraintUnique, "cust-email")
	_, err = f.constraints.ChangeConstraintExpression(f.ctx, &models.ChangeConstraintExpressionCommand{
		ProjectID:    f.projectID,
		ConstraintID: uq.EntityID,
		Expression:   "1",
	})
	assertRule(t, err, apperrors.RuleInvalidKind)
}

func TestConstraintService_ChangeName(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	a := f.createConstraint("customers", "uq_a", models.ConstraintUnique, "cust-email")
	f.createConstraint("orders", "uq_b", models.ConstraintUnique, "ord-total")

	_, err := f.constraints.ChangeConstraintName(f.ctx, &models.RenameCommand{ProjectID: f.projectID, EntityID: a.EntityID, Name: "uq_b"})
	assertRule(t, err, apperrors.RuleDuplicateName)

	_, err = f.constraints.ChangeConstraintName(f.ctx, &models.RenameCommand{ProjectID: f.projectID, EntityID: a.EntityID, Name: "uq_a"})
	require.NoError(t, err, "keeping its own name is allowed")

	_, err = f.constraints.ChangeConstraintName(f.ctx, &models.RenameCommand{ProjectID: f.projectID, EntityID: a.EntityID, Name: "uq_customer_email"})
	require.NoError(t, err)
	assert.Equal(t, "uq_customer_email", f.findConstraint(a.EntityID).Name)
}

func TestConstraintService_CreateWithTreesMapsLogicalIDs(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	pair := loadPair(t, "shop_unique.yaml")

	result, err := f.constraints.CreateConstraint(f.ctx, &models.CreateConstraintCommand{
		ProjectID:    f.projectID,
		LogicalID:    "uq-logical",
		TableID:      "customers",
		Name:         "uq_customer_email",
		Kind:         models.ConstraintUnique,
		Columns:      []models.ConstraintColumnInput{{LogicalID: "ucc-logical", ColumnID: "cust-email"}},
		SnapshotPair: pair,
	})
	require.NoError(t, err)

	assert.Equal(t, result.EntityID, result.IDMappings.Constraints["uq-logical"])
	assert.NotEmpty(t, result.IDMappings.ConstraintColumns["ucc-logical"])
	assert.Empty(t, result.Propagated.Constraints)
	assert.Empty(t, result.Propagated.ConstraintColumns, "members named by the command are not propagated")

	noteID := result.IDMappings.Columns["note-logical"]
	require.NotEmpty(t, noteID)
	require.Len(t, result.Propagated.Columns, 1)
	assert.Equal(t, noteID, result.Propagated.Columns[0].ID)
	assert.Equal(t, models.KindConstraint, result.Propagated.Columns[0].SourceType)
	assert.Equal(t, 1, f.store.RowCount(models.KindConstraint))
}

func TestConstraintService_FailedCommandRollsBack(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	pair := loadPair(t, "shop_unique.yaml")
	// The tree's column points at a table that exists nowhere.
	pair.After.Tables[0].Columns[2].TableID = "ghost"

	_, err := f.constraints.CreateConstraint(f.ctx, &models.CreateConstraintCommand{
		ProjectID:    f.projectID,
		LogicalID:    "uq-logical",
		TableID:      "customers",
		Name:         "uq_customer_email",
		Kind:         models.ConstraintUnique,
		Columns:      []models.ConstraintColumnInput{{LogicalID: "ucc-logical", ColumnID: "cust-email"}},
		SnapshotPair: pair,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIntegrity))

	assert.Equal(t, 0, f.store.RowCount(models.KindConstraint))
	assert.Equal(t, 0, f.store.RowCount(models.KindConstraintColumn))
	assert.Len(t, f.columnsOf("customers"), 2)
}

func TestConstraintService_ExpressionKindsMayShareAColumn(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()

	f.createExprConstraint("orders", "ck_total", models.ConstraintCheck, "total > 0", "ord-total")
	f.createExprConstraint("orders", "df_total", models.ConstraintDefault, "0", "ord-total")
	f.createConstraint("orders", "uq_total", models.ConstraintUnique, "ord-total")

	// Table-level checks carry no columns and never collide.
	f.createExprConstraint("orders", "ck_table_a", models.ConstraintCheck, "total > 0")
	f.createExprConstraint("orders", "ck_table_b", models.ConstraintCheck, "id > 0")
}

func TestConstraintService_AddColumnRejectsSecondCheckOnColumn(t *testing.T) {
	f := newSvcFixture(t)
	f.seedShop()
	f.createExprConstraint("orders", "df_total", models.ConstraintDefault, "0", "ord-total")

	result, err := f.constraints.CreateConstraint(f.ctx, &models.CreateConstraintCommand{
		ProjectID: f.projectID,
		TableID:   "orders",
		Name:      "ck_pending",
		Kind:      models.ConstraintCheck,
		CheckExpr: ptr("total > 0"),
	})
	require.NoError(t, err)
	f.createExprConstraint("orders", "ck_total", models.ConstraintCheck, "total < 100", "ord-total")

	_, err = f.constraints.AddColumnToConstraint(f.ctx, &models.AddConstraintColumnCommand{
		ProjectID:    f.projectID,
		ConstraintID: result.EntityID,
		ColumnID:     "ord-total",
		SeqNo:        0,
	})
	assertRule(t, err, apperrors.RuleDuplicateColumnSet)
	assert.Empty(t, f.members(result.EntityID))
}
