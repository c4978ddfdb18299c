package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
	"github.com/ekaya-inc/ekaya-erd/pkg/sql"
)

// stubExpressions accepts any fragment without "DROP" and trims it.
type stubExpressions struct{}

func (stubExpressions) Validate(kind sql.ExpressionKind, fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" || strings.Contains(strings.ToUpper(fragment), "DROP") {
		return "", &sql.ExpressionError{Kind: kind, Reason: "rejected"}
	}
	return strings.TrimSpace(fragment), nil
}

// lockRecorder records table locks taken by the cascade engine.
type lockRecorder struct {
	repositories.TableRepository
	locked []string
}

func (r *lockRecorder) LockForUpdate(ctx context.Context, projectID uuid.UUID, id string) error {
	r.locked = append(r.locked, id)
	return r.TableRepository.LockForUpdate(ctx, projectID, id)
}

// svcFixture wires every mutation service to one memory store. Seeded ids are readable
// strings; generated ids come from a shared "gen" sequence.
type svcFixture struct {
	t         *testing.T
	ctx       context.Context
	store     *repositories.MemoryStore
	ports     *repositories.Ports
	locks     *lockRecorder
	projectID uuid.UUID

	constraints   ConstraintService
	relationships RelationshipService
	indexes       IndexService
	columns       ColumnService
	schemas       SchemaService
}

func newSvcFixture(t *testing.T) *svcFixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	ports := store.Ports()
	locks := &lockRecorder{TableRepository: ports.Tables}
	ports.Tables = locks

	gen := idgen.NewSequence("gen")
	logger := zap.NewNop()
	engine := propagation.NewEngine(ports, gen, propagation.Options{LockTargetTable: true}, logger)

	return &svcFixture{
		t:             t,
		ctx:           context.Background(),
		store:         store,
		ports:         ports,
		locks:         locks,
		projectID:     uuid.New(),
		constraints:   NewConstraintService(ports, engine, gen, stubExpressions{}, logger),
		relationships: NewRelationshipService(ports, engine, gen, logger),
		indexes:       NewIndexService(ports, engine, gen, logger),
		columns:       NewColumnService(ports, engine, gen, logger),
		schemas:       NewSchemaService(ports, engine, gen, logger),
	}
}

func (f *svcFixture) schema(id string) {
	f.t.Helper()
	require.NoError(f.t, f.ports.Schemas.Save(f.ctx, &models.Schema{ID: id, ProjectID: f.projectID, Name: id}))
}

func (f *svcFixture) table(schemaID, id, name string) {
	f.t.Helper()
	require.NoError(f.t, f.ports.Tables.Save(f.ctx, &models.Table{ID: id, ProjectID: f.projectID, SchemaID: schemaID, Name: name}))
}

func (f *svcFixture) column(tableID, id, name, dataType string) {
	f.t.Helper()
	existing := f.columnsOf(tableID)
	require.NoError(f.t, f.ports.Columns.Save(f.ctx, &models.Column{
		ID:              id,
		ProjectID:       f.projectID,
		TableID:         tableID,
		Name:            name,
		DataType:        dataType,
		OrdinalPosition: len(existing) + 1,
		IsNullable:      true,
	}))
}

func (f *svcFixture) relationship(id, src, tgt string, kind models.RelationshipKind) {
	f.t.Helper()
	require.NoError(f.t, f.ports.Relationships.Save(f.ctx, &models.Relationship{
		ID:          id,
		ProjectID:   f.projectID,
		SrcTableID:  src,
		TgtTableID:  tgt,
		Name:        id,
		Kind:        kind,
		Cardinality: models.CardinalityOneToMany,
	}))
}

func (f *svcFixture) columnsOf(tableID string) []*models.Column {
	f.t.Helper()
	cols, err := f.ports.Columns.FindByTableID(f.ctx, f.projectID, tableID)
	require.NoError(f.t, err)
	return cols
}

func (f *svcFixture) findColumn(id string) *models.Column {
	f.t.Helper()
	c, err := f.ports.Columns.FindByID(f.ctx, f.projectID, id)
	require.NoError(f.t, err)
	return c
}

func (f *svcFixture) findConstraint(id string) *models.Constraint {
	f.t.Helper()
	c, err := f.ports.Constraints.FindByID(f.ctx, f.projectID, id)
	require.NoError(f.t, err)
	return c
}

func (f *svcFixture) findRelationship(id string) *models.Relationship {
	f.t.Helper()
	r, err := f.ports.Relationships.FindByID(f.ctx, f.projectID, id)
	require.NoError(f.t, err)
	return r
}

func (f *svcFixture) members(constraintID string) []*models.ConstraintColumn {
	f.t.Helper()
	ccs, err := f.ports.ConstraintColumns.FindByConstraintID(f.ctx, f.projectID, constraintID)
	require.NoError(f.t, err)
	return ccs
}

func (f *svcFixture) pairsOf(relationshipID string) []*models.RelationshipColumn {
	f.t.Helper()
	rcs, err := f.ports.RelationshipColumns.FindByRelationshipID(f.ctx, f.projectID, relationshipID)
	require.NoError(f.t, err)
	return rcs
}

func (f *svcFixture) primaryKey(tableID string) *models.Constraint {
	f.t.Helper()
	pk, err := f.ports.Constraints.FindPrimaryKeyByTableID(f.ctx, f.projectID, tableID)
	require.NoError(f.t, err)
	return pk
}

// createPK creates a primary key over columnIDs through the service.
func (f *svcFixture) createPK(tableID, name string, columnIDs ...string) *models.MutationResult {
	f.t.Helper()
	return f.createConstraint(tableID, name, models.ConstraintPrimaryKey, columnIDs...)
}

func (f *svcFixture) createConstraint(tableID, name string, kind models.ConstraintKind, columnIDs ...string) *models.MutationResult {
	f.t.Helper()
	cols := make([]models.ConstraintColumnInput, len(columnIDs))
	for i, id := range columnIDs {
		cols[i] = models.ConstraintColumnInput{ColumnID: id}
	}
	result, err := f.constraints.CreateConstraint(f.ctx, &models.CreateConstraintCommand{
		ProjectID: f.projectID,
		TableID:   tableID,
		Name:      name,
		Kind:      kind,
		Columns:   cols,
	})
	require.NoError(f.t, err)
	return result
}

// createExprConstraint creates a CHECK or DEFAULT constraint with the given expression.
func (f *svcFixture) createExprConstraint(tableID, name string, kind models.ConstraintKind, expr string, columnIDs ...string) *models.MutationResult {
	f.t.Helper()
	cols := make([]models.ConstraintColumnInput, len(columnIDs))
	for i, id := range columnIDs {
		cols[i] = models.ConstraintColumnInput{ColumnID: id}
	}
	cmd := &models.CreateConstraintCommand{
		ProjectID: f.projectID,
		TableID:   tableID,
		Name:      name,
		Kind:      kind,
		Columns:   cols,
	}
	if kind == models.ConstraintDefault {
		cmd.DefaultExpr = &expr
	} else {
		cmd.CheckExpr = &expr
	}
	result, err := f.constraints.CreateConstraint(f.ctx, cmd)
	require.NoError(f.t, err)
	return result
}

// seedShop persists schema "shop" with customers(id, email) and orders(id, total).
func (f *svcFixture) seedShop() {
	f.schema("shop")
	f.table("shop", "customers", "customers")
	f.column("customers", "cust-id", "id", "INT")
	f.column("customers", "cust-email", "email", "VARCHAR(255)")
	f.table("shop", "orders", "orders")
	f.column("orders", "ord-id", "id", "INT")
	f.column("orders", "ord-total", "total", "DECIMAL(10,2)")
}

// loadPair reads a before/after fixture from testdata.
func loadPair(t *testing.T, name string) models.SnapshotPair {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	var pair models.SnapshotPair
	require.NoError(t, yaml.Unmarshal(data, &pair))
	return pair
}

func assertRule(t *testing.T, err error, rule string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation), "expected validation error, got %v", err)
	got, ok := apperrors.ValidationRule(err)
	require.True(t, ok)
	assert.Equal(t, rule, got)
}

func TestSameSet(t *testing.T) {
	assert.True(t, sameSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameSet([]string{"a", "b"}, []string{"a"}))
	assert.False(t, sameSet([]string{"a", "a"}, []string{"a", "b"}))
	assert.True(t, sameSet(nil, nil))
}

func TestRequireName(t *testing.T) {
	name, err := requireName(models.KindIndex, "  idx_orders  ")
	require.NoError(t, err)
	assert.Equal(t, "idx_orders", name)

	_, err = requireName(models.KindIndex, "   ")
	assertRule(t, err, apperrors.RuleBlankName)
}
