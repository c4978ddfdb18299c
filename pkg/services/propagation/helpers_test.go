package propagation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
)

// fixture is a memory-backed engine with helpers for seeding persisted rows. Seeded ids
// are readable strings; ids the engine generates come from a "gen" sequence.
type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *repositories.MemoryStore
	ports     *repositories.Ports
	projectID uuid.UUID
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOptions(t, Options{})
}

func newFixtureWithOptions(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	ports := store.Ports()
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		store:     store,
		ports:     ports,
		projectID: uuid.New(),
		engine:    NewEngine(ports, idgen.NewSequence("gen"), opts, zap.NewNop()),
	}
}

func (f *fixture) schema(id string) *models.Schema {
	f.t.Helper()
	s := &models.Schema{ID: id, ProjectID: f.projectID, Name: id}
	require.NoError(f.t, f.ports.Schemas.Save(f.ctx, s))
	return s
}

func (f *fixture) table(schemaID, id, name string) *models.Table {
	f.t.Helper()
	t := &models.Table{ID: id, ProjectID: f.projectID, SchemaID: schemaID, Name: name}
	require.NoError(f.t, f.ports.Tables.Save(f.ctx, t))
	return t
}

func (f *fixture) column(tableID, id, name, dataType string) *models.Column {
	f.t.Helper()
	existing, err := f.ports.Columns.FindByTableID(f.ctx, f.projectID, tableID)
	require.NoError(f.t, err)
	c := &models.Column{
		ID:              id,
		ProjectID:       f.projectID,
		TableID:         tableID,
		Name:            name,
		DataType:        dataType,
		OrdinalPosition: len(existing) + 1,
	}
	require.NoError(f.t, f.ports.Columns.Save(f.ctx, c))
	return c
}

func (f *fixture) constraint(tableID, id string, kind models.ConstraintKind, columnIDs ...string) *models.Constraint {
	f.t.Helper()
	c := &models.Constraint{ID: id, ProjectID: f.projectID, TableID: tableID, Name: id, Kind: kind}
	require.NoError(f.t, f.ports.Constraints.Save(f.ctx, c))
	for i, colID := range columnIDs {
		require.NoError(f.t, f.ports.ConstraintColumns.Save(f.ctx, &models.ConstraintColumn{
			ID:           id + "-" + colID,
			ProjectID:    f.projectID,
			ConstraintID: id,
			ColumnID:     colID,
			SeqNo:        i,
		}))
	}
	return c
}

func (f *fixture) relationship(id, srcTableID, tgtTableID string, kind models.RelationshipKind) *models.Relationship {
	f.t.Helper()
	r := &models.Relationship{
		ID:          id,
		ProjectID:   f.projectID,
		SrcTableID:  srcTableID,
		TgtTableID:  tgtTableID,
		Name:        id,
		Kind:        kind,
		Cardinality: models.CardinalityOneToMany,
	}
	require.NoError(f.t, f.ports.Relationships.Save(f.ctx, r))
	return r
}

func (f *fixture) pair(relationshipID, id, fkColumnID, refColumnID string, seqNo int) *models.RelationshipColumn {
	f.t.Helper()
	rc := &models.RelationshipColumn{
		ID:             id,
		ProjectID:      f.projectID,
		RelationshipID: relationshipID,
		FkColumnID:     fkColumnID,
		RefColumnID:    refColumnID,
		SeqNo:          seqNo,
	}
	require.NoError(f.t, f.ports.RelationshipColumns.Save(f.ctx, rc))
	return rc
}

func (f *fixture) findColumn(id string) *models.Column {
	f.t.Helper()
	c, err := f.ports.Columns.FindByID(f.ctx, f.projectID, id)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) columnsOf(tableID string) []*models.Column {
	f.t.Helper()
	cols, err := f.ports.Columns.FindByTableID(f.ctx, f.projectID, tableID)
	require.NoError(f.t, err)
	return cols
}

func (f *fixture) pairsOf(relationshipID string) []*models.RelationshipColumn {
	f.t.Helper()
	rcs, err := f.ports.RelationshipColumns.FindByRelationshipID(f.ctx, f.projectID, relationshipID)
	require.NoError(f.t, err)
	return rcs
}

func (f *fixture) pkMembers(tableID string) []*models.ConstraintColumn {
	f.t.Helper()
	pk, err := f.ports.Constraints.FindPrimaryKeyByTableID(f.ctx, f.projectID, tableID)
	require.NoError(f.t, err)
	if pk == nil {
		return nil
	}
	ccs, err := f.ports.ConstraintColumns.FindByConstraintID(f.ctx, f.projectID, pk.ID)
	require.NoError(f.t, err)
	return ccs
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

// seedParentChild persists the rows both trees of parent_child.yaml start from.
func seedParentChild(f *fixture) {
	f.schema("s-app")
	f.table("s-app", "t-parent", "parent")
	f.table("s-app", "t-child", "child")
	f.column("t-parent", "c-parent-id", "id", "INT")
	f.constraint("t-parent", "pk-parent", models.ConstraintPrimaryKey, "c-parent-id")
}

// recordingTables records row locks and can be told to fail them.
type recordingTables struct {
	repositories.TableRepository
	locked []string
	fail   bool
}

func (r *recordingTables) LockForUpdate(ctx context.Context, projectID uuid.UUID, id string) error {
	r.locked = append(r.locked, id)
	if r.fail {
		return errors.New("lock timeout")
	}
	return r.TableRepository.LockForUpdate(ctx, projectID, id)
}
