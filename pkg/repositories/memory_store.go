package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/database"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

// MemoryStore keeps the schema model in process. It implements every port and a
// transaction manager that restores a snapshot when a command fails, so it backs
// both storage.driver=memory and the service tests.
type MemoryStore struct {
	mu sync.RWMutex
	// txMu serializes commands; WithinTx holds it for the whole unit of work.
	txMu sync.Mutex
	seq  int64

	schemas             *memTable[models.Schema]
	tables              *memTable[models.Table]
	columns             *memTable[models.Column]
	indexes             *memTable[models.Index]
	indexColumns        *memTable[models.IndexColumn]
	constraints         *memTable[models.Constraint]
	constraintColumns   *memTable[models.ConstraintColumn]
	relationships       *memTable[models.Relationship]
	relationshipColumns *memTable[models.RelationshipColumn]
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schemas: newMemTable(models.KindSchema, func(v *models.Schema) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		tables: newMemTable(models.KindTable, func(v *models.Table) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		columns: newMemTable(models.KindColumn, func(v *models.Column) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		indexes: newMemTable(models.KindIndex, func(v *models.Index) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		indexColumns: newMemTable(models.KindIndexColumn, func(v *models.IndexColumn) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		constraints: newMemTable(models.KindConstraint, func(v *models.Constraint) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		constraintColumns: newMemTable(models.KindConstraintColumn, func(v *models.ConstraintColumn) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		relationships: newMemTable(models.KindRelationship, func(v *models.Relationship) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
		relationshipColumns: newMemTable(models.KindRelationshipColumn, func(v *models.RelationshipColumn) *rowMeta {
			return &rowMeta{v.ID, v.ProjectID, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt}
		}),
	}
}

// Ports returns the store's repositories and transaction manager.
func (s *MemoryStore) Ports() *Ports {
	return &Ports{
		Schemas:             &memSchemaRepo{s},
		Tables:              &memTableRepo{s},
		Columns:             &memColumnRepo{s},
		Indexes:             &memIndexRepo{s},
		IndexColumns:        &memIndexColumnRepo{s},
		Constraints:         &memConstraintRepo{s},
		ConstraintColumns:   &memConstraintColumnRepo{s},
		Relationships:       &memRelationshipRepo{s},
		RelationshipColumns: &memRelationshipColumnRepo{s},
		Tx:                  s,
	}
}

// RowCount returns the number of rows of a kind, soft-deleted rows included.
func (s *MemoryStore) RowCount(kind models.EntityKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case models.KindSchema:
		return len(s.schemas.rows)
	case models.KindTable:
		return len(s.tables.rows)
	case models.KindColumn:
		return len(s.columns.rows)
	case models.KindIndex:
		return len(s.indexes.rows)
	case models.KindIndexColumn:
		return len(s.indexColumns.rows)
	case models.KindConstraint:
		return len(s.constraints.rows)
	case models.KindConstraintColumn:
		return len(s.constraintColumns.rows)
	case models.KindRelationship:
		return len(s.relationships.rows)
	case models.KindRelationshipColumn:
		return len(s.relationshipColumns.rows)
	}
	return 0
}

// ============================================================================
// Transactions
// ============================================================================

type memTxKey struct{}

var _ database.TxManager = (*MemoryStore)(nil)

// WithinTx runs fn with the store locked against other commands. Every table is
// snapshotted first and restored if fn returns an error or panics.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(memTxKey{}) == s {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	restore := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, memTxKey{}, s)); err != nil {
		restore()
		return err
	}
	return nil
}

func (s *MemoryStore) snapshot() func() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	restores := []func(){
		s.schemas.snapshot(),
		s.tables.snapshot(),
		s.columns.snapshot(),
		s.indexes.snapshot(),
		s.indexColumns.snapshot(),
		s.constraints.snapshot(),
		s.constraintColumns.snapshot(),
		s.relationships.snapshot(),
		s.relationshipColumns.snapshot(),
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, r := range restores {
			r()
		}
	}
}

// ============================================================================
// Generic table
// ============================================================================

type rowMeta struct {
	id        string
	projectID uuid.UUID
	createdAt *time.Time
	updatedAt *time.Time
	deletedAt **time.Time
}

type memTable[T any] struct {
	kind  models.EntityKind
	meta  func(*T) *rowMeta
	rows  map[string]*T
	order map[string]int64
}

func newMemTable[T any](kind models.EntityKind, meta func(*T) *rowMeta) *memTable[T] {
	return &memTable[T]{kind: kind, meta: meta, rows: map[string]*T{}, order: map[string]int64{}}
}

func (t *memTable[T]) snapshot() func() {
	rows := make(map[string]*T, len(t.rows))
	for id, v := range t.rows {
		c := *v
		rows[id] = &c
	}
	order := make(map[string]int64, len(t.order))
	for id, o := range t.order {
		order[id] = o
	}
	return func() {
		t.rows = rows
		t.order = order
	}
}

func (t *memTable[T]) live(projectID uuid.UUID, v *T) bool {
	m := t.meta(v)
	return m.projectID == projectID && *m.deletedAt == nil
}

func (t *memTable[T]) get(projectID uuid.UUID, id string) *T {
	v, ok := t.rows[id]
	if !ok || !t.live(projectID, v) {
		return nil
	}
	c := *v
	return &c
}

// list returns copies of live rows matching keep, in insertion order.
func (t *memTable[T]) list(projectID uuid.UUID, keep func(*T) bool) []*T {
	out := make([]*T, 0)
	for _, v := range t.rows {
		if t.live(projectID, v) && keep(v) {
			c := *v
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return t.order[t.meta(out[i]).id] < t.order[t.meta(out[j]).id]
	})
	return out
}

func (t *memTable[T]) save(seq *int64, v *T) error {
	m := t.meta(v)
	if m.id == "" {
		return fmt.Errorf("cannot save %s without an id", t.kind.Label())
	}
	now := time.Now()
	if prev, ok := t.rows[m.id]; ok {
		*m.createdAt = *t.meta(prev).createdAt
	} else if m.createdAt.IsZero() {
		*m.createdAt = now
	}
	*m.updatedAt = now

	if _, ok := t.order[m.id]; !ok {
		*seq++
		t.order[m.id] = *seq
	}
	c := *v
	t.rows[m.id] = &c
	return nil
}

func (t *memTable[T]) softDelete(projectID uuid.UUID, id string) error {
	v, ok := t.rows[id]
	if !ok || !t.live(projectID, v) {
		return apperrors.NewNotFound(t.kind.Label(), id)
	}
	c := *v
	m := t.meta(&c)
	now := time.Now()
	*m.deletedAt = &now
	*m.updatedAt = now
	t.rows[id] = &c
	return nil
}

func sortBySeq[T any](rows []*T, seqNo func(*T) int) []*T {
	sort.SliceStable(rows, func(i, j int) bool { return seqNo(rows[i]) < seqNo(rows[j]) })
	return rows
}

// ============================================================================
// Port adapters
// ============================================================================

type memSchemaRepo struct{ s *MemoryStore }

var _ SchemaRepository = (*memSchemaRepo)(nil)

func (r *memSchemaRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.Schema, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.schemas.get(projectID, id), nil
}

func (r *memSchemaRepo) FindByProject(_ context.Context, projectID uuid.UUID) ([]*models.Schema, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.schemas.list(projectID, func(*models.Schema) bool { return true }), nil
}

func (r *memSchemaRepo) Save(_ context.Context, v *models.Schema) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.schemas.save(&r.s.seq, v)
}

func (r *memSchemaRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.schemas.softDelete(projectID, id)
}

type memTableRepo struct{ s *MemoryStore }

var _ TableRepository = (*memTableRepo)(nil)

func (r *memTableRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.Table, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.tables.get(projectID, id), nil
}

func (r *memTableRepo) FindBySchemaID(_ context.Context, projectID uuid.UUID, schemaID string) ([]*models.Table, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.tables.list(projectID, func(t *models.Table) bool { return t.SchemaID == schemaID }), nil
}

func (r *memTableRepo) Save(_ context.Context, v *models.Table) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.tables.save(&r.s.seq, v)
}

func (r *memTableRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.tables.softDelete(projectID, id)
}

func (r *memTableRepo) ExistsBySchemaAndNameExcludingID(_ context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	found := r.s.tables.list(projectID, func(t *models.Table) bool {
		return t.SchemaID == schemaID && t.Name == name && t.ID != excludeID
	})
	return len(found) > 0, nil
}

// LockForUpdate only checks the table exists; WithinTx already serializes commands.
func (r *memTableRepo) LockForUpdate(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.tables.get(projectID, id) == nil {
		return apperrors.NewNotFound(models.KindTable.Label(), id)
	}
	return nil
}

type memColumnRepo struct{ s *MemoryStore }

var _ ColumnRepository = (*memColumnRepo)(nil)

func (r *memColumnRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.Column, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.columns.get(projectID, id), nil
}

func (r *memColumnRepo) FindByTableID(_ context.Context, projectID uuid.UUID, tableID string) ([]*models.Column, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cols := r.s.columns.list(projectID, func(c *models.Column) bool { return c.TableID == tableID })
	return sortBySeq(cols, func(c *models.Column) int { return c.OrdinalPosition }), nil
}

func (r *memColumnRepo) Save(_ context.Context, v *models.Column) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.columns.save(&r.s.seq, v)
}

func (r *memColumnRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.columns.softDelete(projectID, id)
}

func (r *memColumnRepo) ExistsByTableAndNameExcludingID(_ context.Context, projectID uuid.UUID, tableID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	found := r.s.columns.list(projectID, func(c *models.Column) bool {
		return c.TableID == tableID && c.Name == name && c.ID != excludeID
	})
	return len(found) > 0, nil
}

// inSchema reports whether tableID is a live table of schemaID. Callers hold s.mu.
func (s *MemoryStore) inSchema(projectID uuid.UUID, tableID, schemaID string) bool {
	t := s.tables.get(projectID, tableID)
	return t != nil && t.SchemaID == schemaID
}

type memIndexRepo struct{ s *MemoryStore }

var _ IndexRepository = (*memIndexRepo)(nil)

func (r *memIndexRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.Index, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.indexes.get(projectID, id), nil
}

func (r *memIndexRepo) FindByTableID(_ context.Context, projectID uuid.UUID, tableID string) ([]*models.Index, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.indexes.list(projectID, func(i *models.Index) bool { return i.TableID == tableID }), nil
}

func (r *memIndexRepo) Save(_ context.Context, v *models.Index) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.indexes.save(&r.s.seq, v)
}

func (r *memIndexRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.indexes.softDelete(projectID, id)
}

func (r *memIndexRepo) ExistsBySchemaAndNameExcludingID(_ context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	found := r.s.indexes.list(projectID, func(i *models.Index) bool {
		return i.Name == name && i.ID != excludeID && r.s.inSchema(projectID, i.TableID, schemaID)
	})
	return len(found) > 0, nil
}

type memIndexColumnRepo struct{ s *MemoryStore }

var _ IndexColumnRepository = (*memIndexColumnRepo)(nil)

func (r *memIndexColumnRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.IndexColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.indexColumns.get(projectID, id), nil
}

func (r *memIndexColumnRepo) FindByIndexID(_ context.Context, projectID uuid.UUID, indexID string) ([]*models.IndexColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.s.indexColumns.list(projectID, func(ic *models.IndexColumn) bool { return ic.IndexID == indexID })
	return sortBySeq(out, func(ic *models.IndexColumn) int { return ic.SeqNo }), nil
}

func (r *memIndexColumnRepo) FindByColumnID(_ context.Context, projectID uuid.UUID, columnID string) ([]*models.IndexColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.indexColumns.list(projectID, func(ic *models.IndexColumn) bool { return ic.ColumnID == columnID }), nil
}

func (r *memIndexColumnRepo) Save(_ context.Context, v *models.IndexColumn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.indexColumns.save(&r.s.seq, v)
}

func (r *memIndexColumnRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.indexColumns.softDelete(projectID, id)
}

type memConstraintRepo struct{ s *MemoryStore }

var _ ConstraintRepository = (*memConstraintRepo)(nil)

func (r *memConstraintRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.Constraint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.constraints.get(projectID, id), nil
}

func (r *memConstraintRepo) FindByTableID(_ context.Context, projectID uuid.UUID, tableID string) ([]*models.Constraint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.constraints.list(projectID, func(c *models.Constraint) bool { return c.TableID == tableID }), nil
}

func (r *memConstraintRepo) FindPrimaryKeyByTableID(_ context.Context, projectID uuid.UUID, tableID string) (*models.Constraint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	pks := r.s.constraints.list(projectID, func(c *models.Constraint) bool {
		return c.TableID == tableID && c.IsPrimaryKey()
	})
	if len(pks) == 0 {
		return nil, nil
	}
	return pks[0], nil
}

func (r *memConstraintRepo) Save(_ context.Context, v *models.Constraint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.constraints.save(&r.s.seq, v)
}

func (r *memConstraintRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.constraints.softDelete(projectID, id)
}

func (r *memConstraintRepo) ExistsBySchemaAndNameExcludingID(_ context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	found := r.s.constraints.list(projectID, func(c *models.Constraint) bool {
		return c.Name == name && c.ID != excludeID && r.s.inSchema(projectID, c.TableID, schemaID)
	})
	return len(found) > 0, nil
}

type memConstraintColumnRepo struct{ s *MemoryStore }

var _ ConstraintColumnRepository = (*memConstraintColumnRepo)(nil)

func (r *memConstraintColumnRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.ConstraintColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.constraintColumns.get(projectID, id), nil
}

func (r *memConstraintColumnRepo) FindByConstraintID(_ context.Context, projectID uuid.UUID, constraintID string) ([]*models.ConstraintColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.s.constraintColumns.list(projectID, func(cc *models.ConstraintColumn) bool { return cc.ConstraintID == constraintID })
	return sortBySeq(out, func(cc *models.ConstraintColumn) int { return cc.SeqNo }), nil
}

func (r *memConstraintColumnRepo) FindByColumnID(_ context.Context, projectID uuid.UUID, columnID string) ([]*models.ConstraintColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.constraintColumns.list(projectID, func(cc *models.ConstraintColumn) bool { return cc.ColumnID == columnID }), nil
}

func (r *memConstraintColumnRepo) Save(_ context.Context, v *models.ConstraintColumn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.constraintColumns.save(&r.s.seq, v)
}

func (r *memConstraintColumnRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.constraintColumns.softDelete(projectID, id)
}

type memRelationshipRepo struct{ s *MemoryStore }

var _ RelationshipRepository = (*memRelationshipRepo)(nil)

func (r *memRelationshipRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.Relationship, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationships.get(projectID, id), nil
}

func (r *memRelationshipRepo) FindBySrcTableID(_ context.Context, projectID uuid.UUID, tableID string) ([]*models.Relationship, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationships.list(projectID, func(rel *models.Relationship) bool { return rel.SrcTableID == tableID }), nil
}

func (r *memRelationshipRepo) FindByTgtTableID(_ context.Context, projectID uuid.UUID, tableID string) ([]*models.Relationship, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationships.list(projectID, func(rel *models.Relationship) bool { return rel.TgtTableID == tableID }), nil
}

func (r *memRelationshipRepo) Save(_ context.Context, v *models.Relationship) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.relationships.save(&r.s.seq, v)
}

func (r *memRelationshipRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.relationships.softDelete(projectID, id)
}

func (r *memRelationshipRepo) ExistsBySchemaAndNameExcludingID(_ context.Context, projectID uuid.UUID, schemaID, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	found := r.s.relationships.list(projectID, func(rel *models.Relationship) bool {
		return rel.Name == name && rel.ID != excludeID && r.s.inSchema(projectID, rel.SrcTableID, schemaID)
	})
	return len(found) > 0, nil
}

type memRelationshipColumnRepo struct{ s *MemoryStore }

var _ RelationshipColumnRepository = (*memRelationshipColumnRepo)(nil)

func (r *memRelationshipColumnRepo) FindByID(_ context.Context, projectID uuid.UUID, id string) (*models.RelationshipColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationshipColumns.get(projectID, id), nil
}

func (r *memRelationshipColumnRepo) FindByRelationshipID(_ context.Context, projectID uuid.UUID, relationshipID string) ([]*models.RelationshipColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.s.relationshipColumns.list(projectID, func(rc *models.RelationshipColumn) bool { return rc.RelationshipID == relationshipID })
	return sortBySeq(out, func(rc *models.RelationshipColumn) int { return rc.SeqNo }), nil
}

func (r *memRelationshipColumnRepo) FindByFkColumnID(_ context.Context, projectID uuid.UUID, columnID string) ([]*models.RelationshipColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationshipColumns.list(projectID, func(rc *models.RelationshipColumn) bool { return rc.FkColumnID == columnID }), nil
}

func (r *memRelationshipColumnRepo) FindByRefColumnID(_ context.Context, projectID uuid.UUID, columnID string) ([]*models.RelationshipColumn, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.relationshipColumns.list(projectID, func(rc *models.RelationshipColumn) bool { return rc.RefColumnID == columnID }), nil
}

func (r *memRelationshipColumnRepo) Save(_ context.Context, v *models.RelationshipColumn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.relationshipColumns.save(&r.s.seq, v)
}

func (r *memRelationshipColumnRepo) SoftDeleteByID(_ context.Context, projectID uuid.UUID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.relationshipColumns.softDelete(projectID, id)
}
