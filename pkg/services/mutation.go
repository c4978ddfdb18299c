package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
	"github.com/ekaya-inc/ekaya-erd/pkg/sql"
)

// ExpressionValidator checks CHECK and DEFAULT expressions and returns their normalized text.
type ExpressionValidator interface {
	Validate(kind sql.ExpressionKind, fragment string) (string, error)
}

// mutator holds what every mutation service needs: the ports, the propagation engine
// and an id generator for entities the service persists itself.
type mutator struct {
	ports  *repositories.Ports
	engine *propagation.Engine
	ids    idgen.Generator
	logger *zap.Logger
}

func newMutator(ports *repositories.Ports, engine *propagation.Engine, gen idgen.Generator, logger *zap.Logger) mutator {
	return mutator{ports: ports, engine: engine, ids: gen, logger: logger}
}

// run executes fn as one unit of work. The result is only returned when fn commits.
func (m mutator) run(ctx context.Context, fn func(ctx context.Context) (*models.MutationResult, error)) (*models.MutationResult, error) {
	var result *models.MutationResult
	err := m.ports.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ============================================================================
// Loaders (not found -> typed error)
// ============================================================================

func (m mutator) loadTable(ctx context.Context, projectID uuid.UUID, id string) (*models.Table, error) {
	t, err := m.ports.Tables.FindByID(ctx, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	if t == nil {
		return nil, apperrors.NewNotFound(models.KindTable.Label(), id)
	}
	return t, nil
}

func (m mutator) loadColumn(ctx context.Context, projectID uuid.UUID, id string) (*models.Column, error) {
	c, err := m.ports.Columns.FindByID(ctx, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load column: %w", err)
	}
	if c == nil {
		return nil, apperrors.NewNotFound(models.KindColumn.Label(), id)
	}
	return c, nil
}

func (m mutator) loadConstraint(ctx context.Context, projectID uuid.UUID, id string) (*models.Constraint, error) {
	c, err := m.ports.Constraints.FindByID(ctx, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load constraint: %w", err)
	}
	if c == nil {
		return nil, apperrors.NewNotFound(models.KindConstraint.Label(), id)
	}
	return c, nil
}

func (m mutator) loadIndex(ctx context.Context, projectID uuid.UUID, id string) (*models.Index, error) {
	i, err := m.ports.Indexes.FindByID(ctx, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	if i == nil {
		return nil, apperrors.NewNotFound(models.KindIndex.Label(), id)
	}
	return i, nil
}

func (m mutator) loadRelationship(ctx context.Context, projectID uuid.UUID, id string) (*models.Relationship, error) {
	r, err := m.ports.Relationships.FindByID(ctx, projectID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}
	if r == nil {
		return nil, apperrors.NewNotFound(models.KindRelationship.Label(), id)
	}
	return r, nil
}

// loadTableColumns loads each column and checks it belongs to tableID.
func (m mutator) loadTableColumns(ctx context.Context, projectID uuid.UUID, tableID string, ids []string) ([]*models.Column, error) {
	cols := make([]*models.Column, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, apperrors.NewValidation(apperrors.RuleAlreadyMember, "column %s is listed twice", id)
		}
		seen[id] = true

		c, err := m.loadColumn(ctx, projectID, id)
		if err != nil {
			return nil, err
		}
		if c.TableID != tableID {
			return nil, apperrors.NewValidation(apperrors.RuleCrossTableColumn, "column %s does not belong to table %s", id, tableID)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// ============================================================================
// Shared validation
// ============================================================================

func requireName(kind models.EntityKind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidation(apperrors.RuleBlankName, "%s name must not be blank", kind.Label())
	}
	return name, nil
}

func requireSeqNo(seqNo, count int) error {
	if seqNo != count {
		return apperrors.NewValidation(apperrors.RuleInvalidSeqNo, "seq_no must be %d, got %d", count, seqNo)
	}
	return nil
}

func duplicateName(kind models.EntityKind, name string) error {
	return apperrors.NewValidation(apperrors.RuleDuplicateName, "%s name %q is already used in this schema", kind.Label(), name)
}

// sameSet compares two id lists as sets.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func columnIDs(cols []*models.Column) []string {
	ids := make([]string, len(cols))
	for i, c := range cols {
		ids[i] = c.ID
	}
	return ids
}

// logicalOr returns the client's logical id, or persisted when the client sent none.
func logicalOr(logical, persisted string) string {
	if logical == "" {
		return persisted
	}
	return logical
}

func (m mutator) session(projectID uuid.UUID, kind models.EntityKind, pair models.SnapshotPair) *propagation.Session {
	return m.engine.NewSession(projectID, kind, pair)
}

// resolveAll maps logical ids to the persisted ids a walk assigned them. Ids the walk
// never saw are returned unchanged.
func resolveAll(ids *propagation.IDMap, kind models.EntityKind, logical []string) []string {
	if len(logical) == 0 {
		return nil
	}
	out := make([]string, len(logical))
	for i, id := range logical {
		out[i] = ids.Resolve(kind, id)
	}
	return out
}

// excluded returns the persisted forms of the pair's excluded relationship-column and
// column ids, for handing to the cascade engine.
func excluded(s *propagation.Session, pair models.SnapshotPair) ([]string, []string) {
	return resolveAll(s.IDs, models.KindRelationshipColumn, pair.ExcludedRelationshipColumnIDs),
		resolveAll(s.IDs, models.KindColumn, pair.ExcludedColumnIDs)
}
