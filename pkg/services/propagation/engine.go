package propagation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
)

// Engine bundles the propagation components that share one set of ports.
type Engine struct {
	Walker  *Walker
	Applier *Applier
	Cascade *CascadeEngine
	Members *Members
	logger  *zap.Logger
}

// NewEngine wires the walker, applier, cascade engine and membership helper.
func NewEngine(ports *repositories.Ports, gen idgen.Generator, opts Options, logger *zap.Logger) *Engine {
	logger = logger.Named("propagation")
	members := NewMembers(ports, logger)
	return &Engine{
		Walker:  NewWalker(ports, gen, logger),
		Applier: NewApplier(ports, logger),
		Cascade: NewCascadeEngine(ports, gen, members, opts, logger),
		Members: members,
		logger:  logger,
	}
}

// Session carries the command-scoped state of one mutation: the reconciliation map and
// the report. It is discarded with the command.
type Session struct {
	ProjectID uuid.UUID
	IDs       *IDMap
	Report    *Reporter

	engine *Engine
	kind   models.EntityKind
	pair   models.SnapshotPair
}

// NewSession starts the state for one command whose directly persisted entity is of
// sourceKind.
func (e *Engine) NewSession(projectID uuid.UUID, sourceKind models.EntityKind, pair models.SnapshotPair) *Session {
	rep := NewReporter(sourceKind)
	rep.Exclude(pair.ExcludedColumnIDs, pair.ExcludedRelationshipColumnIDs)
	return &Session{
		ProjectID: projectID,
		IDs:       NewIDMap(),
		Report:    rep,
		engine:    e,
		kind:      sourceKind,
		pair:      pair,
	}
}

// Seed records an entity the service persisted itself so the walk resolves references
// to it. Ids the client already sent in persisted form need no entry.
func (s *Session) Seed(kind models.EntityKind, logicalID, persistedID string) error {
	if logicalID == "" || logicalID == persistedID {
		return nil
	}
	if got, ok := s.IDs.Get(kind, logicalID); ok && got == persistedID {
		return nil
	}
	return s.IDs.Put(kind, logicalID, persistedID)
}

// Walk reconciles the command's snapshot pair and saves every affected entity it finds.
// excludedIDs are further logical ids the client named directly. Without an after tree
// it does nothing and returns nil.
func (s *Session) Walk(ctx context.Context, requestedLogicalID, requestedPersistedID string, excludedIDs ...string) (*WalkResult, error) {
	s.Report.Requested(requestedPersistedID)
	s.Report.Requested(excludedIDs...)
	if !s.pair.HasTrees() {
		return nil, nil
	}

	result, err := s.engine.Walker.Walk(ctx, WalkInput{
		ProjectID:                     s.ProjectID,
		Before:                        s.pair.Before,
		After:                         s.pair.After,
		RequestedLogicalID:            requestedLogicalID,
		RequestedPersistedID:          requestedPersistedID,
		SourceKind:                    s.kind,
		ExcludedColumnIDs:             s.pair.ExcludedColumnIDs,
		ExcludedRelationshipColumnIDs: s.pair.ExcludedRelationshipColumnIDs,
		ExcludedIDs:                   excludedIDs,
		IDs:                           s.IDs,
	})
	if err != nil {
		return nil, err
	}
	if err := s.engine.Applier.Apply(ctx, result.Operations); err != nil {
		return nil, err
	}

	s.Report.Merge(result.Propagated)
	for _, id := range excludedIDs {
		for _, kind := range models.AllEntityKinds {
			if persisted, ok := s.IDs.Get(kind, id); ok {
				s.Report.Requested(persisted)
			}
		}
	}
	return result, nil
}

// Result renders the command's response for the entity it was about.
func (s *Session) Result(entityID string) *models.MutationResult {
	return s.Report.Result(entityID, s.IDs)
}
