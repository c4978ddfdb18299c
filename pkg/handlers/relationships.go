package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
)

// RelationshipsHandler handles relationship mutation requests.
type RelationshipsHandler struct {
	commandRunner
	relationships services.RelationshipService
}

// NewRelationshipsHandler creates a new relationships handler.
func NewRelationshipsHandler(relationships services.RelationshipService, retryCfg *retry.Config, logger *zap.Logger) *RelationshipsHandler {
	return &RelationshipsHandler{
		commandRunner: newCommandRunner(retryCfg, logger.Named("relationships-handler")),
		relationships: relationships,
	}
}

// RegisterRoutes registers the relationships handler's routes on the given mux.
func (h *RelationshipsHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST "+schemaRoute+"/relationships", tenantMiddleware(h.Create))
	mux.HandleFunc("POST "+schemaRoute+"/relationships/{id}/columns", tenantMiddleware(h.AddColumn))
	mux.HandleFunc("DELETE "+schemaRoute+"/relationship-columns/{id}", tenantMiddleware(h.RemoveColumn))
	mux.HandleFunc("PATCH "+schemaRoute+"/relationships/{id}/name", tenantMiddleware(h.Rename))
	mux.HandleFunc("PATCH "+schemaRoute+"/relationships/{id}/kind", tenantMiddleware(h.ChangeKind))
	mux.HandleFunc("PATCH "+schemaRoute+"/relationships/{id}/cardinality", tenantMiddleware(h.ChangeCardinality))
	mux.HandleFunc("DELETE "+schemaRoute+"/relationships/{id}", tenantMiddleware(h.Delete))
}

// Create handles POST /api/projects/{pid}/schemas/{sid}/relationships
// With no columns in the body, FK columns are created for every target primary-key column.
func (h *RelationshipsHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.CreateRelationshipCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID

	h.execute(w, r, logger, http.StatusCreated, "create relationship", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.CreateRelationship(ctx, cmd)
	})
}

// AddColumn handles POST /api/projects/{pid}/schemas/{sid}/relationships/{id}/columns
func (h *RelationshipsHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.AddRelationshipColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.RelationshipID = relationshipID

	h.execute(w, r, logger, http.StatusCreated, "add relationship column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.AddColumnToRelationship(ctx, cmd)
	})
}

// RemoveColumn handles DELETE /api/projects/{pid}/schemas/{sid}/relationship-columns/{id}
func (h *RelationshipsHandler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	memberID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RemoveRelationshipColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.RelationshipColumnID = memberID

	h.execute(w, r, logger, http.StatusOK, "remove relationship column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.RemoveColumnFromRelationship(ctx, cmd)
	})
}

// Rename handles PATCH /api/projects/{pid}/schemas/{sid}/relationships/{id}/name
func (h *RelationshipsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RenameCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = relationshipID

	h.execute(w, r, logger, http.StatusOK, "rename relationship", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.ChangeRelationshipName(ctx, cmd)
	})
}

// ChangeKind handles PATCH /api/projects/{pid}/schemas/{sid}/relationships/{id}/kind
func (h *RelationshipsHandler) ChangeKind(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.ChangeRelationshipKindCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.RelationshipID = relationshipID

	h.execute(w, r, logger, http.StatusOK, "change relationship kind", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.ChangeRelationshipKind(ctx, cmd)
	})
}

// ChangeCardinality handles PATCH /api/projects/{pid}/schemas/{sid}/relationships/{id}/cardinality
func (h *RelationshipsHandler) ChangeCardinality(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.ChangeRelationshipCardinalityCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.RelationshipID = relationshipID

	h.execute(w, r, logger, http.StatusOK, "change relationship cardinality", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.ChangeRelationshipCardinality(ctx, cmd)
	})
}

// Delete handles DELETE /api/projects/{pid}/schemas/{sid}/relationships/{id}
func (h *RelationshipsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	relationshipID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.DeleteCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = relationshipID

	h.execute(w, r, logger, http.StatusOK, "delete relationship", func(ctx context.Context) (*models.MutationResult, error) {
		return h.relationships.DeleteRelationship(ctx, cmd)
	})
}
