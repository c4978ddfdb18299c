package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
)

// SchemaHandler serves the live schema tree and applies whole before/after trees.
type SchemaHandler struct {
	commandRunner
	schemas services.SchemaService
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(schemas services.SchemaService, retryCfg *retry.Config, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{
		commandRunner: newCommandRunner(retryCfg, logger.Named("schema-handler")),
		schemas:       schemas,
	}
}

// RegisterRoutes registers the schema handler's routes on the given mux.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET "+schemaRoute, tenantMiddleware(h.GetTree))
	mux.HandleFunc("POST "+schemaRoute+"/apply", tenantMiddleware(h.Apply))
}

// GetTree handles GET /api/projects/{pid}/schemas/{sid}
// Returns the authoritative tree with every node unmarked.
func (h *SchemaHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	schemaID, ok := ParseEntityID(w, r, "sid", logger)
	if !ok {
		return
	}

	tree, err := h.schemas.GetSchemaTree(r.Context(), projectID, schemaID)
	if err != nil {
		writeServiceError(w, logger, "load schema tree", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: tree}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// Apply handles POST /api/projects/{pid}/schemas/{sid}/apply
// Body: {"before": {...}, "after": {...}}. Every affected node of the after tree is persisted.
func (h *SchemaHandler) Apply(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	schemaID, ok := ParseEntityID(w, r, "sid", logger)
	if !ok {
		return
	}
	pair, ok := decodeCommand[models.SnapshotPair](w, r, logger)
	if !ok {
		return
	}
	if pair.After != nil && pair.After.ID != schemaID {
		if err := ErrorResponse(w, http.StatusBadRequest, "schema_mismatch", "The after tree describes a different schema"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.execute(w, r, logger, http.StatusOK, "apply schema tree", func(ctx context.Context) (*models.MutationResult, error) {
		return h.schemas.ApplyTree(ctx, projectID, *pair)
	})
}
