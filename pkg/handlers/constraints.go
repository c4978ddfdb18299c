package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
)

// ConstraintsHandler handles constraint mutation requests.
type ConstraintsHandler struct {
	commandRunner
	constraints services.ConstraintService
}

// NewConstraintsHandler creates a new constraints handler.
func NewConstraintsHandler(constraints services.ConstraintService, retryCfg *retry.Config, logger *zap.Logger) *ConstraintsHandler {
	return &ConstraintsHandler{
		commandRunner: newCommandRunner(retryCfg, logger.Named("constraints-handler")),
		constraints:   constraints,
	}
}

// RegisterRoutes registers the constraints handler's routes on the given mux.
func (h *ConstraintsHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST "+schemaRoute+"/constraints", tenantMiddleware(h.Create))
	mux.HandleFunc("POST "+schemaRoute+"/constraints/{id}/columns", tenantMiddleware(h.AddColumn))
	mux.HandleFunc("DELETE "+schemaRoute+"/constraint-columns/{id}", tenantMiddleware(h.RemoveColumn))
	mux.HandleFunc("PATCH "+schemaRoute+"/constraints/{id}/name", tenantMiddleware(h.Rename))
	mux.HandleFunc("PATCH "+schemaRoute+"/constraints/{id}/expression", tenantMiddleware(h.ChangeExpression))
	mux.HandleFunc("DELETE "+schemaRoute+"/constraints/{id}", tenantMiddleware(h.Delete))
}

// Create handles POST /api/projects/{pid}/schemas/{sid}/constraints
func (h *ConstraintsHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.CreateConstraintCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID

	h.execute(w, r, logger, http.StatusCreated, "create constraint", func(ctx context.Context) (*models.MutationResult, error) {
		return h.constraints.CreateConstraint(ctx, cmd)
	})
}

// AddColumn handles POST /api/projects/{pid}/schemas/{sid}/constraints/{id}/columns
func (h *ConstraintsHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	constraintID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.AddConstraintColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.ConstraintID = constraintID

	h.execute(w, r, logger, http.StatusCreated, "add constraint column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.constraints.AddColumnToConstraint(ctx, cmd)
	})
}

// RemoveColumn handles DELETE /api/projects/{pid}/schemas/{sid}/constraint-columns/{id}
func (h *ConstraintsHandler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	memberID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RemoveConstraintColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.ConstraintColumnID = memberID

	h.execute(w, r, logger, http.StatusOK, "remove constraint column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.constraints.RemoveColumnFromConstraint(ctx, cmd)
	})
}

// Rename handles PATCH /api/projects/{pid}/schemas/{sid}/constraints/{id}/name
func (h *ConstraintsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	constraintID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RenameCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = constraintID

	h.execute(w, r, logger, http.StatusOK, "rename constraint", func(ctx context.Context) (*models.MutationResult, error) {
		return h.constraints.ChangeConstraintName(ctx, cmd)
	})
}

// ChangeExpression handles PATCH /api/projects/{pid}/schemas/{sid}/constraints/{id}/expression
func (h *ConstraintsHandler) ChangeExpression(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	constraintID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.ChangeConstraintExpressionCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.ConstraintID = constraintID

	h.execute(w, r, logger, http.StatusOK, "change constraint expression", func(ctx context.Context) (*models.MutationResult, error) {
		return h.constraints.ChangeConstraintExpression(ctx, cmd)
	})
}

// Delete handles DELETE /api/projects/{pid}/schemas/{sid}/constraints/{id}
func (h *ConstraintsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	constraintID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.DeleteCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = constraintID

	h.execute(w, r, logger, http.StatusOK, "delete constraint", func(ctx context.Context) (*models.MutationResult, error) {
		return h.constraints.DeleteConstraint(ctx, cmd)
	})
}
