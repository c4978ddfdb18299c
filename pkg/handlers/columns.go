package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
)

// ColumnsHandler handles column mutation requests.
type ColumnsHandler struct {
	commandRunner
	columns services.ColumnService
}

// NewColumnsHandler creates a new columns handler.
func NewColumnsHandler(columns services.ColumnService, retryCfg *retry.Config, logger *zap.Logger) *ColumnsHandler {
	return &ColumnsHandler{
		commandRunner: newCommandRunner(retryCfg, logger.Named("columns-handler")),
		columns:       columns,
	}
}

// RegisterRoutes registers the columns handler's routes on the given mux.
func (h *ColumnsHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST "+schemaRoute+"/tables/{tid}/columns", tenantMiddleware(h.Add))
	mux.HandleFunc("PATCH "+schemaRoute+"/columns/{id}/name", tenantMiddleware(h.Rename))
	mux.HandleFunc("PATCH "+schemaRoute+"/columns/{id}/position", tenantMiddleware(h.Move))
	mux.HandleFunc("PATCH "+schemaRoute+"/columns/{id}/type", tenantMiddleware(h.ChangeType))
	mux.HandleFunc("DELETE "+schemaRoute+"/columns/{id}", tenantMiddleware(h.Delete))
}

// Add handles POST /api/projects/{pid}/schemas/{sid}/tables/{tid}/columns
func (h *ColumnsHandler) Add(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	tableID, ok := ParseEntityID(w, r, "tid", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.AddColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.TableID = tableID

	h.execute(w, r, logger, http.StatusCreated, "add column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.columns.AddColumn(ctx, cmd)
	})
}

// Rename handles PATCH /api/projects/{pid}/schemas/{sid}/columns/{id}/name
func (h *ColumnsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	columnID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RenameCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = columnID

	h.execute(w, r, logger, http.StatusOK, "rename column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.columns.RenameColumn(ctx, cmd)
	})
}

// Move handles PATCH /api/projects/{pid}/schemas/{sid}/columns/{id}/position
func (h *ColumnsHandler) Move(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	columnID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.MoveColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.ColumnID = columnID

	h.execute(w, r, logger, http.StatusOK, "move column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.columns.MoveColumn(ctx, cmd)
	})
}

// ChangeType handles PATCH /api/projects/{pid}/schemas/{sid}/columns/{id}/type
// A primary-key column's new type is copied to every FK column that mirrors it.
func (h *ColumnsHandler) ChangeType(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	columnID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.ChangeColumnTypeCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.ColumnID = columnID

	h.execute(w, r, logger, http.StatusOK, "change column type", func(ctx context.Context) (*models.MutationResult, error) {
		return h.columns.ChangeColumnType(ctx, cmd)
	})
}

// Delete handles DELETE /api/projects/{pid}/schemas/{sid}/columns/{id}
func (h *ColumnsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	columnID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.DeleteCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = columnID

	h.execute(w, r, logger, http.StatusOK, "delete column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.columns.DeleteColumn(ctx, cmd)
	})
}
