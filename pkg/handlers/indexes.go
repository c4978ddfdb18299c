package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
)

// IndexesHandler handles index mutation requests.
type IndexesHandler struct {
	commandRunner
	indexes services.IndexService
}

// NewIndexesHandler creates a new indexes handler.
func NewIndexesHandler(indexes services.IndexService, retryCfg *retry.Config, logger *zap.Logger) *IndexesHandler {
	return &IndexesHandler{
		commandRunner: newCommandRunner(retryCfg, logger.Named("indexes-handler")),
		indexes:       indexes,
	}
}

// RegisterRoutes registers the indexes handler's routes on the given mux.
func (h *IndexesHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("POST "+schemaRoute+"/indexes", tenantMiddleware(h.Create))
	mux.HandleFunc("POST "+schemaRoute+"/indexes/{id}/columns", tenantMiddleware(h.AddColumn))
	mux.HandleFunc("DELETE "+schemaRoute+"/index-columns/{id}", tenantMiddleware(h.RemoveColumn))
	mux.HandleFunc("PATCH "+schemaRoute+"/index-columns/{id}/sort", tenantMiddleware(h.ChangeSortDirection))
	mux.HandleFunc("PATCH "+schemaRoute+"/indexes/{id}/name", tenantMiddleware(h.Rename))
	mux.HandleFunc("DELETE "+schemaRoute+"/indexes/{id}", tenantMiddleware(h.Delete))
}

// Create handles POST /api/projects/{pid}/schemas/{sid}/indexes
func (h *IndexesHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.CreateIndexCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID

	h.execute(w, r, logger, http.StatusCreated, "create index", func(ctx context.Context) (*models.MutationResult, error) {
		return h.indexes.CreateIndex(ctx, cmd)
	})
}

// AddColumn handles POST /api/projects/{pid}/schemas/{sid}/indexes/{id}/columns
func (h *IndexesHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	indexID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.AddIndexColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.IndexID = indexID

	h.execute(w, r, logger, http.StatusCreated, "add index column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.indexes.AddColumnToIndex(ctx, cmd)
	})
}

// RemoveColumn handles DELETE /api/projects/{pid}/schemas/{sid}/index-columns/{id}
func (h *IndexesHandler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	memberID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RemoveIndexColumnCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.IndexColumnID = memberID

	h.execute(w, r, logger, http.StatusOK, "remove index column", func(ctx context.Context) (*models.MutationResult, error) {
		return h.indexes.RemoveColumnFromIndex(ctx, cmd)
	})
}

// ChangeSortDirection handles PATCH /api/projects/{pid}/schemas/{sid}/index-columns/{id}/sort
func (h *IndexesHandler) ChangeSortDirection(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	memberID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.ChangeIndexColumnSortCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.IndexColumnID = memberID

	h.execute(w, r, logger, http.StatusOK, "change index column sort direction", func(ctx context.Context) (*models.MutationResult, error) {
		return h.indexes.ChangeIndexColumnSortDirection(ctx, cmd)
	})
}

// Rename handles PATCH /api/projects/{pid}/schemas/{sid}/indexes/{id}/name
func (h *IndexesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	indexID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.RenameCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = indexID

	h.execute(w, r, logger, http.StatusOK, "rename index", func(ctx context.Context) (*models.MutationResult, error) {
		return h.indexes.ChangeIndexName(ctx, cmd)
	})
}

// Delete handles DELETE /api/projects/{pid}/schemas/{sid}/indexes/{id}
func (h *IndexesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, logger, ok := h.projectScope(w, r)
	if !ok {
		return
	}
	indexID, ok := ParseEntityID(w, r, "id", logger)
	if !ok {
		return
	}
	cmd, ok := decodeCommand[models.DeleteCommand](w, r, logger)
	if !ok {
		return
	}
	cmd.ProjectID = projectID
	cmd.EntityID = indexID

	h.execute(w, r, logger, http.StatusOK, "delete index", func(ctx context.Context) (*models.MutationResult, error) {
		return h.indexes.DeleteIndex(ctx, cmd)
	})
}
