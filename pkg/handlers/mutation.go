package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
)

// TenantMiddleware is a function that wraps a handler with tenant context.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// schemaRoute prefixes every schema-scoped route.
const schemaRoute = "/api/projects/{pid}/schemas/{sid}"

// commandRunner executes one mutation command per request and writes its MutationResult.
// Commands that lose a serialization race are re-run as a whole.
type commandRunner struct {
	retry  *retry.Config
	logger *zap.Logger
}

func newCommandRunner(cfg *retry.Config, logger *zap.Logger) commandRunner {
	if cfg == nil {
		cfg = retry.DefaultConfig()
	}
	return commandRunner{retry: cfg, logger: logger}
}

// projectScope parses {pid} and logs the schema the request is addressed to.
func (c commandRunner) projectScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, *zap.Logger, bool) {
	projectID, ok := ParseProjectID(w, r, c.logger)
	if !ok {
		return uuid.Nil, nil, false
	}
	return projectID, c.logger.With(
		zap.String("project_id", projectID.String()),
		zap.String("schema_id", r.PathValue("sid")),
	), true
}

func (c commandRunner) execute(
	w http.ResponseWriter,
	r *http.Request,
	logger *zap.Logger,
	status int,
	action string,
	fn func(ctx context.Context) (*models.MutationResult, error),
) {
	ctx := r.Context()
	result, err := retry.DoWithResult(ctx, c.retry, func() (*models.MutationResult, error) {
		return fn(ctx)
	})
	if err != nil {
		writeServiceError(w, logger, action, err)
		return
	}

	logger.Debug("Command applied",
		zap.String("action", action),
		zap.String("entity_id", result.EntityID),
		zap.Bool("propagated", !result.Propagated.IsEmpty()))

	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: result}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
