package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/config"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
	Storage     string `json:"storage"`
}

// StorageChecker reports whether the backing store can serve commands.
type StorageChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles liveness, readiness and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	storage StorageChecker
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. storage may be nil when the model is held in
// process, in which case the service is always ready.
func NewHealthHandler(cfg *config.Config, storage StorageChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, storage: storage, logger: logger.Named("health")}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /ready requests: 503 while storage is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.storage != nil {
		if err := h.storage.Ready(r.Context()); err != nil {
			h.logger.Warn("Storage not ready", zap.Error(err))
			_ = ErrorResponse(w, http.StatusServiceUnavailable, "storage_unavailable", "Storage is not reachable")
			return
		}
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ready", "storage": h.cfg.Storage.Driver})
}

// Ping handles GET /ping requests.
// Returns detailed service information including version, environment and storage driver.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-erd",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Storage:     h.cfg.Storage.Driver,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
