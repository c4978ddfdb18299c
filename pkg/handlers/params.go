package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseProjectID extracts and validates the project ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_project_id", "Invalid project ID format", logger)
}

// ParseEntityID returns the non-blank entity id held in path parameter name.
// Entity ids are opaque strings, not necessarily UUIDs.
func ParseEntityID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (string, bool) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_"+name, "Missing "+name+" in path"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return id, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// decodeCommand reads the JSON body into a new T. An empty body yields the zero value,
// so DELETE requests without before/after trees need no body at all.
func decodeCommand[T any](w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*T, bool) {
	cmd := new(T)
	if r.Body == nil {
		return cmd, true
	}
	if err := json.NewDecoder(r.Body).Decode(cmd); err != nil && !errors.Is(err, io.EOF) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return cmd, true
}
