package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-erd/pkg/logging"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// Validation rules that mean the request collides with existing state.
var conflictRules = map[string]bool{
	apperrors.RuleDuplicateName:      true,
	apperrors.RuleDuplicateColumnSet: true,
	apperrors.RulePrimaryKeyExists:   true,
	apperrors.RuleUniqueEqualsPK:     true,
	apperrors.RuleAlreadyMember:      true,
}

// writeServiceError maps a service error to a status code and error body:
// not found 404, conflicting rules 409, other rules 422, broken trees 400,
// exhausted serialization retries 409, anything else 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, action string, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Internal server error"

	if rule, ok := apperrors.ValidationRule(err); ok {
		status, code, message = http.StatusUnprocessableEntity, rule, err.Error()
		if conflictRules[rule] {
			status = http.StatusConflict
		}
	} else {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			status, code, message = http.StatusNotFound, "not_found", err.Error()
		case errors.Is(err, apperrors.ErrIntegrity):
			status, code, message = http.StatusBadRequest, "integrity_violation", err.Error()
		case errors.Is(err, apperrors.ErrConflict), retry.IsRetryable(err):
			status, code, message = http.StatusConflict, "concurrent_modification", "The schema was modified concurrently, retry the command"
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Failed to "+action, zap.String("error", logging.SanitizeError(err)))
	} else {
		logger.Debug("Rejected "+action, zap.Int("status", status), zap.String("code", code))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
