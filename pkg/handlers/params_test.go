package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/models"
)

func TestParseProjectID(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantStatus int
	}{
		{name: "valid UUID", pathValue: "550e8400-e29b-41d4-a716-446655440000", wantOK: true},
		{name: "invalid UUID", pathValue: "not-a-uuid", wantStatus: http.StatusBadRequest},
		{name: "empty UUID", pathValue: "", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.SetPathValue("pid", tt.pathValue)
			rec := httptest.NewRecorder()

			id, ok := ParseProjectID(rec, req, logger)

			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if tt.wantOK {
				if id == uuid.Nil {
					t.Error("expected a parsed id")
				}
				return
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body["error"] != "invalid_project_id" {
				t.Errorf("expected invalid_project_id, got %s", body["error"])
			}
		})
	}
}

func TestParseEntityID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.SetPathValue("id", "  col-1 ")
	rec := httptest.NewRecorder()

	id, ok := ParseEntityID(rec, req, "id", zap.NewNop())
	if !ok || id != "col-1" {
		t.Errorf("expected col-1, got %q (ok=%v)", id, ok)
	}

	req.SetPathValue("id", " ")
	rec = httptest.NewRecorder()
	if _, ok := ParseEntityID(rec, req, "id", zap.NewNop()); ok {
		t.Error("expected blank id to be rejected")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestDecodeCommand(t *testing.T) {
	logger := zap.NewNop()

	req := httptest.NewRequest(http.MethodDelete, "/test", nil)
	cmd, ok := decodeCommand[models.DeleteCommand](httptest.NewRecorder(), req, logger)
	if !ok || cmd == nil {
		t.Fatal("expected empty body to decode to a zero command")
	}

	req = httptest.NewRequest(http.MethodPatch, "/test", strings.NewReader(`{"name":"total_amount","excluded_column_ids":["x"]}`))
	rename, ok := decodeCommand[models.RenameCommand](httptest.NewRecorder(), req, logger)
	if !ok {
		t.Fatal("expected body to decode")
	}
	if rename.Name != "total_amount" || len(rename.ExcludedColumnIDs) != 1 {
		t.Errorf("unexpected command: %+v", rename)
	}

	req = httptest.NewRequest(http.MethodPatch, "/test", strings.NewReader(`{"name":`))
	rec := httptest.NewRecorder()
	if _, ok := decodeCommand[models.RenameCommand](rec, req, logger); ok {
		t.Error("expected malformed body to be rejected")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
