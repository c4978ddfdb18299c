//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-erd/pkg/database"
)

func TestTestDB_MigrationsApplied(t *testing.T) {
	testDB := GetTestDB(t)

	var tableCount int
	err := testDB.DB.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name LIKE 'erd\\_%'").
		Scan(&tableCount)
	if err != nil {
		t.Fatalf("failed to count tables: %v", err)
	}

	if tableCount != 9 {
		t.Errorf("expected 9 erd_* tables, got %d", tableCount)
	}
}

func TestTestDB_TenantContextBindsProject(t *testing.T) {
	testDB := GetTestDB(t)
	projectID := uuid.New()

	ctx := testDB.TenantContext(t, projectID)
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		t.Fatal("expected a tenant scope in the context")
	}

	var got string
	if err := scope.Conn.QueryRow(ctx, "SELECT current_setting('app.current_project_id')").Scan(&got); err != nil {
		t.Fatalf("failed to read setting: %v", err)
	}
	if got != projectID.String() {
		t.Errorf("expected %s, got %s", projectID, got)
	}
}
