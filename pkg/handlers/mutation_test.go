package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-erd/pkg/database"
	"github.com/ekaya-inc/ekaya-erd/pkg/idgen"
	"github.com/ekaya-inc/ekaya-erd/pkg/models"
	"github.com/ekaya-inc/ekaya-erd/pkg/repositories"
	"github.com/ekaya-inc/ekaya-erd/pkg/retry"
	"github.com/ekaya-inc/ekaya-erd/pkg/services"
	"github.com/ekaya-inc/ekaya-erd/pkg/services/propagation"
	"github.com/ekaya-inc/ekaya-erd/pkg/sql"
)

// apiFixture serves every mutation route over an in-memory store seeded with a small shop schema.
type apiFixture struct {
	t         *testing.T
	mux       *http.ServeMux
	store     *repositories.MemoryStore
	ports     *repositories.Ports
	projectID uuid.UUID
}

func testRetryConfig() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	ports := store.Ports()
	gen := idgen.NewSequence("gen")
	logger := zap.NewNop()
	engine := propagation.NewEngine(ports, gen, propagation.Options{LockTargetTable: true, MaxDepth: 2}, logger)
	cfg := testRetryConfig()

	mux := http.NewServeMux()
	tenant := TenantMiddleware(database.PassThrough)
	NewSchemaHandler(services.NewSchemaService(ports, engine, gen, logger), cfg, logger).RegisterRoutes(mux, tenant)
	NewConstraintsHandler(services.NewConstraintService(ports, engine, gen, sql.NewExpressionValidator(), logger), cfg, logger).RegisterRoutes(mux, tenant)
	NewRelationshipsHandler(services.NewRelationshipService(ports, engine, gen, logger), cfg, logger).RegisterRoutes(mux, tenant)
	NewIndexesHandler(services.NewIndexService(ports, engine, gen, logger), cfg, logger).RegisterRoutes(mux, tenant)
	NewColumnsHandler(services.NewColumnService(ports, engine, gen, logger), cfg, logger).RegisterRoutes(mux, tenant)

	f := &apiFixture{t: t, mux: mux, store: store, ports: ports, projectID: uuid.New()}
	f.seedShop()
	return f
}

func (f *apiFixture) seedShop() {
	ctx := context.Background()
	require.NoError(f.t, f.ports.Schemas.Save(ctx, &models.Schema{ID: "shop", ProjectID: f.projectID, Name: "shop"}))
	for _, tbl := range []string{"customers", "orders"} {
		require.NoError(f.t, f.ports.Tables.Save(ctx, &models.Table{ID: tbl, ProjectID: f.projectID, SchemaID: "shop", Name: tbl}))
	}
	cols := []models.Column{
		{ID: "cust-id", TableID: "customers", Name: "id", DataType: "INT", OrdinalPosition: 1},
		{ID: "cust-email", TableID: "customers", Name: "email", DataType: "VARCHAR(255)", OrdinalPosition: 2, IsNullable: true},
		{ID: "ord-id", TableID: "orders", Name: "id", DataType: "INT", OrdinalPosition: 1},
		{ID: "ord-total", TableID: "orders", Name: "total", DataType: "DECIMAL(10,2)", OrdinalPosition: 2},
	}
	for i := range cols {
		col := cols[i]
		col.ProjectID = f.projectID
		require.NoError(f.t, f.ports.Columns.Save(ctx, &col))
	}
}

func (f *apiFixture) url(suffix string) string {
	return "/api/projects/" + f.projectID.String() + "/schemas/shop" + suffix
}

// do sends body (marshalled unless it is already a string) and returns the recorder.
func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

type resultEnvelope struct {
	Success bool                  `json:"success"`
	Data    models.MutationResult `json:"data"`
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) *models.MutationResult {
	t.Helper()
	var env resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.True(t, env.Success)
	return &env.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

// createCustomerPK gives customers a primary key on cust-id.
func (f *apiFixture) createCustomerPK() *models.MutationResult {
	f.t.Helper()
	rec := f.do(http.MethodPost, f.url("/constraints"), map[string]any{
		"id":       "pk-logical",
		"table_id": "customers",
		"name":     "pk_customers",
		"kind":     "PRIMARY_KEY",
		"columns":  []map[string]string{{"id": "pkc-logical", "column_id": "cust-id"}},
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeResult(f.t, rec)
}
