package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantScope is a pooled connection bound to one project. Row-level security policies on
// the erd_* tables read app.current_project_id, so a scope only ever sees its project's model.
type TenantScope struct {
	Conn      *pgxpool.Conn
	ProjectID uuid.UUID
}

// Close resets the project setting and returns the connection to the pool.
// It MUST be called so the setting never leaks into the next request.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_project_id")
	s.Conn.Release()
	s.Conn = nil
}

// WithTenant acquires a connection and binds it to projectID.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, projectID uuid.UUID) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_project_id', $1, false)", projectID.String())
	if err != nil {
		conn.Release()
		return nil, err
	}

	return &TenantScope{Conn: conn, ProjectID: projectID}, nil
}

// WithoutTenant acquires a connection with no project binding. Used by migrations and
// integration-test setup only.
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &TenantScope{Conn: conn}, nil
}
