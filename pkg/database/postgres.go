package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName tags every pooled session in pg_stat_activity.
const ApplicationName = "ekaya-erd"

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration. Zero values take the pool defaults
// applied in NewConnection.
type Config struct {
	URL             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (cfg *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pc.MaxConns = cfg.MaxConnections
	if pc.MaxConns <= 0 {
		pc.MaxConns = 25
	}
	pc.MinConns = min(cfg.MinConnections, pc.MaxConns)

	pc.MaxConnLifetime = cfg.MaxConnLifetime
	if pc.MaxConnLifetime == 0 {
		pc.MaxConnLifetime = time.Hour
	}
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	if pc.MaxConnIdleTime == 0 {
		pc.MaxConnIdleTime = 30 * time.Minute
	}

	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}
	return pc, nil
}

// NewConnection opens the pool and verifies the server is reachable.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Ready pings the server with a short deadline; used by the readiness check.
func (db *DB) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
