package database

import (
	"context"
	"fmt"
)

// TxManager runs one command as a single unit of work: either every write made
// through the context passed to fn commits, or none does.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PgTxManager opens a transaction on the tenant-scoped connection found in ctx.
type PgTxManager struct{}

// NewPgTxManager creates the Postgres transaction manager.
func NewPgTxManager() *PgTxManager {
	return &PgTxManager{}
}

var _ TxManager = (*PgTxManager)(nil)

// WithinTx begins a transaction, stores it in the context handed to fn, and commits when
// fn returns nil. Any error or panic rolls back every write made inside fn.
// Nested calls join the outer transaction.
func (m *PgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	scope, ok := GetTenantScope(ctx)
	if !ok || scope.Conn == nil {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(SetTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
