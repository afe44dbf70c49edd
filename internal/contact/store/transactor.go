package store

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "coalesce/pkg/platform/tx"
)

// Transactor provides the per-record transactional boundary: the contact
// update, source ref registration, and audit append of one record either all
// commit or all roll back.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PostgresTx wraps each record in a database transaction. Stores pick the
// transaction up from context via pkg/platform/tx.
type PostgresTx struct {
	db *sql.DB
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	dbTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record transaction: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, dbTx)); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit record transaction: %w", err)
	}
	return nil
}

// NoopTx serves the in-memory store, whose writes are individually atomic.
// The clone-then-commit discipline in the merge engine is what keeps a
// failed in-memory merge invisible.
type NoopTx struct{}

func (NoopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
