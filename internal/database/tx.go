package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavel-fokin/docs-stash/internal/documents"
)

// executor is implemented by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

// setTx stores a transaction in the context.
func setTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// getTx returns the transaction stored in ctx, or nil.
func getTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx
}

// ExecTx executes fn within a transaction. Nested calls join the outer
// transaction.
func (r *Repository) ExecTx(ctx context.Context, fn documents.TxFn) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", storageErr(err))
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error("Rollback failed", "error", err)
		}
	}()

	if err := fn(setTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", storageErr(err))
	}
	return nil
}

// conn returns the transaction carried by ctx or the database itself.
func (r *Repository) conn(ctx context.Context) executor {
	if tx := getTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.conn(ctx).ExecContext(ctx, rebind(r.driver, query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.conn(ctx).QueryContext(ctx, rebind(r.driver, query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.conn(ctx).QueryRowContext(ctx, rebind(r.driver, query), args...)
}
