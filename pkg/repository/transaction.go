package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// TransactionManager provides transaction management capabilities.
type TransactionManager interface {
	// WithTransaction executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Repositories called with the
	// context passed to fn run inside the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxBeginner is satisfied by *sql.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type txContextKey struct{}

// SQLTransactionManager runs functions in database/sql transactions.
type SQLTransactionManager struct {
	db TxBeginner
}

// NewSQLTransactionManager creates a transaction manager over db.
func NewSQLTransactionManager(db TxBeginner) *SQLTransactionManager {
	return &SQLTransactionManager{db: db}
}

// WithTransaction joins a transaction already present in ctx, or begins a new one.
func (m *SQLTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(context.WithValue(ctx, txContextKey{}, tx))
}

// executorFor returns the transaction stored in ctx, or fallback.
func executorFor(ctx context.Context, fallback SQLExecutor) SQLExecutor {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return fallback
}
