// Package repository is the metadata store: File, Task and PageResult rows in
// PostgreSQL, written with plain SQL through pgx.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amrrdev/docflow/internal/types"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
	// ErrInvalidTransition means the task exists but its current status does
	// not allow the requested transition.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store is everything the pipeline needs from the metadata store. Each call
// acquires its own connection (or transaction) and releases it before
// returning.
type Store interface {
	// CreateFileWithTask inserts the file and its task in one transaction.
	CreateFileWithTask(ctx context.Context, file *types.File, task *types.Task) error
	// DeleteFile removes the file; its task and page results cascade.
	DeleteFile(ctx context.Context, fileID uuid.UUID) error
	GetFile(ctx context.Context, fileID uuid.UUID) (*types.File, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*types.Task, error)
	// TransitionTask moves the task to `to` only if its status is one of
	// `from`. errorMessage is stored as given (nil clears it).
	TransitionTask(ctx context.Context, taskID uuid.UUID, to types.TaskStatus, errorMessage *string, from ...types.TaskStatus) (*types.Task, error)
	// UpsertPageResult inserts or refreshes the row for (task, page number).
	UpsertPageResult(ctx context.Context, result *types.PageResult) error
	ListPageResults(ctx context.Context, taskID uuid.UUID) ([]*types.PageResult, error)
	// CompleteTask sets the file's page count and moves the task from
	// processing to completed in one transaction.
	CompleteTask(ctx context.Context, taskID, fileID uuid.UUID, totalPages int) (*types.Task, error)
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the table
// repositories run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func statusStrings(statuses []types.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
