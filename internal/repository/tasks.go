package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/amrrdev/docflow/internal/types"
)

type taskRepo struct {
	db DBTX
}

func newTaskRepo(db DBTX) *taskRepo {
	return &taskRepo{db: db}
}

func (r *taskRepo) Create(ctx context.Context, t *types.Task) error {
	query := `
		INSERT INTO tasks (id, file_id, status, error_message)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.FileID, string(t.Status), t.ErrorMessage,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: task %s", ErrConflict, t.ID)
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Task, error) {
	query := `
		SELECT id, file_id, status, error_message, created_at, updated_at
		FROM tasks
		WHERE id = $1`

	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// Transition is a compare-and-set on status: the row only changes when its
// current status is one of from.
func (r *taskRepo) Transition(ctx context.Context, id uuid.UUID, to types.TaskStatus, errorMessage *string, from []types.TaskStatus) (*types.Task, error) {
	query := `
		UPDATE tasks
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($4)
		RETURNING id, file_id, status, error_message, created_at, updated_at`

	t, err := scanTask(r.db.QueryRow(ctx, query, id, string(to), errorMessage, statusStrings(from)))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
}

func scanTask(row pgx.Row) (*types.Task, error) {
	t := &types.Task{}
	var status string
	if err := row.Scan(&t.ID, &t.FileID, &status, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = types.TaskStatus(status)
	return t, nil
}
