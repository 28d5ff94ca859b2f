package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amrrdev/docflow/internal/types"
)

type postgresStore struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{
		pool: pool,
		tx:   NewTxRunner(pool),
	}
}

func (s *postgresStore) CreateFileWithTask(ctx context.Context, file *types.File, task *types.Task) error {
	return s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := newFileRepo(tx).Create(ctx, file); err != nil {
			return err
		}
		return newTaskRepo(tx).Create(ctx, task)
	})
}

func (s *postgresStore) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	return newFileRepo(s.pool).Delete(ctx, fileID)
}

func (s *postgresStore) GetFile(ctx context.Context, fileID uuid.UUID) (*types.File, error) {
	return newFileRepo(s.pool).GetByID(ctx, fileID)
}

func (s *postgresStore) GetTask(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	return newTaskRepo(s.pool).GetByID(ctx, taskID)
}

func (s *postgresStore) TransitionTask(ctx context.Context, taskID uuid.UUID, to types.TaskStatus, errorMessage *string, from ...types.TaskStatus) (*types.Task, error) {
	return newTaskRepo(s.pool).Transition(ctx, taskID, to, errorMessage, from)
}

func (s *postgresStore) UpsertPageResult(ctx context.Context, result *types.PageResult) error {
	return newPageResultRepo(s.pool).Upsert(ctx, result)
}

func (s *postgresStore) ListPageResults(ctx context.Context, taskID uuid.UUID) ([]*types.PageResult, error) {
	return newPageResultRepo(s.pool).ListByTask(ctx, taskID)
}

func (s *postgresStore) CompleteTask(ctx context.Context, taskID, fileID uuid.UUID, totalPages int) (*types.Task, error) {
	var completed *types.Task
	err := s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := newFileRepo(tx).SetTotalPages(ctx, fileID, totalPages); err != nil {
			return fmt.Errorf("set total pages: %w", err)
		}
		t, err := newTaskRepo(tx).Transition(ctx, taskID, types.TaskStatusCompleted, nil,
			[]types.TaskStatus{types.TaskStatusProcessing})
		if err != nil {
			return err
		}
		completed = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}
