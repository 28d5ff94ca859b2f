package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/amrrdev/docflow/internal/types"
)

type pageResultRepo struct {
	db DBTX
}

func newPageResultRepo(db DBTX) *pageResultRepo {
	return &pageResultRepo{db: db}
}

// Upsert keeps one row per (task, page). On a re-run the existing row keeps
// its id and created_at; the result's fields are refreshed from the database.
func (r *pageResultRepo) Upsert(ctx context.Context, p *types.PageResult) error {
	query := `
		INSERT INTO page_results (id, task_id, file_id, page_number, storage_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id, page_number)
		DO UPDATE SET storage_key = EXCLUDED.storage_key, updated_at = now()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.TaskID, p.FileID, p.PageNumber, p.StorageKey,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert page result %d: %w", p.PageNumber, err)
	}
	return nil
}

func (r *pageResultRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*types.PageResult, error) {
	query := `
		SELECT id, task_id, file_id, page_number, storage_key, created_at, updated_at
		FROM page_results
		WHERE task_id = $1
		ORDER BY page_number`

	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list page results: %w", err)
	}
	defer rows.Close()

	var results []*types.PageResult
	for rows.Next() {
		p := &types.PageResult{}
		if err := rows.Scan(&p.ID, &p.TaskID, &p.FileID, &p.PageNumber, &p.StorageKey, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page result: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate page results: %w", err)
	}
	return results, nil
}
