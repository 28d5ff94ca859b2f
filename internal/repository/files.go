package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/amrrdev/docflow/internal/types"
)

type fileRepo struct {
	db DBTX
}

func newFileRepo(db DBTX) *fileRepo {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *types.File) error {
	query := `
		INSERT INTO files (id, filename, storage_key, mime_type, total_pages)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.Filename, f.StorageKey, f.MimeType, f.TotalPages,
	).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: file %s", ErrConflict, f.ID)
		}
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.File, error) {
	query := `
		SELECT id, filename, storage_key, mime_type, total_pages, created_at
		FROM files
		WHERE id = $1`

	f := &types.File{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.Filename, &f.StorageKey, &f.MimeType, &f.TotalPages, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

func (r *fileRepo) SetTotalPages(ctx context.Context, id uuid.UUID, totalPages int) error {
	tag, err := r.db.Exec(ctx, `UPDATE files SET total_pages = $2 WHERE id = $1`, id, totalPages)
	if err != nil {
		return fmt.Errorf("failed to update total pages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
