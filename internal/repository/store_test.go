package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/database"
	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/types"
)

// setupTestDB starts PostgreSQL in a container and applies the migrations.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("ocr_test"),
		postgres.WithUsername("ocr"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(dsn))

	db, err := database.Connect(ctx, dsn, database.DefaultConfig("docflow-test"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db.Pool
}

func newFileAndTask() (*types.File, *types.Task) {
	file := &types.File{
		ID:         uuid.New(),
		Filename:   "scan.pdf",
		StorageKey: "uploads/" + uuid.NewString() + ".pdf",
		MimeType:   "application/pdf",
	}
	task := &types.Task{
		ID:     uuid.New(),
		FileID: file.ID,
		Status: types.TaskStatusPending,
	}
	return file, task
}

func TestPostgresStore_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := repository.NewPostgresStore(pool)

	file, task := newFileAndTask()
	require.NoError(t, store.CreateFileWithTask(ctx, file, task))
	assert.False(t, file.CreatedAt.IsZero())
	assert.False(t, task.UpdatedAt.IsZero())

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusPending, got.Status)
	assert.Nil(t, got.ErrorMessage)

	_, err = store.TransitionTask(ctx, task.ID, types.TaskStatusProcessing, nil, types.TaskStatusPending)
	require.NoError(t, err)

	for page := 1; page <= 2; page++ {
		require.NoError(t, store.UpsertPageResult(ctx, &types.PageResult{
			ID: uuid.New(), TaskID: task.ID, FileID: file.ID,
			PageNumber: page, StorageKey: types.PageResultKey(file.ID, page),
		}))
	}
	// Re-running a page must not add a row.
	rerun := &types.PageResult{
		ID: uuid.New(), TaskID: task.ID, FileID: file.ID,
		PageNumber: 1, StorageKey: types.PageResultKey(file.ID, 1),
	}
	require.NoError(t, store.UpsertPageResult(ctx, rerun))

	results, err := store.ListPageResults(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].PageNumber)
	assert.Equal(t, results[0].ID, rerun.ID)

	completed, err := store.CompleteTask(ctx, task.ID, file.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, completed.Status)

	gotFile, err := store.GetFile(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, gotFile.TotalPages)
	assert.Equal(t, 2, *gotFile.TotalPages)

	// Terminal states cannot be left.
	msg := "late failure"
	_, err = store.TransitionTask(ctx, task.ID, types.TaskStatusFailed, &msg,
		types.TaskStatusPending, types.TaskStatusProcessing)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
}

func TestPostgresStore_DeleteFileCascades(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := repository.NewPostgresStore(pool)

	file, task := newFileAndTask()
	require.NoError(t, store.CreateFileWithTask(ctx, file, task))
	require.NoError(t, store.DeleteFile(ctx, file.ID))

	_, err := store.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.DeleteFile(ctx, file.ID), repository.ErrNotFound)
}

func TestPostgresStore_CreateRollsBackOnTaskConflict(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := repository.NewPostgresStore(pool)

	file, task := newFileAndTask()
	require.NoError(t, store.CreateFileWithTask(ctx, file, task))

	other, _ := newFileAndTask()
	dup := &types.Task{ID: task.ID, FileID: other.ID, Status: types.TaskStatusPending}
	err := store.CreateFileWithTask(ctx, other, dup)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = store.GetFile(ctx, other.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgresStore_UnknownTask(t *testing.T) {
	pool := setupTestDB(t)
	store := repository.NewPostgresStore(pool)

	_, err := store.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.TransitionTask(context.Background(), uuid.New(), types.TaskStatusProcessing, nil, types.TaskStatusPending)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
