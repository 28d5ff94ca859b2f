package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/apperr"
	"github.com/amrrdev/docflow/internal/metrics"
	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/saga"
	"github.com/amrrdev/docflow/internal/types"
)

const defaultCompensationTimeout = 30 * time.Second

// allowedMimeTypes maps accepted upload types to the extension of their
// storage key.
var allowedMimeTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

type IngestRequest struct {
	Filename string
	MimeType string
	// Size is the body length in bytes, or -1 when unknown.
	Size int64
	Body io.Reader
}

type IngestResult struct {
	TaskID   uuid.UUID        `json:"taskId"`
	FileID   uuid.UUID        `json:"fileId"`
	Filename string           `json:"filename"`
	Status   types.TaskStatus `json:"status"`
}

type Ingestor struct {
	store               repository.Store
	objects             ObjectStore
	publisher           JobPublisher
	bucket              string
	compensationTimeout time.Duration
	logger              *zap.Logger
}

func NewIngestor(store repository.Store, objects ObjectStore, publisher JobPublisher, filesBucket string, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:               store,
		objects:             objects,
		publisher:           publisher,
		bucket:              filesBucket,
		compensationTimeout: defaultCompensationTimeout,
		logger:              logger,
	}
}

// Ingest stores the upload, records its File and PENDING Task, and enqueues
// the task. Any failure after the blob upload is compensated before Ingest
// returns, so an error result leaves no blob, rows or job behind.
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	mimeType, ext, err := normalizeMimeType(req.MimeType)
	if err != nil {
		metrics.IngestResult(metrics.IngestRejected)
		return nil, err
	}

	fileID := uuid.New()
	taskID := uuid.New()
	storageKey := "uploads/" + fileID.String() + ext
	filename := sanitizeFilename(req.Filename)

	log := i.logger.With(
		zap.String("file_id", fileID.String()),
		zap.String("task_id", taskID.String()),
		zap.String("storage_key", storageKey),
	)

	compensations := saga.New(i.compensationTimeout)

	if err := i.objects.PutObject(ctx, i.bucket, storageKey, req.Body, req.Size, mimeType); err != nil {
		log.Error("failed to upload file", zap.Error(err))
		metrics.IngestResult(metrics.IngestFailed)
		return nil, apperr.Storage("Failed to upload file to storage", err)
	}
	compensations.Add("remove blob", func(ctx context.Context) error {
		return i.objects.RemoveObject(ctx, i.bucket, storageKey)
	})

	file := &types.File{
		ID:         fileID,
		Filename:   filename,
		StorageKey: storageKey,
		MimeType:   mimeType,
	}
	task := &types.Task{
		ID:     taskID,
		FileID: fileID,
		Status: types.TaskStatusPending,
	}

	if err := i.store.CreateFileWithTask(ctx, file, task); err != nil {
		log.Error("failed to save file metadata", zap.Error(err))
		i.compensate(ctx, log, compensations)
		metrics.IngestResult(metrics.IngestFailed)
		return nil, apperr.Metadata("Failed to save file metadata to database", err)
	}

	var publishErr error
	compensations.Add("delete metadata", func(ctx context.Context) error {
		deleteErr := i.store.DeleteFile(ctx, fileID)
		if deleteErr == nil || errors.Is(deleteErr, repository.ErrNotFound) {
			return nil
		}

		// The rows could not be removed; make sure the task is at least terminal.
		msg := fmt.Sprintf("enqueue failed: %v", publishErr)
		_, failErr := i.store.TransitionTask(ctx, taskID, types.TaskStatusFailed, &msg, types.TaskStatusPending)
		if failErr != nil && !errors.Is(failErr, repository.ErrInvalidTransition) {
			return errors.Join(deleteErr, fmt.Errorf("mark task failed: %w", failErr))
		}
		log.Warn("file delete failed, task marked failed instead", zap.Error(deleteErr))
		return nil
	})

	if publishErr = i.publisher.PublishProcessingJob(ctx, taskID); publishErr != nil {
		log.Error("failed to enqueue processing job", zap.Error(publishErr))
		i.compensate(ctx, log, compensations)
		metrics.IngestResult(metrics.IngestFailed)
		return nil, apperr.Queue("Failed to enqueue processing job", publishErr)
	}

	metrics.IngestResult(metrics.IngestAccepted)
	log.Info("file accepted", zap.String("filename", filename), zap.String("mime_type", mimeType))

	return &IngestResult{
		TaskID:   taskID,
		FileID:   fileID,
		Filename: filename,
		Status:   task.Status,
	}, nil
}

func (i *Ingestor) compensate(ctx context.Context, log *zap.Logger, s *saga.Saga) {
	if err := s.Compensate(ctx); err != nil {
		log.Error("compensation incomplete", zap.Error(err))
	}
}

// normalizeMimeType lowercases the declared type, drops its parameters and
// checks it against the allow-list.
func normalizeMimeType(declared string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil {
		if ext, ok := allowedMimeTypes[mediaType]; ok {
			return mediaType, ext, nil
		}
	}
	return "", "", apperr.Validation(fmt.Sprintf("File type '%s' is not allowed. Please upload a PDF, PNG, or JPG.", declared))
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
