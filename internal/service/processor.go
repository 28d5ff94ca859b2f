package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/metrics"
	"github.com/amrrdev/docflow/internal/ocr"
	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/types"
)

const failureWriteTimeout = 15 * time.Second

// Processor runs one task through PENDING -> PROCESSING -> COMPLETED|FAILED.
// It is safe to call Handle again for a task after a crash or a duplicate
// delivery: terminal tasks are left alone and page writes are idempotent.
type Processor struct {
	store      repository.Store
	objects    ObjectStore
	extractor  ocr.Extractor
	buckets    Buckets
	ocrTimeout time.Duration
	logger     *zap.Logger
}

func NewProcessor(store repository.Store, objects ObjectStore, extractor ocr.Extractor, buckets Buckets, ocrTimeout time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		store:      store,
		objects:    objects,
		extractor:  extractor,
		buckets:    buckets,
		ocrTimeout: ocrTimeout,
		logger:     logger,
	}
}

type pageDocument struct {
	Text string `json:"text"`
}

// Handle processes the task. Processing failures are recorded on the task and
// Handle returns nil; a non-nil error means no state could be recorded and
// the job should be retried.
func (p *Processor) Handle(ctx context.Context, taskID uuid.UUID) error {
	started := time.Now()
	log := p.logger.With(zap.String("task_id", taskID.String()))

	task, err := p.store.GetTask(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("task not found, dropping job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	if task.Status.IsTerminal() {
		log.Info("task already finished, skipping", zap.String("status", string(task.Status)))
		return nil
	}

	log = log.With(zap.String("file_id", task.FileID.String()))

	file, err := p.store.GetFile(ctx, task.FileID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Error("associated file not found")
		return p.fail(ctx, log, taskID, started, "Associated file not found.")
	}
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}

	if _, err := p.store.TransitionTask(ctx, taskID, types.TaskStatusProcessing, nil,
		types.TaskStatusPending, types.TaskStatusProcessing); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, repository.ErrNotFound) {
			log.Info("task moved on concurrently, skipping", zap.Error(err))
			return nil
		}
		return fmt.Errorf("mark task processing: %w", err)
	}

	data, err := p.objects.GetObject(ctx, p.buckets.Files, file.StorageKey)
	if err != nil {
		log.Error("failed to retrieve file", zap.String("storage_key", file.StorageKey), zap.Error(err))
		return p.fail(ctx, log, taskID, started, fmt.Sprintf("Failed to retrieve file from storage: %v", err))
	}

	result, err := p.extract(ctx, data, file.MimeType)
	if err != nil {
		log.Error("extraction failed", zap.Error(err))
		return p.fail(ctx, log, taskID, started, err.Error())
	}

	pages, err := orderedPages(result)
	if err != nil {
		log.Error("invalid extraction result", zap.Error(err))
		return p.fail(ctx, log, taskID, started, err.Error())
	}

	for _, page := range pages {
		if err := p.storePage(ctx, task, page); err != nil {
			log.Error("failed to store page result", zap.Int("page", page.PageNumber), zap.Error(err))
			return p.fail(ctx, log, taskID, started, err.Error())
		}
	}

	if _, err := p.store.CompleteTask(ctx, taskID, file.ID, result.TotalPages); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			log.Info("task finished concurrently", zap.Error(err))
			return nil
		}
		log.Error("failed to complete task", zap.Error(err))
		return p.fail(ctx, log, taskID, started, fmt.Sprintf("Failed to save results: %v", err))
	}

	metrics.TaskFinished(string(types.TaskStatusCompleted), started)
	log.Info("task completed", zap.Int("total_pages", result.TotalPages), zap.Duration("took", time.Since(started)))
	return nil
}

// extract runs the OCR call with the configured deadline. An extractor that
// ignores its context is abandoned when the deadline passes.
func (p *Processor) extract(ctx context.Context, data []byte, mimeType string) (*ocr.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.ocrTimeout)
	defer cancel()

	type outcome struct {
		result *ocr.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("OCR extraction panicked: %v", r)}
			}
		}()
		res, err := p.extractor.Extract(ctx, data, mimeType)
		done <- outcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("OCR extraction timed out after %s", p.ocrTimeout)
			}
			return nil, fmt.Errorf("OCR extraction failed: %w", out.err)
		}
		if out.result == nil {
			return nil, errors.New("OCR extraction returned no result")
		}
		return out.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("OCR extraction timed out after %s", p.ocrTimeout)
		}
		return nil, fmt.Errorf("OCR extraction aborted: %w", ctx.Err())
	}
}

// orderedPages checks that the result describes each page 1..TotalPages
// exactly once and returns the pages in ascending order.
func orderedPages(result *ocr.Result) ([]ocr.PageText, error) {
	if result.TotalPages < 1 {
		return nil, errors.New("OCR result has no pages")
	}
	if len(result.Pages) != result.TotalPages {
		return nil, fmt.Errorf("OCR result lists %d pages but reports %d", len(result.Pages), result.TotalPages)
	}

	pages := slices.Clone(result.Pages)
	slices.SortFunc(pages, func(a, b ocr.PageText) int { return a.PageNumber - b.PageNumber })

	for i, page := range pages {
		if page.PageNumber != i+1 {
			return nil, fmt.Errorf("OCR result has invalid or duplicate page number %d", page.PageNumber)
		}
	}
	return pages, nil
}

func (p *Processor) storePage(ctx context.Context, task *types.Task, page ocr.PageText) error {
	body, err := json.Marshal(pageDocument{Text: page.Text})
	if err != nil {
		return fmt.Errorf("failed to encode page %d: %w", page.PageNumber, err)
	}

	key := types.PageResultKey(task.FileID, page.PageNumber)
	if err := p.objects.PutObject(ctx, p.buckets.Results, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return fmt.Errorf("failed to upload result for page %d: %w", page.PageNumber, err)
	}

	if err := p.store.UpsertPageResult(ctx, &types.PageResult{
		ID:         uuid.New(),
		TaskID:     task.ID,
		FileID:     task.FileID,
		PageNumber: page.PageNumber,
		StorageKey: key,
	}); err != nil {
		return fmt.Errorf("failed to save result for page %d: %w", page.PageNumber, err)
	}
	return nil
}

// fail records the task as FAILED on a context that outlives ctx. It returns an
// error only if the failure itself could not be recorded.
func (p *Processor) fail(ctx context.Context, log *zap.Logger, taskID uuid.UUID, started time.Time, message string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	_, err := p.store.TransitionTask(ctx, taskID, types.TaskStatusFailed, &message,
		types.TaskStatusPending, types.TaskStatusProcessing)
	switch {
	case err == nil:
		metrics.TaskFinished(string(types.TaskStatusFailed), started)
		log.Warn("task failed", zap.String("error_message", message))
		return nil
	case errors.Is(err, repository.ErrInvalidTransition), errors.Is(err, repository.ErrNotFound):
		log.Info("task already finished, failure not recorded", zap.Error(err))
		return nil
	default:
		return fmt.Errorf("record task failure: %w", err)
	}
}
