package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/apperr"
	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/types"
)

type TaskStatusView struct {
	TaskID       uuid.UUID        `json:"taskId"`
	Status       types.TaskStatus `json:"status"`
	ErrorMessage *string          `json:"errorMessage"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type PageResultView struct {
	PageNumber  int    `json:"pageNumber"`
	StorageKey  string `json:"storageKey"`
	DownloadURL string `json:"downloadUrl"`
}

type TaskResultsView struct {
	TaskID   uuid.UUID        `json:"taskId"`
	Pages    []PageResultView `json:"pages"`
	ValidFor string           `json:"validFor"`
}

// StatusService answers task queries. Every call reads the metadata store;
// nothing is cached because workers change task state at any time.
type StatusService struct {
	store         repository.Store
	objects       ObjectStore
	resultsBucket string
	urlTTL        time.Duration
	logger        *zap.Logger
}

func NewStatusService(store repository.Store, objects ObjectStore, resultsBucket string, urlTTL time.Duration, logger *zap.Logger) *StatusService {
	return &StatusService{
		store:         store,
		objects:       objects,
		resultsBucket: resultsBucket,
		urlTTL:        urlTTL,
		logger:        logger,
	}
}

func (s *StatusService) GetStatus(ctx context.Context, rawID string) (*TaskStatusView, error) {
	task, err := s.loadTask(ctx, rawID)
	if err != nil {
		return nil, err
	}

	return &TaskStatusView{
		TaskID:       task.ID,
		Status:       task.Status,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}, nil
}

// GetResults lists the page results of a completed task with presigned
// download URLs.
func (s *StatusService) GetResults(ctx context.Context, rawID string) (*TaskResultsView, error) {
	task, err := s.loadTask(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if task.Status != types.TaskStatusCompleted {
		return nil, apperr.Conflict(fmt.Sprintf("Task with ID %s is %s, results are available once it is completed.", task.ID, task.Status))
	}

	results, err := s.store.ListPageResults(ctx, task.ID)
	if err != nil {
		return nil, apperr.Metadata("Failed to load page results", err)
	}

	pages := make([]PageResultView, 0, len(results))
	for _, r := range results {
		url, err := s.objects.PresignedGetURL(ctx, s.resultsBucket, r.StorageKey, s.urlTTL)
		if err != nil {
			s.logger.Error("failed to presign result", zap.String("task_id", task.ID.String()), zap.String("storage_key", r.StorageKey), zap.Error(err))
			return nil, apperr.Storage("Failed to generate download URL", err)
		}
		pages = append(pages, PageResultView{
			PageNumber:  r.PageNumber,
			StorageKey:  r.StorageKey,
			DownloadURL: url,
		})
	}

	return &TaskResultsView{
		TaskID:   task.ID,
		Pages:    pages,
		ValidFor: fmt.Sprintf("%.0f minutes", s.urlTTL.Minutes()),
	}, nil
}

func (s *StatusService) loadTask(ctx context.Context, rawID string) (*types.Task, error) {
	notFound := apperr.NotFound(fmt.Sprintf("Task with ID %s not found.", rawID))

	taskID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, notFound
	}

	task, err := s.store.GetTask(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		s.logger.Error("failed to load task", zap.String("task_id", rawID), zap.Error(err))
		return nil, apperr.Metadata("Failed to load task", err)
	}
	return task, nil
}
