package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/types"
)

// Store implements repository.Store with the same guarded-transition and
// cascade semantics as the PostgreSQL store.
type Store struct {
	mu    sync.Mutex
	files map[uuid.UUID]types.File
	tasks map[uuid.UUID]types.Task
	pages map[uuid.UUID]map[int]types.PageResult

	CreateErr     error
	DeleteFileErr error
	GetErr        error
	TransitionErr error
	UpsertErr     error
	CompleteErr   error
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		files: make(map[uuid.UUID]types.File),
		tasks: make(map[uuid.UUID]types.Task),
		pages: make(map[uuid.UUID]map[int]types.PageResult),
	}
}

func (s *Store) CreateFileWithTask(ctx context.Context, file *types.File, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, ok := s.files[file.ID]; ok {
		return fmt.Errorf("%w: file %s", repository.ErrConflict, file.ID)
	}
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: task %s", repository.ErrConflict, task.ID)
	}
	for _, f := range s.files {
		if f.StorageKey == file.StorageKey {
			return fmt.Errorf("%w: storage key %s", repository.ErrConflict, file.StorageKey)
		}
	}

	now := time.Now().UTC()
	file.CreatedAt = now
	task.CreatedAt = now
	task.UpdatedAt = now

	s.files[file.ID] = *file
	s.tasks[task.ID] = *task
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DeleteFileErr != nil {
		return s.DeleteFileErr
	}
	if _, ok := s.files[fileID]; !ok {
		return repository.ErrNotFound
	}

	delete(s.files, fileID)
	for id, t := range s.tasks {
		if t.FileID == fileID {
			delete(s.tasks, id)
			delete(s.pages, id)
		}
	}
	return nil
}

func (s *Store) GetFile(ctx context.Context, fileID uuid.UUID) (*types.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	f, ok := s.files[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (s *Store) GetTask(ctx context.Context, taskID uuid.UUID) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *Store) TransitionTask(ctx context.Context, taskID uuid.UUID, to types.TaskStatus, errorMessage *string, from ...types.TaskStatus) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TransitionErr != nil {
		return nil, s.TransitionErr
	}
	return s.transitionLocked(taskID, to, errorMessage, from)
}

func (s *Store) transitionLocked(taskID uuid.UUID, to types.TaskStatus, errorMessage *string, from []types.TaskStatus) (*types.Task, error) {
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !slices.Contains(from, t.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, t.Status, to)
	}

	t.Status = to
	if errorMessage != nil {
		msg := *errorMessage
		t.ErrorMessage = &msg
	} else {
		t.ErrorMessage = nil
	}
	t.UpdatedAt = time.Now().UTC()
	s.tasks[taskID] = t
	return &t, nil
}

func (s *Store) UpsertPageResult(ctx context.Context, result *types.PageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	if _, ok := s.tasks[result.TaskID]; !ok {
		return fmt.Errorf("%w: task %s", repository.ErrNotFound, result.TaskID)
	}

	byPage, ok := s.pages[result.TaskID]
	if !ok {
		byPage = make(map[int]types.PageResult)
		s.pages[result.TaskID] = byPage
	}

	now := time.Now().UTC()
	if existing, ok := byPage[result.PageNumber]; ok {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
	} else {
		if result.ID == uuid.Nil {
			result.ID = uuid.New()
		}
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	byPage[result.PageNumber] = *result
	return nil
}

func (s *Store) ListPageResults(ctx context.Context, taskID uuid.UUID) ([]*types.PageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}

	results := make([]*types.PageResult, 0, len(s.pages[taskID]))
	for _, p := range s.pages[taskID] {
		results = append(results, &p)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].PageNumber < results[j].PageNumber
	})
	return results, nil
}

func (s *Store) CompleteTask(ctx context.Context, taskID, fileID uuid.UUID, totalPages int) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CompleteErr != nil {
		return nil, s.CompleteErr
	}
	f, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("set total pages: %w", repository.ErrNotFound)
	}

	t, err := s.transitionLocked(taskID, types.TaskStatusCompleted, nil, []types.TaskStatus{types.TaskStatusProcessing})
	if err != nil {
		return nil, err
	}
	pages := totalPages
	f.TotalPages = &pages
	s.files[fileID] = f
	return t, nil
}

// InsertTask seeds a task row, bypassing CreateFileWithTask.
func (s *Store) InsertTask(task types.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// Tasks returns a snapshot of every task row.
func (s *Store) Tasks() []types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// Counts returns the number of file, task and page result rows.
func (s *Store) Counts() (files, tasks, pages int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, byPage := range s.pages {
		pages += len(byPage)
	}
	return len(s.files), len(s.tasks), pages
}

// SetErrors updates the fault-injection fields under the store lock.
func (s *Store) SetErrors(fn func(st *Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
