package types

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition may leave s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// File is an accepted upload. StorageKey is generated at ingestion and never
// derived from Filename.
type File struct {
	ID         uuid.UUID
	Filename   string
	StorageKey string
	MimeType   string
	TotalPages *int
	CreatedAt  time.Time
}

type Task struct {
	ID           uuid.UUID
	FileID       uuid.UUID
	Status       TaskStatus
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PageResult struct {
	ID         uuid.UUID
	TaskID     uuid.UUID
	FileID     uuid.UUID
	PageNumber int
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
