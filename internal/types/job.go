package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ProcessingJob is the queue message body. It carries only the task id; the
// consumer reloads everything else from the metadata store.
type ProcessingJob struct {
	TaskID string `json:"task_id"`
}

func (j ProcessingJob) ParseTaskID() (uuid.UUID, error) {
	id, err := uuid.Parse(j.TaskID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task_id %q: %w", j.TaskID, err)
	}
	return id, nil
}

// PageResultKey is the deterministic result blob key for one page.
func PageResultKey(fileID uuid.UUID, pageNumber int) string {
	return fmt.Sprintf("%s/page_%d.json", fileID, pageNumber)
}
