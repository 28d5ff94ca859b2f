package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type Publisher struct {
	mu   sync.Mutex
	jobs []uuid.UUID

	Err error
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishProcessingJob(ctx context.Context, taskID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.jobs = append(p.jobs, taskID)
	return nil
}

// Published returns the task ids published so far, oldest first.
func (p *Publisher) Published() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uuid.UUID(nil), p.jobs...)
}
