// Package saga records compensating actions as the steps of a multi-backend
// operation succeed, and runs them in reverse when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Compensation struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Saga struct {
	steps   []Compensation
	timeout time.Duration
}

func New(timeout time.Duration) *Saga {
	return &Saga{timeout: timeout}
}

// Add records the undo action for a step that has just succeeded.
func (s *Saga) Add(name string, fn func(ctx context.Context) error) {
	s.steps = append(s.steps, Compensation{Name: name, Fn: fn})
}

func (s *Saga) Len() int {
	return len(s.steps)
}

// Compensate runs every recorded action, last first. All actions run even if
// some fail; the returned error joins their failures. The actions get a context
// detached from ctx's cancellation so an aborted request still cleans up.
func (s *Saga) Compensate(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
	}
	s.steps = nil
	return errors.Join(errs...)
}
