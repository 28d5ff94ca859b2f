package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/amrrdev/docflow/internal/metrics"
	"github.com/amrrdev/docflow/internal/types"
)

const retryCountHeader = "x-retry-count"

var errDeliveriesClosed = errors.New("delivery channel closed")

// JobSource is the queue side of the worker; *queue.Consumer implements it.
type JobSource interface {
	Consume() (<-chan amqp.Delivery, error)
	Republish(ctx context.Context, msg amqp.Delivery, headers amqp.Table) error
}

type TaskHandler interface {
	Handle(ctx context.Context, taskID uuid.UUID) error
}

type Config struct {
	Concurrency   int
	MaxRetries    int
	StatsInterval time.Duration
	// RetryDelay is multiplied by the attempt number before a job is
	// republished.
	RetryDelay time.Duration
}

type ProcessingWorker struct {
	source  JobSource
	handler TaskHandler
	cfg     Config
	stats   *Stats
	logger  *zap.Logger
}

func NewProcessingWorker(source JobSource, handler TaskHandler, cfg Config, logger *zap.Logger) *ProcessingWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &ProcessingWorker{
		source:  source,
		handler: handler,
		cfg:     cfg,
		stats:   &Stats{},
		logger:  logger,
	}
}

func (w *ProcessingWorker) Stats() *Stats {
	return w.stats
}

// Start consumes until ctx is cancelled or the broker closes the delivery
// channel. Jobs already running when ctx is cancelled are finished first.
func (w *ProcessingWorker) Start(ctx context.Context) error {
	w.logger.Info("starting processing worker", zap.Int("concurrency", w.cfg.Concurrency))

	messages, err := w.source.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range w.cfg.Concurrency {
		g.Go(func() error {
			return w.run(gctx, i, messages)
		})
	}
	if w.cfg.StatsInterval > 0 {
		g.Go(func() error {
			w.reportStats(gctx)
			return nil
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		w.logger.Info("processing worker stopped", zap.Object("stats", w.stats.Snapshot()))
		return nil
	}
	return err
}

func (w *ProcessingWorker) run(ctx context.Context, workerID int, messages <-chan amqp.Delivery) error {
	log := w.logger.With(zap.Int("worker_id", workerID))
	log.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				log.Warn("delivery channel closed")
				return errDeliveriesClosed
			}
			w.process(ctx, log, msg)
		}
	}
}

// process handles one delivery. ctx is the worker's lifetime: cancelling it
// cuts short a retry delay but never a running job.
func (w *ProcessingWorker) process(ctx context.Context, log *zap.Logger, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked, dead-lettering", zap.Any("panic", r))
			w.deadLetter(log, msg, "panic")
		}
	}()

	var job types.ProcessingJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		log.Error("failed to parse job, dead-lettering", zap.Error(err))
		w.deadLetter(log, msg, "malformed")
		return
	}

	taskID, err := job.ParseTaskID()
	if err != nil {
		log.Error("invalid task id, dead-lettering", zap.Error(err))
		w.deadLetter(log, msg, "malformed")
		return
	}

	log = log.With(zap.String("task_id", taskID.String()))

	if err := w.handler.Handle(context.WithoutCancel(ctx), taskID); err != nil {
		log.Error("job failed", zap.Error(err))
		w.retry(ctx, log, msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Warn("failed to ack message", zap.Error(err))
	}
	w.stats.processed.Add(1)
}

// retry republishes the job with an incremented retry header and acks the
// original, or dead-letters it once the retries are used up.
func (w *ProcessingWorker) retry(ctx context.Context, log *zap.Logger, msg amqp.Delivery) {
	attempt := retryCount(msg)
	if attempt >= w.cfg.MaxRetries {
		log.Error("job failed after retries, dead-lettering", zap.Int("retries", attempt))
		w.deadLetter(log, msg, "retries_exhausted")
		return
	}
	attempt++

	if w.cfg.RetryDelay > 0 {
		timer := time.NewTimer(time.Duration(attempt) * w.cfg.RetryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			log.Info("shutting down, requeueing without delay")
		}
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempt)

	if err := w.source.Republish(context.WithoutCancel(ctx), msg, headers); err != nil {
		log.Error("failed to republish job, dead-lettering", zap.Error(err))
		w.deadLetter(log, msg, "republish_failed")
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Warn("failed to ack message", zap.Error(err))
	}

	w.stats.retried.Add(1)
	metrics.JobRetried()
	log.Info("job requeued", zap.Int("attempt", attempt), zap.Int("max_retries", w.cfg.MaxRetries))
}

func (w *ProcessingWorker) deadLetter(log *zap.Logger, msg amqp.Delivery, reason string) {
	if err := msg.Nack(false, false); err != nil {
		log.Warn("failed to nack message", zap.Error(err))
	}
	w.stats.failed.Add(1)
	metrics.JobDeadLettered(reason)
}

func retryCount(msg amqp.Delivery) int {
	switch v := msg.Headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
