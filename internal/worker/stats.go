package worker

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Stats struct {
	processed atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

type StatsSnapshot struct {
	Processed int64
	Failed    int64
	Retried   int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Retried:   s.retried.Load(),
	}
}

func (s StatsSnapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("processed", s.Processed)
	enc.AddInt64("failed", s.Failed)
	enc.AddInt64("retried", s.Retried)
	return nil
}

func (w *ProcessingWorker) reportStats(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.logger.Info("worker stats", zap.Object("stats", w.stats.Snapshot()))
		}
	}
}
