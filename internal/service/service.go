// Package service holds the pipeline's business logic: ingestion, processing
// and status queries. It depends on narrow interfaces so the same code runs
// against MinIO/PostgreSQL/RabbitMQ or the in-memory stores in tests.
package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the subset of *storage.Storage the services use.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	RemoveObject(ctx context.Context, bucket, key string) error
	PresignedGetURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

type JobPublisher interface {
	PublishProcessingJob(ctx context.Context, taskID uuid.UUID) error
}

type Buckets struct {
	Files   string
	Results string
}
