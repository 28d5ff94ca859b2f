package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/config"
	"github.com/amrrdev/docflow/internal/database"
	"github.com/amrrdev/docflow/internal/ocr"
	"github.com/amrrdev/docflow/internal/queue"
	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/service"
	"github.com/amrrdev/docflow/internal/storage"
	"github.com/amrrdev/docflow/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := database.Connect(ctx, cfg.DatabaseUrl, database.DefaultConfig("docflow-worker"), logger)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()
	log.Println("✓ Connected to PostgreSQL")

	storageClient, err := storage.NewStorage(ctx, &storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Buckets:   []string{cfg.MinioFilesBucket, cfg.MinioResultsBucket},
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("✓ Connected to MinIO")

	rabbitClient, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	log.Println("✓ Connected to RabbitMQ")

	consumer, err := queue.NewConsumer(rabbitClient, cfg.ProcessingQueue, cfg.DeadLetterQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("Failed to initialize consumer: %v", err)
	}
	defer consumer.Close()

	extractor, err := ocr.New(cfg.OCRBackend)
	if err != nil {
		log.Fatalf("Failed to initialize OCR backend: %v", err)
	}

	processor := service.NewProcessor(
		repository.NewPostgresStore(db.Pool),
		storageClient,
		extractor,
		service.Buckets{Files: cfg.MinioFilesBucket, Results: cfg.MinioResultsBucket},
		cfg.OCRTimeout,
		logger,
	)

	processingWorker := worker.NewProcessingWorker(consumer, processor, worker.Config{
		Concurrency:   cfg.WorkerConcurrency,
		MaxRetries:    cfg.WorkerMaxRetries,
		StatsInterval: cfg.WorkerStatsInterval,
		RetryDelay:    time.Second,
	}, logger)

	log.Printf("🚀 Starting processing worker (%s backend)...", cfg.OCRBackend)
	if err := processingWorker.Start(ctx); err != nil {
		log.Fatalf("Worker stopped with error: %v", err)
	}

	log.Println("👋 Worker shut down gracefully")
}
