package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/config"
	"github.com/amrrdev/docflow/internal/database"
	"github.com/amrrdev/docflow/internal/handler"
	"github.com/amrrdev/docflow/internal/jwt"
	"github.com/amrrdev/docflow/internal/middleware"
	"github.com/amrrdev/docflow/internal/queue"
	"github.com/amrrdev/docflow/internal/repository"
	"github.com/amrrdev/docflow/internal/server"
	"github.com/amrrdev/docflow/internal/service"
	"github.com/amrrdev/docflow/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := database.Connect(ctx, cfg.DatabaseUrl, database.DefaultConfig("docflow-api"), logger)
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
	defer rabbitClient.Close()
	log.Println("✓ Connected to RabbitMQ")

	producer, err := queue.NewProducer(rabbitClient, cfg.ProcessingQueue, cfg.DeadLetterQueue, logger)
	if err != nil {
		log.Fatalf("Failed to initialize producer: %v", err)
	}
	defer producer.Close()

	store := repository.NewPostgresStore(db.Pool)
	ingestor := service.NewIngestor(store, storageClient, producer, cfg.MinioFilesBucket, logger)
	statusService := service.NewStatusService(store, storageClient, cfg.MinioResultsBucket, cfg.ResultURLTTL, logger)

	jwtService := jwt.NewService(cfg.JWTSecretKey, cfg.AccessTokenTTL)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, cfg.AuthEnabled)

	g := server.NewServer(server.Handlers{
		Files:  handler.NewFileHandler(ingestor, cfg.MaxUploadBytes, logger),
		Tasks:  handler.NewTaskHandler(statusService),
		Health: handler.NewHealthHandler(db, producer),
	}, authMiddleware)

	log.Printf("🚀 API starting on %s", cfg.APIPort)
	if err := g.Run(cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
