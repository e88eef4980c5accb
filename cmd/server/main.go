package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lecturehub/backend/internal/api"
	"github.com/lecturehub/backend/internal/auth"
	"github.com/lecturehub/backend/internal/config"
	"github.com/lecturehub/backend/internal/db"
	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/groq"
	"github.com/lecturehub/backend/internal/health"
	"github.com/lecturehub/backend/internal/jobs"
	"github.com/lecturehub/backend/internal/logger"
	"github.com/lecturehub/backend/internal/metrics"
	"github.com/lecturehub/backend/internal/pdf"
	"github.com/lecturehub/backend/internal/pipeline"
	"github.com/lecturehub/backend/internal/pubsub"
	"github.com/lecturehub/backend/internal/storage"
	"github.com/lecturehub/backend/internal/websocket"
)

func main() {
	cfg := config.Load()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	lectureRepo := db.NewLectureRepository(database)

	authService := auth.NewService(userRepo, tokenRepo, cfg.JWTSecret)
	authHandlers := auth.NewHandlers(authService)

	blobs, err := storage.New(&storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	if err := blobs.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("Failed to ensure bucket: %v", err)
	}

	uploader, err := storage.NewS3Uploader(cfg)
	if err != nil {
		log.Fatalf("Failed to create uploader: %v", err)
	}

	queue, err := jobs.NewRedisQueue(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer queue.Close()

	groqClient := groq.NewClient(&groq.ClientConfig{
		BaseURL:            cfg.GroqAPIBase,
		APIKey:             cfg.GroqAPIKey,
		TranscriptionModel: cfg.TranscriptionModel,
		ChatModel:          cfg.ChatModel,
	})

	broker := pubsub.NewBroker()
	publisher := pubsub.NewStatusPublisher(broker)

	stages := pipeline.New(lectureRepo, blobs, groqClient, groqClient, pdf.NewRenderer(), publisher)

	pool := jobs.NewWorkerPool(queue, &jobs.WorkerPoolConfig{WorkerCount: cfg.WorkerCount})
	stages.Register(pool)
	pool.Start()

	m := metrics.Default()
	go reportQueueLength(queue, m)

	healthHandler := health.NewHandler(health.NewChecker(&health.CheckerConfig{
		DB:           database.DB,
		Redis:        queue.Client(),
		StorageCheck: blobs.Ping,
	}))

	wsHandler := websocket.NewHandler(broker, authService)
	lectureHandlers := api.NewLectureHandlers(lectureRepo, uploader, queue)

	router := api.NewRouter(authHandlers, authService, lectureHandlers, wsHandler, healthHandler, m)

	handler := apperrors.RequestIDMiddleware(
		logger.LoggingMiddleware(
			logger.RecoveryMiddleware(
				metrics.MetricsMiddleware(m)(router))))

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}
}

// reportQueueLength exports the pipeline queue depth as a gauge.
func reportQueueLength(queue *jobs.RedisQueue, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		length, err := queue.QueueLength(context.Background())
		if err != nil {
			continue
		}
		m.SetJobQueueLength(length)
	}
}
