package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"medical-rag-platform/internal/app"
	"medical-rag-platform/internal/config"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/queue"
	"medical-rag-platform/internal/telemetry"
)

const concurrency = 4

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	indexing, err := app.NewIndexing(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to init indexing:", err)
	}
	defer indexing.Close()

	redisOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}

	// Index runs are serialized in-process, so a small pool is enough
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				"default":           3,
				"low":               1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "task", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	queue.NewTaskProcessor(indexing.Service).Register(mux)

	logger.Info("Starting Asynq worker", "concurrency", concurrency, "redis", redisOpt.Addr)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
