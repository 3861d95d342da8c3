package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"medical-rag-platform/internal/app"
	"medical-rag-platform/internal/config"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/telemetry"
	"medical-rag-platform/middleware"
	"medical-rag-platform/routes"
	"medical-rag-platform/services"
)

const serviceName = "medical-rag-platform"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.OTelEnabled {
		shutdown, err := telemetry.InitTracer(serviceName, cfg.OTelEndpoint, cfg.GinMode)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	ctx := context.Background()

	indexing, err := app.NewIndexing(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to init indexing:", err)
	}
	defer indexing.Close()

	llm, closeLLM, err := app.NewLLM(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to init LLM:", err)
	}
	defer closeLLM()

	// Redis is optional; it backs rate limiting, shared memory and async indexing
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			log.Fatal("Failed to connect to Redis:", err)
		}
		defer rdb.Close()
	}

	mem, err := app.NewMemory(cfg, rdb)
	if err != nil {
		log.Fatal("Failed to init conversation memory:", err)
	}

	var tasks routes.TaskEnqueuer
	if cfg.AsyncIndexing {
		redisOpt, err := app.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Failed to configure task queue:", err)
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		tasks = client
	}

	queryMetrics := services.NewMetrics()
	chat := services.NewChatService(llm, indexing.Retriever(), mem, queryMetrics, metrics)

	if cfg.ReindexInterval > 0 {
		scheduler, err := services.NewReindexScheduler(indexing.Service, cfg.PDFDir, cfg.ReindexInterval)
		if err != nil {
			log.Fatal("Failed to schedule re-index:", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RequestIDMiddleware())
	if cfg.OTelEnabled {
		router.Use(middleware.TracingMiddleware(serviceName), middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	apiKey := middleware.APIKeyMiddleware(cfg.APIAccessKey)

	// Setup routes
	routes.SetupHealthRoutes(router)
	routes.SetupMetricsRoutes(router, queryMetrics)
	routes.SetupChatRoutes(router, chat, apiKey)
	routes.SetupIndexRoutes(router, cfg, indexing.Service, tasks, apiKey)
	routes.SetupMemoryRoutes(router, chat, apiKey)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "vector_backend", cfg.VectorBackend, "llm", cfg.LLMProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
