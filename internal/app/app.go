// Package app assembles the components shared by the API server, the
// worker and the maintenance CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"medical-rag-platform/internal/ai"
	"medical-rag-platform/internal/config"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/manifest"
	"medical-rag-platform/internal/memory"
	"medical-rag-platform/internal/telemetry"
	"medical-rag-platform/internal/vectorstore"
	"medical-rag-platform/services"
)

// Indexing owns the indexing pipeline and the connections behind it.
type Indexing struct {
	Config   *config.Config
	Embedder ai.Embedder
	Index    vectorstore.Index
	Service  *services.IndexingService

	closers []func() error
}

func NewIndexing(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Indexing, error) {
	a := &Indexing{Config: cfg}

	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	a.Embedder = embedder
	if c, ok := embedder.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	index, err := a.openIndex()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Index = index
	a.closers = append(a.closers, index.Close)

	a.Service = services.NewIndexingService(
		services.NewFolderLoader(),
		services.NewTextSplitter(cfg.MaxChunkSize, cfg.ChunkOverlap),
		manifest.NewStore(cfg.ManifestPath),
		embedder,
		index,
		metrics,
		services.IndexingOptions{
			Dimension: cfg.VectorDimensions,
			Metric:    cfg.VectorMetric,
			BatchSize: cfg.UpsertBatchSize,
			TopK:      cfg.RetrieverTopK,
			LocalDir:  cfg.PDFDir,
			Backend:   cfg.VectorBackend,
		},
	)
	return a, nil
}

func (a *Indexing) openIndex() (vectorstore.Index, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case "mongo", "":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		return vectorstore.NewMongo(client.Database(cfg.DBName), cfg.IndexName, 0), nil

	case "qdrant":
		client, err := config.NewQdrantClient(cfg)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewQdrant(client, cfg.IndexName, 0), nil

	case "memory":
		return vectorstore.NewLocal(), nil

	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}
}

// Retriever picks the retrieval path selected by RETRIEVER_BACKEND.
func (a *Indexing) Retriever() services.RetrieverProvider {
	if a.Config.RetrieverBackend == "index" {
		r := a.Service.IndexRetriever()
		return func(context.Context) (services.Retriever, error) { return r, nil }
	}
	return a.Service.Retriever
}

// Close releases connections in reverse order of acquisition.
func (a *Indexing) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// NewLLM returns the chat model selected by LLM_PROVIDER and a release func.
func NewLLM(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (ai.LLM, func() error, error) {
	switch cfg.LLMProvider {
	case "gemini", "":
		client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMRPM, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini client: %w", err)
		}
		return client, client.Close, nil
	case "openai":
		return ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMRPM, metrics), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
}

// NewMemory returns the conversation store selected by MEMORY_BACKEND. rdb
// may be nil unless the redis backend is chosen.
func NewMemory(cfg *config.Config, rdb *redis.Client) (memory.Store, error) {
	switch cfg.MemoryBackend {
	case "memory", "":
		return memory.NewInMemoryWithTTL(cfg.MemoryTTL), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("MEMORY_BACKEND=redis requires REDIS_URL")
		}
		return memory.NewRedis(rdb, cfg.MemoryTTL), nil
	default:
		return nil, fmt.Errorf("unknown memory backend: %s", cfg.MemoryBackend)
	}
}

// AsynqRedisOpt maps REDIS_URL onto asynq's connection options.
func AsynqRedisOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
