package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	GinMode      string
	CORSOrigins  []string
	APIAccessKey string
	MaxFileSize  int64

	// LLM configuration
	LLMProvider   string // "gemini" (default), "openai"
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	LLMRPM        int
	LLMTimeout    time.Duration

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai"
	GoogleEmbeddingsModel string
	OpenAIEmbeddingsModel string

	// Vector index
	VectorBackend    string // "mongo" (default), "qdrant", "memory"
	RetrieverBackend string // "local" (default), "index"
	RetrieverTopK    int
	IndexName        string
	VectorDimensions int
	VectorMetric     string
	UpsertBatchSize  int

	// MongoDB Atlas
	MongoURI string
	DBName   string

	// Qdrant
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool

	// Ingestion
	PDFDir          string
	ManifestPath    string
	MaxChunkSize    int
	ChunkOverlap    int
	AsyncIndexing   bool
	ReindexInterval time.Duration

	// Conversation memory
	MemoryBackend string // "memory" (default), "redis"
	MemoryTTL     time.Duration

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	RateLimitReqs   int
	RateLimitWindow int

	// Telemetry
	OTelEnabled  bool
	OTelEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8000"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:8000,http://127.0.0.1:8000"), ","),
		APIAccessKey: getEnv("API_ACCESS_KEY", ""),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		LLMProvider:  getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),
		LLMRPM:       getEnvInt("LLM_RPM", 60),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),

		VectorBackend:    getEnv("VECTOR_BACKEND", "mongo"),
		RetrieverBackend: getEnv("RETRIEVER_BACKEND", "local"),
		RetrieverTopK:    getEnvInt("RETRIEVER_TOP_K", 3),
		IndexName:        getEnv("INDEX_NAME", "medical-rag-index"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 384),
		VectorMetric:     getEnv("VECTOR_METRIC", "cosine"),
		UpsertBatchSize:  getEnvInt("UPSERT_BATCH_SIZE", 1000),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/medical_rag"),
		DBName:   getEnv("DB_NAME", "medical_rag"),

		QdrantHost:   getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:   getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),
		QdrantUseTLS: getEnvBool("QDRANT_USE_TLS", false),

		PDFDir:          getEnv("PDF_DIR", "data/pdfs"),
		ManifestPath:    getEnv("MANIFEST_PATH", "storage/index_manifest.json"),
		MaxChunkSize:    getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 200),
		AsyncIndexing:   getEnvBool("ASYNC_INDEXING", false),
		ReindexInterval: getEnvDuration("REINDEX_INTERVAL", 0),

		MemoryBackend: getEnv("MEMORY_BACKEND", "memory"),
		MemoryTTL:     getEnvDuration("MEMORY_TTL", 24*time.Hour),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("MAX_CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, MAX_CHUNK_SIZE)")
	}
	if c.UpsertBatchSize <= 0 {
		return fmt.Errorf("UPSERT_BATCH_SIZE must be positive")
	}
	if c.RetrieverTopK <= 0 {
		return fmt.Errorf("RETRIEVER_TOP_K must be positive")
	}

	switch c.LLMProvider {
	case "gemini", "":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required - set it in .env file")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %s", c.LLMProvider)
	}

	if c.MemoryBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when MEMORY_BACKEND=redis")
	}
	if c.AsyncIndexing && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when ASYNC_INDEXING=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
