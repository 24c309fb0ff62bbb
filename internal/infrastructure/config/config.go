package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port          string `env:"PORT,           default=8080"`
	Env           string `env:"ENV,            default=development"`
	JWTSecret     string `env:"JWT_SECRET"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL,      default=info"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Qdrant   QdrantConfig
	Research ResearchConfig
	Ingest   IngestConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=taxentia"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type GeminiConfig struct {
	APIKey         string        `env:"GEMINI_API_KEY"`
	Model          string        `env:"GEMINI_MODEL,           default=gemini-2.5-pro"`
	EmbeddingModel string        `env:"GEMINI_EMBEDDING_MODEL, default=gemini-embedding-001"`
	Timeout        time.Duration `env:"GEMINI_TIMEOUT,         default=60s"`
	MaxRetries     int           `env:"GEMINI_MAX_RETRIES,     default=0"`
}

type QdrantConfig struct {
	URL        string `env:"QDRANT_URL,        default=http://localhost:6333"`
	APIKey     string `env:"QDRANT_API_KEY"`
	Collection string `env:"QDRANT_COLLECTION, default=taxentia-authorities"`
	Dimension  int    `env:"QDRANT_DIMENSION,  default=768"`
}

type ResearchConfig struct {
	TopK int `env:"RETRIEVAL_TOP_K, default=5"`
}

type IngestConfig struct {
	MaxChunkSize int `env:"CHUNK_MAX_SIZE,   default=2000"`
	OverlapSize  int `env:"CHUNK_OVERLAP,    default=200"`
	EmbedBatch   int `env:"EMBED_BATCH_SIZE, default=40"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
