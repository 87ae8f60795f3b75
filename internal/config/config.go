// Copyright (c) 2025 Northbound System
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config collects every tunable named in the recognized-environment
// table. It is loaded once at startup and passed down by construction;
// nothing in this package is mutated after Load returns.
type Config struct {
	// Blob store
	BlobEndpoint  string
	BlobRegion    string
	BlobBucket    string
	BlobAccessKey string
	BlobSecretKey string

	// Relational store
	DatabasePath string

	// Queue / broker
	QueueAddr     string
	QueueDB       int
	QueuePassword string
	QueueKey      string

	// Vector index
	VectorAPIKey     string
	VectorEnviron    string
	VectorIndexName  string
	VectorGRPCTarget string

	// LLM
	LLMAPIKey       string
	AnthropicAPIKey string
	EmbedModel      string
	ChatModel       string

	// Optional external research
	ResearchAPIKey string

	// Pipeline tunables
	MaxUploadBytes   int64
	ChunkSize        int
	ChunkOverlap     int
	EmbedBatch       int
	EmbedRPM         int
	RetrievalTopK    int
	MinScore         float64
	WorkerCount      int
	MonthlyTokenBudget int64

	// Chat turn deadline (§5)
	ChatTurnTimeout time.Duration
}

// Load reads an optional .env file, then binds every recognized
// environment variable through viper with defaults, mirroring the
// teacher's godotenv.Load-then-os.Getenv startup sequence but declaring
// every tunable in one place instead of scattering os.Getenv calls.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Absence of a .env file is not an error; environment variables
		// alone are a valid configuration source in production.
	}

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "./corpus.db")
	v.SetDefault("QUEUE_URL", "127.0.0.1:6379")
	v.SetDefault("QUEUE_DB", 0)
	v.SetDefault("JOB_QUEUE_KEY", "jobs:documents")
	v.SetDefault("VECTOR_INDEX_NAME", "corpus")
	v.SetDefault("VECTOR_GRPC_TARGET", "localhost:6334")
	v.SetDefault("EMBED_MODEL", "text-embedding-3-large")
	v.SetDefault("CHAT_MODEL", "claude-sonnet-4-5")
	v.SetDefault("MAX_UPLOAD_BYTES", 50*1024*1024)
	v.SetDefault("CHUNK_SIZE", 1000)
	v.SetDefault("CHUNK_OVERLAP", 200)
	v.SetDefault("EMBED_BATCH", 100)
	v.SetDefault("EMBED_RPM", 3000)
	v.SetDefault("RETRIEVAL_TOP_K", 10)
	v.SetDefault("MIN_SCORE", 0.7)
	v.SetDefault("WORKER_COUNT", 5)
	v.SetDefault("MONTHLY_TOKEN_BUDGET", 0) // 0 disables the budget gate
	v.SetDefault("CHAT_TURN_TIMEOUT_SECONDS", 60)

	cfg := &Config{
		BlobEndpoint:       v.GetString("BLOB_ENDPOINT"),
		BlobRegion:         v.GetString("BLOB_REGION"),
		BlobBucket:         v.GetString("BLOB_BUCKET"),
		BlobAccessKey:      v.GetString("BLOB_KEY"),
		BlobSecretKey:      v.GetString("BLOB_SECRET"),
		DatabasePath:       v.GetString("DATABASE_URL"),
		QueueAddr:          v.GetString("QUEUE_URL"),
		QueueDB:            v.GetInt("QUEUE_DB"),
		QueuePassword:      v.GetString("QUEUE_PASSWORD"),
		QueueKey:           v.GetString("JOB_QUEUE_KEY"),
		VectorAPIKey:       v.GetString("VECTOR_API_KEY"),
		VectorEnviron:      v.GetString("VECTOR_ENVIRONMENT"),
		VectorIndexName:    v.GetString("VECTOR_INDEX_NAME"),
		VectorGRPCTarget:   v.GetString("VECTOR_GRPC_TARGET"),
		LLMAPIKey:          v.GetString("LLM_API_KEY"),
		AnthropicAPIKey:    v.GetString("ANTHROPIC_API_KEY"),
		EmbedModel:         v.GetString("EMBED_MODEL"),
		ChatModel:          v.GetString("CHAT_MODEL"),
		ResearchAPIKey:     v.GetString("RESEARCH_API_KEY"),
		MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
		ChunkSize:          v.GetInt("CHUNK_SIZE"),
		ChunkOverlap:       v.GetInt("CHUNK_OVERLAP"),
		EmbedBatch:         v.GetInt("EMBED_BATCH"),
		EmbedRPM:           v.GetInt("EMBED_RPM"),
		RetrievalTopK:      v.GetInt("RETRIEVAL_TOP_K"),
		MinScore:           v.GetFloat64("MIN_SCORE"),
		WorkerCount:        v.GetInt("WORKER_COUNT"),
		MonthlyTokenBudget: v.GetInt64("MONTHLY_TOKEN_BUDGET"),
		ChatTurnTimeout:    time.Duration(v.GetInt("CHAT_TURN_TIMEOUT_SECONDS")) * time.Second,
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("config: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}
