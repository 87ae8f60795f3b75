// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/northbound/corpus/internal/blobstore"
	"github.com/northbound/corpus/internal/chunker"
	"github.com/northbound/corpus/internal/classifier"
	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/folders"
	"github.com/northbound/corpus/internal/jobs"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/orchestrator"
	"github.com/northbound/corpus/internal/orgcontext"
	"github.com/northbound/corpus/internal/rag"
	"github.com/northbound/corpus/internal/server"
	"github.com/northbound/corpus/internal/server/middleware"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

func main() {
	logFile := "corpusd.log"
	if _, err := logger.Init(logFile); err != nil {
		logger.Printf("failed to initialize file logger: %v, using stdout only", err)
	} else {
		logger.Printf("logger initialized, writing to %s", logFile)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("failed to open relational store: %v", err)
	}
	logger.Printf("opened relational store at %s", cfg.DatabasePath)

	embedder := initEmbedder(cfg, db.Usage)
	vectors := initVectorIndex(cfg, embedder.Dimension())
	blobs := initBlobStore(cfg)

	ctx := context.Background()
	redisClient, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to connect to job queue broker: %v", err)
	}
	jobQueue, err := jobs.NewRedisQueue(redisClient, cfg.QueueKey)
	if err != nil {
		logger.Fatalf("failed to construct job queue: %v", err)
	}

	chunkr, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		logger.Fatalf("failed to construct chunker: %v", err)
	}
	orgCache := orgcontext.NewCache(db.Classifications)
	classify := classifier.New(cfg, orgCache, db.Classifications)

	exec := jobs.NewExecutor(jobQueue, db.Jobs, db.Documents, db.Chunks, blobs, embedder, vectors, chunkr, classify, db.Employees)
	pool := jobs.NewPool(jobQueue, exec.Dispatch(), cfg.WorkerCount, db.Jobs)

	workerCtx, workerCancel := context.WithCancel(ctx)
	go func() {
		logger.Printf("starting %d job workers", cfg.WorkerCount)
		pool.Run(workerCtx)
	}()

	foldersSvc := folders.New(db.Classifications)
	ragEngine := rag.New(cfg, embedder, vectors, db.Chunks, db.Documents)
	orch := orchestrator.New(cfg, ragEngine, db.Employees, vectors, embedder)

	mux := routes(db, blobs, vectors, embedder, exec, foldersSvc, orch, cfg, jobQueue)

	httpServer := &http.Server{
		Addr:    ":8081",
		Handler: middleware.TrafficLogger(mux),
	}

	go func() {
		logger.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(httpServer, workerCancel)
}

// initEmbedder picks OpenAI when an API key is configured, falling
// back to a deterministic mock so local development never blocks on
// missing credentials, mirroring the teacher's own
// auto-detect-from-env embedder selection.
func initEmbedder(cfg *config.Config, usage *store.UsageStore) embeddings.Embedder {
	if cfg.LLMAPIKey == "" {
		logger.Printf("LLM_API_KEY not set, using mock embedder")
		return embeddings.NewMockEmbedder(1536)
	}
	embedder, err := embeddings.NewOpenAIEmbedder(cfg, usage)
	if err != nil {
		logger.Fatalf("failed to initialize OpenAI embedder: %v", err)
	}
	logger.Printf("initialized OpenAI embedder (dimension: %d)", embedder.Dimension())
	return embedder
}

func initVectorIndex(cfg *config.Config, dim int) vectorindex.Index {
	idx, err := vectorindex.NewQdrantIndex(cfg, dim)
	if err != nil {
		logger.Printf("failed to connect to qdrant: %v, using in-memory vector index", err)
		return vectorindex.NewMemoryIndex()
	}
	logger.Printf("connected to qdrant at %s", cfg.VectorGRPCTarget)
	return idx
}

func initBlobStore(cfg *config.Config) blobstore.Store {
	if cfg.BlobBucket == "" {
		logger.Printf("BLOB_BUCKET not set, using in-memory blob store")
		return blobstore.NewMemoryStore()
	}
	s3Store, err := blobstore.NewS3Store(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("failed to initialize S3 blob store: %v", err)
	}
	logger.Printf("initialized S3 blob store (bucket: %s)", cfg.BlobBucket)
	return s3Store
}

// routes wires every handler into a single mux, per §6.1's closed
// endpoint list. Path parameters lean on Go's method-and-wildcard
// ServeMux patterns rather than a router dependency, the same
// no-framework posture the teacher's own routes() function took.
func routes(
	db *store.Store,
	blobs blobstore.Store,
	vectors vectorindex.Index,
	embedder embeddings.Embedder,
	exec *jobs.Executor,
	foldersSvc *folders.Service,
	orch *orchestrator.Orchestrator,
	cfg *config.Config,
	jobQueue jobs.Queue,
) http.Handler {
	mux := http.NewServeMux()

	documents := server.NewDocumentHandler(db.Documents, blobs, exec, vectors, cfg.MaxUploadBytes)
	jobsHandler := server.NewJobsHandler(db.Jobs)
	docSearch := server.NewDocumentSearchHandler(embedder, vectors, db.Chunks, db.Documents)
	employeeSearch := server.NewEmployeeSearchHandler(embedder, vectors, db.Employees)
	embeddingsHandler := server.NewEmbeddingsHandler(exec)
	classification := server.NewClassificationHandler(db.Documents, db.Classifications, exec)
	foldersHandler := server.NewFoldersHandler(foldersSvc)
	chat := server.NewChatHandler(db.Conversations, db.Messages, orch)
	health := server.NewHealthHandler(db.DB(), jobQueue, vectors, func(ctx context.Context) bool { return cfg.AnthropicAPIKey != "" })
	stats := server.NewStatsHandler(db.DB())

	mux.HandleFunc("GET /health", health.HandleHealth)

	mux.Handle("POST /documents/upload", server.TenantMiddleware(http.HandlerFunc(documents.HandleUpload)))
	mux.Handle("GET /documents", server.TenantMiddleware(http.HandlerFunc(documents.HandleList)))
	mux.Handle("GET /documents/{id}", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		documents.HandleGet(w, r, r.PathValue("id"))
	})))
	mux.Handle("GET /documents/{id}/download", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		documents.HandleDownload(w, r, r.PathValue("id"))
	})))
	mux.Handle("DELETE /documents/{id}", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		documents.HandleDelete(w, r, r.PathValue("id"))
	})))
	mux.Handle("GET /documents/{id}/classification", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		classification.HandleGet(w, r, r.PathValue("id"))
	})))
	mux.Handle("POST /documents/{id}/reclassify", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		classification.HandleReclassify(w, r, r.PathValue("id"))
	})))
	mux.Handle("POST /documents/search", server.TenantMiddleware(http.HandlerFunc(docSearch.HandleSearch)))

	mux.Handle("POST /employees/search", server.TenantMiddleware(http.HandlerFunc(employeeSearch.HandleSearch)))
	mux.Handle("POST /embeddings/generate", server.TenantMiddleware(http.HandlerFunc(embeddingsHandler.HandleGenerate)))

	mux.Handle("GET /folders/by-{facet}", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foldersHandler.HandleView(w, r, r.PathValue("facet"))
	})))

	mux.Handle("GET /jobs/{id}/status", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jobsHandler.HandleStatus(w, r, r.PathValue("id"))
	})))

	mux.Handle("GET /chat/conversations", server.TenantMiddleware(http.HandlerFunc(chat.HandleListConversations)))
	mux.Handle("POST /chat/conversations", server.TenantMiddleware(http.HandlerFunc(chat.HandleCreateConversation)))
	mux.Handle("GET /chat/{id}/messages", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandleListMessages(w, r, r.PathValue("id"))
	})))
	mux.Handle("POST /chat/{id}/messages", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandlePostMessage(w, r, r.PathValue("id"))
	})))
	mux.Handle("POST /chat/{id}/archive", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandleArchive(w, r, r.PathValue("id"))
	})))
	mux.Handle("POST /chat/{id}/unarchive", server.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandleUnarchive(w, r, r.PathValue("id"))
	})))

	mux.Handle("GET /system/status", server.TenantMiddleware(http.HandlerFunc(stats.HandleStatus)))

	return mux
}

func waitForShutdown(httpServer *http.Server, workerCancel context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Println("shutting down corpusd...")
	workerCancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
	if err := logger.GetDefault().Close(); err != nil {
		logger.Printf("failed to close logger: %v", err)
	}
}
