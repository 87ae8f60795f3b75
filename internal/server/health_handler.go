// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/northbound/corpus/internal/jobs"
	"github.com/northbound/corpus/internal/vectorindex"
)

// HealthHandler implements GET /health, per §6.1: a liveness probe
// that also reports the four components a corpusd instance can't run
// without — database, queue, vector index, LLM.
type HealthHandler struct {
	db      *sql.DB
	queue   jobs.Queue
	vectors vectorindex.Index
	llmOK   func(ctx context.Context) bool
}

// NewHealthHandler wires a HealthHandler. llmOK reports whether the
// configured LLM client has credentials to call out with; there is no
// cheap way to probe the Anthropic API itself without spending a
// completion, so this is a configuration check, not a round-trip.
func NewHealthHandler(db *sql.DB, queue jobs.Queue, vectors vectorindex.Index, llmOK func(ctx context.Context) bool) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, vectors: vectors, llmOK: llmOK}
}

const healthPingTimeout = 2 * time.Second

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	checks := map[string]string{
		"database":     "ok",
		"queue":        "ok",
		"vector_index": "ok",
		"llm":          "ok",
	}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "down"
		healthy = false
	}
	if h.queue == nil {
		checks["queue"] = "down"
		healthy = false
	}
	if h.vectors == nil {
		checks["vector_index"] = "down"
		healthy = false
	}
	if h.llmOK == nil || !h.llmOK(ctx) {
		checks["llm"] = "down"
		healthy = false
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
