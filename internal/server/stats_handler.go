// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"database/sql"
	"net/http"

	"github.com/northbound/corpus/internal/apperr"
)

// StatsHandler implements GET /system/status, per §6.1: aggregate
// counters a tenant admin can use as a dashboard, queried directly
// against the relational store the same way the teacher's own stats
// handler counted chunks with a raw COUNT(*).
type StatsHandler struct {
	db *sql.DB
}

// NewStatsHandler wires a StatsHandler.
func NewStatsHandler(db *sql.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

type systemStatus struct {
	Documents     int `json:"documents"`
	Chunks        int `json:"chunks"`
	Conversations int `json:"conversations"`
	JobsPending   int `json:"jobs_pending"`
	JobsRunning   int `json:"jobs_running"`
	JobsFailed    int `json:"jobs_failed"`
}

// HandleStatus handles GET /system/status.
func (h *StatsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	ctx := r.Context()
	var status systemStatus
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE tenant = ? AND is_deleted = FALSE`, tenant).Scan(&status.Documents); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "count documents", err))
		return
	}
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE tenant = ?`, tenant).Scan(&status.Chunks); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "count chunks", err))
		return
	}
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE tenant = ?`, tenant).Scan(&status.Conversations); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "count conversations", err))
		return
	}
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE tenant = ? AND status = 'queued'`, tenant).Scan(&status.JobsPending); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "count pending jobs", err))
		return
	}
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE tenant = ? AND status = 'running'`, tenant).Scan(&status.JobsRunning); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "count running jobs", err))
		return
	}
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE tenant = ? AND status = 'failed'`, tenant).Scan(&status.JobsFailed); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "count failed jobs", err))
		return
	}

	writeJSON(w, http.StatusOK, status)
}
