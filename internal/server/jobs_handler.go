// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/store"
)

// JobsHandler serves GET /jobs/{job_id}/status, per §6.1.
type JobsHandler struct {
	jobs *store.JobStore
}

// NewJobsHandler wires a JobsHandler.
func NewJobsHandler(jobs *store.JobStore) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// HandleStatus handles GET /jobs/{job_id}/status.
func (h *JobsHandler) HandleStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	job, err := h.jobs.Get(r.Context(), tenant, jobID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load job", err))
		return
	}
	if job == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "job not found"))
		return
	}

	resp := map[string]any{
		"job_id":     job.JobID,
		"status":     job.Status,
		"progress":   job.Progress,
		"created_at": job.CreatedAt,
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if job.StartedAt != nil {
		resp["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = job.CompletedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
