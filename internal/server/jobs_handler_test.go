// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/store"
)

func TestJobsHandler_StatusReturnsJob(t *testing.T) {
	rig := newTestRig(t)
	h := NewJobsHandler(rig.s.Jobs)

	ctx := withTenant(httptest.NewRequest(http.MethodGet, "/", nil).Context(), rig.tenant)
	job := &store.Job{JobID: "job-1", Tenant: rig.tenant, Type: store.JobTypeProcessDocument, Status: store.JobStatusQueued, CreatedAt: time.Now()}
	if err := rig.s.Jobs.Submit(ctx, job); err != nil {
		t.Fatalf("seed job failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req, "job-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("HandleStatus status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestJobsHandler_StatusNotFound(t *testing.T) {
	rig := newTestRig(t)
	h := NewJobsHandler(rig.s.Jobs)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	req = req.WithContext(withTenant(req.Context(), rig.tenant))
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req, "missing")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job, got %d", rec.Code)
	}
}
