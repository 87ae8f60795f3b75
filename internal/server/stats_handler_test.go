// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/store"
)

func TestStatsHandler_StatusCountsAcrossTables(t *testing.T) {
	rig := newTestRig(t)
	h := NewStatsHandler(rig.s.DB())

	ctx := withTenant(httptest.NewRequest(http.MethodGet, "/", nil).Context(), rig.tenant)

	doc := &store.Document{ID: "doc-1", Tenant: rig.tenant, Filename: "f.txt", Type: store.DocTypeTXT, Status: store.DocStatusCompleted, UploadedAt: time.Now()}
	if err := rig.s.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("seed document failed: %v", err)
	}
	chunk := &store.Chunk{ID: "chunk-1", Document: doc.ID, Tenant: rig.tenant, Index: 0, Text: "hello", TokenCount: 1}
	if err := rig.s.Chunks.InsertBatch(ctx, []*store.Chunk{chunk}); err != nil {
		t.Fatalf("seed chunk failed: %v", err)
	}
	convo := &store.Conversation{ID: "convo-1", Tenant: rig.tenant, User: rig.tenant, Title: "t", CreatedAt: time.Now(), LastMessageAt: time.Now()}
	if err := rig.s.Conversations.Create(ctx, convo); err != nil {
		t.Fatalf("seed conversation failed: %v", err)
	}
	queuedJob := &store.Job{JobID: "job-q", Tenant: rig.tenant, Type: store.JobTypeProcessDocument, Status: store.JobStatusQueued, CreatedAt: time.Now()}
	if err := rig.s.Jobs.Submit(ctx, queuedJob); err != nil {
		t.Fatalf("seed queued job failed: %v", err)
	}
	failedJob := &store.Job{JobID: "job-f", Tenant: rig.tenant, Type: store.JobTypeProcessDocument, Status: store.JobStatusQueued, CreatedAt: time.Now()}
	if err := rig.s.Jobs.Submit(ctx, failedJob); err != nil {
		t.Fatalf("seed failing job failed: %v", err)
	}
	if err := rig.s.Jobs.MarkFailed(ctx, failedJob.JobID, "boom", time.Now()); err != nil {
		t.Fatalf("mark failed job failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/system/status", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("HandleStatus status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var status systemStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if status.Documents != 1 || status.Chunks != 1 || status.Conversations != 1 {
		t.Fatalf("unexpected counts: %+v", status)
	}
	if status.JobsPending != 1 || status.JobsFailed != 1 {
		t.Fatalf("unexpected job counts: %+v", status)
	}
}

func TestStatsHandler_RequiresTenant(t *testing.T) {
	rig := newTestRig(t)
	h := NewStatsHandler(rig.s.DB())

	req := httptest.NewRequest(http.MethodGet, "/system/status", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without tenant, got %d", rec.Code)
	}
}
