// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbeddingsHandler_GenerateEnqueuesJob(t *testing.T) {
	rig := newTestRig(t)
	h := NewEmbeddingsHandler(rig.exec)

	body := strings.NewReader(`{"user_id": "alice", "profile_text": "staff engineer, platform team"}`)
	req := httptest.NewRequest(http.MethodPost, "/embeddings/generate", body)
	req = req.WithContext(withTenant(req.Context(), rig.tenant))

	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("HandleGenerate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "task_id") {
		t.Fatalf("expected task_id in response, got %s", rec.Body.String())
	}
}

func TestEmbeddingsHandler_GenerateRequiresUserID(t *testing.T) {
	rig := newTestRig(t)
	h := NewEmbeddingsHandler(rig.exec)

	req := httptest.NewRequest(http.MethodPost, "/embeddings/generate", strings.NewReader(`{}`))
	req = req.WithContext(withTenant(req.Context(), rig.tenant))

	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing user_id, got %d", rec.Code)
	}
}

func TestEmbeddingsHandler_GenerateRejectsMissingTenant(t *testing.T) {
	rig := newTestRig(t)
	h := NewEmbeddingsHandler(rig.exec)

	req := httptest.NewRequest(http.MethodPost, "/embeddings/generate", strings.NewReader(`{"user_id": "alice"}`))
	rec := httptest.NewRecorder()
	h.HandleGenerate(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without tenant context, got %d", rec.Code)
	}
}
