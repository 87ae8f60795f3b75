// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_AllUp(t *testing.T) {
	rig := newTestRig(t)
	h := NewHealthHandler(rig.s.DB(), rig.queue, rig.vecs, func(ctx context.Context) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("HandleHealth status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealthHandler_DegradedWhenLLMNotConfigured(t *testing.T) {
	rig := newTestRig(t)
	h := NewHealthHandler(rig.s.DB(), rig.queue, rig.vecs, func(ctx context.Context) bool { return false })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when llm check fails, got %d", rec.Code)
	}
}

func TestHealthHandler_DegradedWhenQueueNil(t *testing.T) {
	rig := newTestRig(t)
	h := NewHealthHandler(rig.s.DB(), nil, rig.vecs, func(ctx context.Context) bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when queue is nil, got %d", rec.Code)
	}
}
