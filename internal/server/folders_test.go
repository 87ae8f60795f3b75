// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/folders"
	"github.com/northbound/corpus/internal/store"
)

func TestFoldersHandler_ViewByTeam(t *testing.T) {
	rig := newTestRig(t)
	h := NewFoldersHandler(folders.New(rig.s.Classifications))

	ctx := withTenant(httptest.NewRequest(http.MethodGet, "/", nil).Context(), rig.tenant)
	doc := &store.Document{ID: "doc-1", Tenant: rig.tenant, Filename: "f.txt", Type: store.DocTypeTXT, Status: store.DocStatusCompleted, UploadedAt: time.Now()}
	if err := rig.s.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("seed document failed: %v", err)
	}
	class := &store.Classification{Document: doc.ID, Tenant: rig.tenant, Team: "Engineering", DocType: "report", Confidentiality: store.ConfidentialityInternal, ClassifiedAt: time.Now()}
	if err := rig.s.Classifications.Upsert(ctx, class); err != nil {
		t.Fatalf("seed classification failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/folders/by-team", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleView(rec, req, "team")

	if rec.Code != http.StatusOK {
		t.Fatalf("HandleView status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestFoldersHandler_UnknownFacet(t *testing.T) {
	rig := newTestRig(t)
	h := NewFoldersHandler(folders.New(rig.s.Classifications))

	req := httptest.NewRequest(http.MethodGet, "/folders/by-bogus", nil)
	req = req.WithContext(withTenant(req.Context(), rig.tenant))
	rec := httptest.NewRecorder()
	h.HandleView(rec, req, "bogus")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown facet, got %d", rec.Code)
	}
}
