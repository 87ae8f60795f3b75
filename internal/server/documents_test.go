// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northbound/corpus/internal/vectorindex"
)

func multipartUploadBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="files[]"; filename="` + filename + `"`},
		"Content-Type":        {contentType},
	})
	if err != nil {
		t.Fatalf("CreatePart failed: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer failed: %v", err)
	}
	return &body, w.FormDataContentType()
}

func newUploadRequest(t *testing.T, tenant, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	body, ct := multipartUploadBody(t, filename, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)
	return req.WithContext(withTenant(req.Context(), tenant))
}

func TestDocumentHandler_UploadThenList(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	req := newUploadRequest(t, rig.tenant, "report.txt", "text/plain", []byte("quarterly revenue grew 12% year over year"))
	w := httptest.NewRecorder()
	h.HandleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("HandleUpload status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"report.txt"`) {
		t.Fatalf("expected uploaded filename in response, got %s", w.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/documents", nil)
	listReq = listReq.WithContext(withTenant(listReq.Context(), rig.tenant))
	listW := httptest.NewRecorder()
	h.HandleList(listW, listReq)

	if listW.Code != http.StatusOK {
		t.Fatalf("HandleList status = %d", listW.Code)
	}
	if !strings.Contains(listW.Body.String(), "report.txt") {
		t.Fatalf("expected report.txt in list response, got %s", listW.Body.String())
	}
}

func TestDocumentHandler_UploadDedupesByChecksum(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	data := []byte("identical content for both uploads")
	req1 := newUploadRequest(t, rig.tenant, "a.txt", "text/plain", data)
	w1 := httptest.NewRecorder()
	h.HandleUpload(w1, req1)

	req2 := newUploadRequest(t, rig.tenant, "b.txt", "text/plain", data)
	w2 := httptest.NewRecorder()
	h.HandleUpload(w2, req2)

	docs, err := rig.s.Documents.List(req2.Context(), rig.tenant)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected checksum dedup to leave exactly one document row, got %d", len(docs))
	}
}

// TestDocumentHandler_UploadRejectsMagicByteMismatch exercises the
// synchronous magic-byte verification ingestOne now runs before
// h.blobs.Put: a file declared as application/pdf but whose bytes
// don't carry the %PDF- signature must be rejected at upload time
// rather than accepted and only caught later by the process_document
// job's extract step.
func TestDocumentHandler_UploadRejectsMagicByteMismatch(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	req := newUploadRequest(t, rig.tenant, "report.pdf", "application/pdf", []byte("this is not actually a pdf"))
	w := httptest.NewRecorder()
	h.HandleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("HandleUpload status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"failed"`) || strings.Contains(w.Body.String(), `"report.pdf","file_type"`) {
		t.Fatalf("expected report.pdf to land in failed[], got %s", w.Body.String())
	}

	docs, err := rig.s.Documents.List(req.Context(), rig.tenant)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no document row for a magic-byte mismatch, got %d", len(docs))
	}
}

func TestDocumentHandler_UploadRejectsNoFiles(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req = req.WithContext(withTenant(req.Context(), rig.tenant))

	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty upload, got %d", rec.Code)
	}
}

func TestDocumentHandler_UploadRejectsMissingTenant(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	body, ct := multipartUploadBody(t, "x.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.HandleUpload(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without tenant context, got %d", rec.Code)
	}
}

func TestDocumentHandler_GetNotFound(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/documents/missing", nil)
	req = req.WithContext(withTenant(req.Context(), rig.tenant))
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req, "missing")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing document, got %d", rec.Code)
	}
}

func TestDocumentHandler_DownloadReturnsPresignedURL(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	uploadReq := newUploadRequest(t, rig.tenant, "doc.txt", "text/plain", []byte("content to download"))
	uploadW := httptest.NewRecorder()
	h.HandleUpload(uploadW, uploadReq)

	docs, err := rig.s.Documents.List(uploadReq.Context(), rig.tenant)
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected one document after upload, got %d docs, err %v", len(docs), err)
	}

	req := httptest.NewRequest(http.MethodGet, "/documents/"+docs[0].ID+"/download", nil)
	req = req.WithContext(withTenant(req.Context(), rig.tenant))
	rec := httptest.NewRecorder()
	h.HandleDownload(rec, req, docs[0].ID)

	if rec.Code != http.StatusOK {
		t.Fatalf("HandleDownload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "download_url") {
		t.Fatalf("expected download_url in response, got %s", rec.Body.String())
	}
}

func TestDocumentHandler_DeleteRemovesVectorsAndSoftDeletes(t *testing.T) {
	rig := newTestRig(t)
	h := NewDocumentHandler(rig.s.Documents, rig.blobs, rig.exec, rig.vecs, 1<<20)

	uploadReq := newUploadRequest(t, rig.tenant, "to-delete.txt", "text/plain", []byte("delete me please"))
	uploadW := httptest.NewRecorder()
	h.HandleUpload(uploadW, uploadReq)

	docs, err := rig.s.Documents.List(uploadReq.Context(), rig.tenant)
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected one document after upload, got %d docs, err %v", len(docs), err)
	}
	docID := docs[0].ID

	if err := rig.vecs.Upsert(uploadReq.Context(), string(vectorindex.Namespace(rig.tenant)), []vectorindex.Item{
		{ID: "chunk-1", DocumentID: docID, Vector: []float32{0.1, 0.2}},
	}); err != nil {
		t.Fatalf("seed vector failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil)
	req = req.WithContext(withTenant(req.Context(), rig.tenant))
	rec := httptest.NewRecorder()
	h.HandleDelete(rec, req, docID)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("HandleDelete status = %d, body = %s", rec.Code, rec.Body.String())
	}

	matches, err := rig.vecs.Search(req.Context(), vectorindex.Namespace(rig.tenant), []float32{0.1, 0.2}, 10, nil)
	if err != nil {
		t.Fatalf("Search after delete failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected document's vectors to be gone after delete, found %d", len(matches))
	}

	remaining, err := rig.s.Documents.List(req.Context(), rig.tenant)
	if err != nil {
		t.Fatalf("List after delete failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected soft-deleted document to drop out of List, got %d", len(remaining))
	}
}
