// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/blobstore"
	"github.com/northbound/corpus/internal/extract"
	"github.com/northbound/corpus/internal/jobs"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// maxUploadFiles bounds a single multipart upload, per §6.1.
const maxUploadFiles = 10

// presignedTTL is the lifetime of a download URL, per §6.1.
const presignedTTL = 3600 * time.Second

// DocumentHandler implements the upload/list/get/download/delete
// surface of §6.1, grounded on ingest_handler.go's manual-decode,
// per-file-result JSON idiom.
type DocumentHandler struct {
	docs    *store.DocumentStore
	blobs   blobstore.Store
	exec    *jobs.Executor
	vectors vectorindex.Index
	maxSize int64
}

// NewDocumentHandler wires a DocumentHandler.
func NewDocumentHandler(docs *store.DocumentStore, blobs blobstore.Store, exec *jobs.Executor, vectors vectorindex.Index, maxSize int64) *DocumentHandler {
	return &DocumentHandler{docs: docs, blobs: blobs, exec: exec, vectors: vectors, maxSize: maxSize}
}

type uploadedDocument struct {
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Status   string `json:"status"`
	JobID    string `json:"job_id"`
}

type failedUpload struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// HandleUpload handles POST /documents/upload. Each file in the
// multipart batch is handled independently: one bad file never fails
// its siblings, mirroring ingest_handler.go's per-item result
// accumulation.
func (h *DocumentHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	if err := r.ParseMultipartForm(h.maxSize * maxUploadFiles); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	files := r.MultipartForm.File["files[]"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(files) > maxUploadFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("too many files: max %d per upload", maxUploadFiles))
		return
	}

	ctx := r.Context()
	uploaded := make([]uploadedDocument, 0, len(files))
	failed := make([]failedUpload, 0)

	for _, fh := range files {
		doc, jobID, err := h.ingestOne(ctx, tenant, fh)
		if err != nil {
			failed = append(failed, failedUpload{Filename: fh.Filename, Reason: err.Error()})
			continue
		}
		uploaded = append(uploaded, uploadedDocument{
			DocID: doc.ID, Filename: doc.Filename, FileType: string(doc.Type),
			Status: string(doc.Status), JobID: jobID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploaded": uploaded, "failed": failed})
}

func (h *DocumentHandler) ingestOne(ctx context.Context, tenant string, fh *multipart.FileHeader) (*store.Document, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.maxSize {
		return nil, "", fmt.Errorf("exceeds max size of %d bytes", h.maxSize)
	}

	contentType := fh.Header.Get("Content-Type")
	if err := blobstore.Validate(int64(len(data)), h.maxSize, contentType, blobstore.DefaultAllowedTypes); err != nil {
		return nil, "", err
	}
	if err := extract.VerifyMagicBytes(fh.Filename, data); err != nil {
		return nil, "", err
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	if existing, err := h.docs.FindByChecksum(ctx, tenant, checksum); err == nil && existing != nil {
		return existing, "", nil
	}

	key, err := h.blobs.Put(ctx, tenant, fh.Filename, contentType, data)
	if err != nil {
		return nil, "", fmt.Errorf("store blob: %w", err)
	}

	doc := &store.Document{
		ID: uuid.New().String(), Tenant: tenant, Filename: fh.Filename,
		Type: docTypeFromContentType(contentType), ContentType: contentType,
		Size: int64(len(data)), Checksum: checksum, StorageKey: key,
		Uploader: tenant, UploadedAt: time.Now(), Status: store.DocStatusPending,
	}
	if err := h.docs.Create(ctx, doc); err != nil {
		return nil, "", fmt.Errorf("persist document row: %w", err)
	}

	jobID, err := h.exec.Submit(ctx, tenant, store.JobTypeProcessDocument, doc.ID)
	if err != nil {
		logger.Printf("server: document %s: failed to enqueue process_document: %v", doc.ID, err)
	}
	return doc, jobID, nil
}

func docTypeFromContentType(contentType string) store.DocumentType {
	switch contentType {
	case "application/pdf":
		return store.DocTypePDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return store.DocTypeDOCX
	case "text/markdown":
		return store.DocTypeMD
	case "text/csv":
		return store.DocTypeCSV
	default:
		return store.DocTypeTXT
	}
}

type documentSummary struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	UploadDate string `json:"upload_date"`
	Status     string `json:"status"`
}

// HandleList handles GET /documents for the tenant taken from the
// request context.
func (h *DocumentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	docs, err := h.docs.List(r.Context(), tenant)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "list documents", err))
		return
	}
	out := make([]documentSummary, len(docs))
	for i, d := range docs {
		out[i] = documentSummary{ID: d.ID, Filename: d.Filename, FileType: string(d.Type), UploadDate: d.UploadedAt.Format(time.RFC3339), Status: string(d.Status)}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /documents/{id}.
func (h *DocumentHandler) HandleGet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	doc, err := h.docs.Get(r.Context(), tenant, id)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load document", err))
		return
	}
	if doc == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "document not found"))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleDownload handles GET /documents/{id}/download, returning a
// pre-signed URL rather than streaming the blob itself.
func (h *DocumentHandler) HandleDownload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	doc, err := h.docs.Get(r.Context(), tenant, id)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load document", err))
		return
	}
	if doc == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "document not found"))
		return
	}

	url, err := h.blobs.GetPresigned(r.Context(), doc.StorageKey, presignedTTL)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "presign download", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"download_url": url, "expires_in": int(presignedTTL.Seconds())})
}

// HandleDelete handles DELETE /documents/{id}: soft-deletes the row and
// removes the document's vectors from the index inline, since the
// deletion is cheap and idempotent and spec.md names no dedicated job
// type for it (unlike process_document/reclassify_document).
func (h *DocumentHandler) HandleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	doc, err := h.docs.Get(r.Context(), tenant, id)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load document", err))
		return
	}
	if doc == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "document not found"))
		return
	}

	if err := h.vectors.DeleteDocument(r.Context(), vectorindex.Namespace(tenant), id); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "delete document vectors", err))
		return
	}
	if err := h.docs.SoftDelete(r.Context(), tenant, id, time.Now()); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "soft delete document", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
