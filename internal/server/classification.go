// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/jobs"
	"github.com/northbound/corpus/internal/store"
)

// ClassificationHandler implements GET /documents/{id}/classification
// and POST /documents/{id}/reclassify, per §6.1.
type ClassificationHandler struct {
	docs            *store.DocumentStore
	classifications *store.ClassificationStore
	exec            *jobs.Executor
}

// NewClassificationHandler wires a ClassificationHandler.
func NewClassificationHandler(docs *store.DocumentStore, classifications *store.ClassificationStore, exec *jobs.Executor) *ClassificationHandler {
	return &ClassificationHandler{docs: docs, classifications: classifications, exec: exec}
}

// HandleGet handles GET /documents/{id}/classification.
func (h *ClassificationHandler) HandleGet(w http.ResponseWriter, r *http.Request, id string) {
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

	classification, err := h.classifications.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load classification", err))
		return
	}
	if classification == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "document has not been classified yet"))
		return
	}
	writeJSON(w, http.StatusOK, classification)
}

// HandleReclassify handles POST /documents/{id}/reclassify, enqueuing
// a reclassify_document job and returning its id.
func (h *ClassificationHandler) HandleReclassify(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
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

	jobID, err := h.exec.Submit(r.Context(), tenant, store.JobTypeReclassifyDocument, id)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "enqueue reclassify job", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": jobID})
}
