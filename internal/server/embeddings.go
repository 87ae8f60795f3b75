// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"

	"github.com/northbound/corpus/internal/jobs"
)

// EmbeddingsHandler implements POST /embeddings/generate, the HTTP
// half of the generate_employee_embedding job [[internal-jobs]] added.
type EmbeddingsHandler struct {
	exec *jobs.Executor
}

// NewEmbeddingsHandler wires an EmbeddingsHandler.
func NewEmbeddingsHandler(exec *jobs.Executor) *EmbeddingsHandler {
	return &EmbeddingsHandler{exec: exec}
}

// embeddingsGenerateRequest extends spec.md's {org_id, user_id?} with a
// profile_text field: the job needs text to embed, and nothing in this
// repo's scope resolves a profile from a user_id on its own (no HR
// directory integration is specified). The caller — which already
// knows the "self or tenant admin" identity the permission check in
// §6.1 names — is expected to supply the text being embedded.
type embeddingsGenerateRequest struct {
	UserID      string `json:"user_id"`
	ProfileText string `json:"profile_text"`
}

// HandleGenerate handles POST /embeddings/generate.
func (h *EmbeddingsHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	var req embeddingsGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	jobID, err := h.exec.SubmitEmployeeEmbedding(r.Context(), tenant, req.UserID, req.ProfileText)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": jobID})
}
