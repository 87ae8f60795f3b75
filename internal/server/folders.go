// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"net/http"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/folders"
)

// FoldersHandler implements GET /folders/by-{team|project|type|date|person},
// per §6.1 and §4.8.
type FoldersHandler struct {
	folders *folders.Service
}

// NewFoldersHandler wires a FoldersHandler.
func NewFoldersHandler(service *folders.Service) *FoldersHandler {
	return &FoldersHandler{folders: service}
}

var facetsByPathSuffix = map[string]folders.Facet{
	"team":    folders.FacetTeam,
	"project": folders.FacetProject,
	"type":    folders.FacetType,
	"date":    folders.FacetDate,
	"person":  folders.FacetPerson,
}

// HandleView handles GET /folders/by-{facet}?{facet}=filter for the
// tenant taken from the request context.
// facetName is the path's trailing segment after "by-", extracted by
// the caller's router.
func (h *FoldersHandler) HandleView(w http.ResponseWriter, r *http.Request, facetName string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	facet, ok := facetsByPathSuffix[facetName]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown facet "+facetName)
		return
	}
	filter := r.URL.Query().Get(facetName)

	buckets, err := h.folders.View(r.Context(), tenant, facet, filter)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load folder view", err))
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}
