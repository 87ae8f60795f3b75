// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

const (
	defaultSearchTopK   = 10
	maxDocumentTopK     = 100
	maxEmployeeTopK     = 50
	defaultSnippetChars = 280
)

// DocumentSearchHandler implements POST /documents/search, a raw
// vector search distinct from the cited, LLM-backed answer RAG.Engine
// produces for chat — this endpoint returns ranked hits directly, the
// same shape search_handler.go's HandleSearch built against Qdrant
// directly rather than through a chat completion.
type DocumentSearchHandler struct {
	embedder embeddings.Embedder
	vectors  vectorindex.Index
	chunks   *store.ChunkStore
	docs     *store.DocumentStore
}

// NewDocumentSearchHandler wires a DocumentSearchHandler.
func NewDocumentSearchHandler(embedder embeddings.Embedder, vectors vectorindex.Index, chunks *store.ChunkStore, docs *store.DocumentStore) *DocumentSearchHandler {
	return &DocumentSearchHandler{embedder: embedder, vectors: vectors, chunks: chunks, docs: docs}
}

type documentSearchRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"top_k"`
	DocType  string  `json:"doc_type"`
	MinScore float32 `json:"min_score"`
}

type documentSearchHit struct {
	DocID      string  `json:"doc_id"`
	Filename   string  `json:"filename"`
	FileType   string  `json:"file_type"`
	UploadDate string  `json:"upload_date"`
	Snippet    string  `json:"snippet"`
	Score      float32 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

// HandleSearch handles POST /documents/search.
func (h *DocumentSearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	var req documentSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultSearchTopK
	}
	if req.TopK > maxDocumentTopK {
		req.TopK = maxDocumentTopK
	}

	ctx := r.Context()
	var filter map[string]string
	if req.DocType != "" {
		filter = map[string]string{"doc_type": req.DocType}
	}

	queryVector, err := h.embedder.EmbedText(ctx, tenant, req.Query)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "embed query", err))
		return
	}
	matches, err := h.vectors.Search(ctx, vectorindex.Namespace(tenant), queryVector, req.TopK, filter)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "search vector index", err))
		return
	}

	hits, err := h.hydrate(ctx, tenant, matches, req.MinScore)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results_count": len(hits), "results": hits})
}

func (h *DocumentSearchHandler) hydrate(ctx context.Context, tenant string, matches []vectorindex.Match, minScore float32) ([]documentSearchHit, error) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minScore {
			ids = append(ids, m.ID)
		}
	}
	chunkRows, err := h.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "hydrate chunks", err)
	}

	docCache := make(map[string]*store.Document)
	hits := make([]documentSearchHit, 0, len(ids))
	for _, m := range matches {
		if m.Score < minScore {
			continue
		}
		chunk, ok := chunkRows[m.ID]
		if !ok {
			continue
		}
		doc, ok := docCache[chunk.Document]
		if !ok {
			doc, err = h.docs.Get(ctx, tenant, chunk.Document)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindTransientUpstream, "load document for hit", err)
			}
			docCache[chunk.Document] = doc
		}
		if doc == nil {
			continue
		}
		hits = append(hits, documentSearchHit{
			DocID: chunk.Document, Filename: doc.Filename, FileType: string(doc.Type),
			UploadDate: doc.UploadedAt.Format(http.TimeFormat), Snippet: snippet(chunk.Text, defaultSnippetChars),
			Score: m.Score, ChunkIndex: chunk.Index,
		})
	}
	return hits, nil
}

func snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

// EmployeeSearchHandler implements POST /employees/search, the people
// half of §4.10's DataQueryAgent made directly callable over HTTP
// without going through the chat orchestrator.
type EmployeeSearchHandler struct {
	embedder  embeddings.Embedder
	vectors   vectorindex.Index
	employees *store.EmployeeStore
}

// NewEmployeeSearchHandler wires an EmployeeSearchHandler.
func NewEmployeeSearchHandler(embedder embeddings.Embedder, vectors vectorindex.Index, employees *store.EmployeeStore) *EmployeeSearchHandler {
	return &EmployeeSearchHandler{embedder: embedder, vectors: vectors, employees: employees}
}

type employeeSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type employeeSearchHit struct {
	User     string         `json:"user"`
	Score    float32        `json:"score"`
	Snapshot map[string]any `json:"profile_snapshot"`
}

// HandleSearch handles POST /employees/search.
func (h *EmployeeSearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	var req employeeSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultSearchTopK
	}
	if req.TopK > maxEmployeeTopK {
		req.TopK = maxEmployeeTopK
	}

	ctx := r.Context()
	queryVector, err := h.embedder.EmbedText(ctx, tenant, req.Query)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "embed query", err))
		return
	}
	matches, err := h.vectors.Search(ctx, vectorindex.EmployeeNamespace(tenant), queryVector, req.TopK, nil)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "search employee namespace", err))
		return
	}

	records, err := h.employees.List(ctx, tenant)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "list employee records", err))
		return
	}
	byVectorID := make(map[string]*store.EmployeeEmbedding, len(records))
	for _, rec := range records {
		byVectorID[rec.VectorID] = rec
	}

	hits := make([]employeeSearchHit, 0, len(matches))
	for _, m := range matches {
		rec, ok := byVectorID[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, employeeSearchHit{User: rec.User, Score: m.Score, Snapshot: rec.ProfileSnapshot})
	}
	writeJSON(w, http.StatusOK, hits)
}
