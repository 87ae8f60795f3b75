// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/orchestrator"
	"github.com/northbound/corpus/internal/store"
)

// ChatHandler implements the conversation/message surface of §6.1:
// list/create conversations, list/post messages, archive/unarchive.
// Every answer comes from the Agent Orchestrator — this system has no
// non-retrieval chat path, so use_rag is accepted for wire
// compatibility but the orchestrator always runs; spec.md's own
// acceptance scenario only exercises use_rag:true.
type ChatHandler struct {
	conversations *store.ConversationStore
	messages      *store.MessageStore
	orch          *orchestrator.Orchestrator
}

// NewChatHandler wires a ChatHandler.
func NewChatHandler(conversations *store.ConversationStore, messages *store.MessageStore, orch *orchestrator.Orchestrator) *ChatHandler {
	return &ChatHandler{conversations: conversations, messages: messages, orch: orch}
}

// HandleListConversations handles GET /chat/conversations for the
// tenant taken from the request context.
func (h *ChatHandler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	convos, err := h.conversations.ListByUser(r.Context(), tenant, tenant)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "list conversations", err))
		return
	}
	writeJSON(w, http.StatusOK, convos)
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// HandleCreateConversation handles POST /chat/conversations.
func (h *ChatHandler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	var req createConversationRequest
	json.NewDecoder(r.Body).Decode(&req)

	now := time.Now()
	convo := &store.Conversation{
		ID: uuid.New().String(), Tenant: tenant, User: tenant,
		Title: req.Title, CreatedAt: now, LastMessageAt: now,
	}
	if err := h.conversations.Create(r.Context(), convo); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "create conversation", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": convo.ID})
}

// HandleListMessages handles GET /chat/{conversation_id}/messages.
func (h *ChatHandler) HandleListMessages(w http.ResponseWriter, r *http.Request, conversationID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	convo, err := h.conversations.Get(r.Context(), tenant, conversationID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load conversation", err))
		return
	}
	if convo == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "conversation not found"))
		return
	}

	msgs, err := h.messages.ListByConversation(r.Context(), conversationID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "list messages", err))
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Message string `json:"message"`
	UseRAG  *bool  `json:"use_rag"`
}

// HandlePostMessage handles POST /chat/{conversation_id}/messages: it
// appends the user's message, runs the Orchestrator, appends the
// assistant's reply, and bumps the conversation's last-message
// timestamp, per the data flow spec.md's §3 diagram names.
func (h *ChatHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request, conversationID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	convo, err := h.conversations.Get(ctx, tenant, conversationID)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "load conversation", err))
		return
	}
	if convo == nil {
		writeAppError(w, apperr.New(apperr.KindNotFound, "conversation not found"))
		return
	}

	userMsg := &store.Message{
		ID: uuid.New().String(), Conversation: conversationID, Role: store.RoleUser,
		Content: req.Message, Timestamp: time.Now(),
	}
	if err := h.messages.Append(ctx, userMsg); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "append user message", err))
		return
	}

	result, err := h.orch.Handle(ctx, tenant, req.Message)
	if err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "orchestrate turn", err))
		return
	}

	assistantMsg := &store.Message{
		ID: uuid.New().String(), Conversation: conversationID, Role: store.RoleAssistant,
		Content: result.Answer, Reasoning: result.ReasoningSteps, Sources: flattenSources(result.Sources),
		Timestamp: time.Now(),
	}
	if err := h.messages.Append(ctx, assistantMsg); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "append assistant message", err))
		return
	}
	if err := h.conversations.TouchLastMessageAt(ctx, conversationID, assistantMsg.Timestamp); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "touch conversation", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":          result.Answer,
		"reasoning_steps": result.ReasoningSteps,
		"sources":         result.Sources,
		"usage":           result.Usage,
	})
}

// flattenSources converts the orchestrator's typed Sources union into
// the flat []map[string]any shape Message.Sources persists, tagging
// each entry with its originating sub-agent in a "kind" field;
// HandleListMessages returns these rows as stored.
func flattenSources(s orchestrator.Sources) []map[string]any {
	rows := make([]map[string]any, 0, len(s.Documents)+len(s.Employees)+len(s.External))
	for _, d := range s.Documents {
		rows = append(rows, map[string]any{"kind": "document", "doc_id": d.DocID, "filename": d.Filename, "page": d.Page, "score": d.Score, "chunk_text": d.ChunkText})
	}
	for _, e := range s.Employees {
		rows = append(rows, map[string]any{"kind": "employee", "data": e})
	}
	for _, e := range s.External {
		rows = append(rows, map[string]any{"kind": "external", "data": e})
	}
	return rows
}

// HandleArchive handles POST /chat/{conversation_id}/archive.
func (h *ChatHandler) HandleArchive(w http.ResponseWriter, r *http.Request, conversationID string) {
	h.setArchived(w, r, conversationID, true)
}

// HandleUnarchive handles POST /chat/{conversation_id}/unarchive.
func (h *ChatHandler) HandleUnarchive(w http.ResponseWriter, r *http.Request, conversationID string) {
	h.setArchived(w, r, conversationID, false)
}

func (h *ChatHandler) setArchived(w http.ResponseWriter, r *http.Request, conversationID string, archived bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}
	if err := h.conversations.SetArchived(r.Context(), tenant, conversationID, archived); err != nil {
		writeAppError(w, apperr.Wrap(apperr.KindTransientUpstream, "set archived", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
