// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// noAnswerLiteral is returned verbatim when no retrieved chunk clears
// the score floor (§4.9): the engine must not guess from its own
// training knowledge once retrieval comes up empty.
const noAnswerLiteral = "I don't know based on the available documents."

const (
	defaultTopK     = 10
	defaultMinScore = 0.7
	answerTimeout   = 30 * time.Second
	maxAnswerTokens = 1024
)

const systemPreamble = `You answer questions using only the numbered context passages provided below.
Cite every claim inline with its passage number in brackets, e.g. [1], [2].
If the passages do not contain the answer, say so plainly rather than guessing.`

// Source is one retrieved chunk attached to an answer.
type Source struct {
	DocID     string  `json:"doc_id"`
	Filename  string  `json:"filename"`
	Page      int     `json:"page"`
	Score     float32 `json:"score"`
	ChunkText string  `json:"chunk_text"`
}

// TokenUsage mirrors the Anthropic response's usage block.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Answer is the engine's full response shape, per §4.9 step 5.
type Answer struct {
	Answer     string     `json:"answer"`
	Sources    []Source   `json:"sources"`
	TokenUsage TokenUsage `json:"token_usage"`
}

// Engine runs the single-shot embed → search → hydrate → cited-prompt
// → chat-completion pipeline.
type Engine struct {
	embedder embeddings.Embedder
	vectors  vectorindex.Index
	chunks   *store.ChunkStore
	docs     *store.DocumentStore
	sdk      anthropic.Client
	model    string
	topK     int
	minScore float32
}

// New builds an Engine from resolved configuration.
func New(cfg *config.Config, embedder embeddings.Embedder, vectors vectorindex.Index, chunks *store.ChunkStore, docs *store.DocumentStore) *Engine {
	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = defaultTopK
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		chunks:   chunks,
		docs:     docs,
		sdk:      anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:    cfg.ChatModel,
		topK:     topK,
		minScore: float32(minScore),
	}
}

// Ask runs the full pipeline for one question, scoped to tenant and an
// optional metadata filter narrowing the vector search (e.g. a folder
// view's facet).
func (e *Engine) Ask(ctx context.Context, tenant, query string, filter map[string]string) (*Answer, error) {
	sources, err := e.Retrieve(ctx, tenant, query, filter)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &Answer{Answer: noAnswerLiteral, Sources: []Source{}}, nil
	}

	answer, usage, err := e.complete(ctx, query, sources)
	if err != nil {
		return nil, err
	}

	return &Answer{Answer: answer, Sources: sources, TokenUsage: usage}, nil
}

// Retrieve runs the embed → search → score-floor → hydrate steps alone,
// without invoking the generative model. The Agent Orchestrator's
// DataQueryAgent calls this directly for its document-search hits,
// reusing the retrieval half of the pipeline without paying for a
// second chat completion (§4.10).
func (e *Engine) Retrieve(ctx context.Context, tenant, query string, filter map[string]string) ([]Source, error) {
	queryVector, err := e.embedder.EmbedText(ctx, tenant, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "embed query", err)
	}

	matches, err := e.vectors.Search(ctx, vectorindex.Namespace(tenant), queryVector, e.topK, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "search vector index", err)
	}

	var hits []vectorindex.Match
	for _, m := range matches {
		if m.Score >= e.minScore {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	return e.hydrate(ctx, tenant, hits)
}

// hydrate resolves each match's chunk id back to filename/chunk_text via
// the relational store, preserving the caller's rank order.
func (e *Engine) hydrate(ctx context.Context, tenant string, hits []vectorindex.Match) ([]Source, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunkRows, err := e.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "hydrate chunks", err)
	}

	filenames := make(map[string]string)
	sources := make([]Source, 0, len(hits))
	for _, h := range hits {
		chunk, ok := chunkRows[h.ID]
		if !ok {
			continue
		}
		filename, ok := filenames[chunk.Document]
		if !ok {
			doc, err := e.docs.Get(ctx, tenant, chunk.Document)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindTransientUpstream, "load document for hit", err)
			}
			if doc != nil {
				filename = doc.Filename
			}
			filenames[chunk.Document] = filename
		}

		// Chunk metadata round-trips through JSON as strings (it originates
		// as the extractor's map[string]string), so a page hint — when a
		// future extractor adds one — arrives as a numeric string.
		page := 0
		if chunk.Metadata != nil {
			if p, ok := chunk.Metadata["page"].(string); ok {
				if v, err := strconv.Atoi(p); err == nil {
					page = v
				}
			}
		}

		sources = append(sources, Source{
			DocID:     chunk.Document,
			Filename:  filename,
			Page:      page,
			Score:     h.Score,
			ChunkText: chunk.Text,
		})
	}
	return sources, nil
}

// complete builds the citation-augmented prompt and invokes the
// generative model, returning its plain-text answer and token usage.
func (e *Engine) complete(ctx context.Context, query string, sources []Source) (string, TokenUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	var passages strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&passages, "[%d] (%s) %s\n\n", i+1, s.Filename, s.ChunkText)
	}

	userPrompt := fmt.Sprintf("Context passages:\n\n%s\nQuestion: %s", passages.String(), query)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: maxAnswerTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPreamble}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt))},
	}

	resp, err := e.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", TokenUsage{}, apperr.Wrap(apperr.KindTransientUpstream, "anthropic chat completion", err)
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			answer.WriteString(tb.Text)
		}
	}

	usage := TokenUsage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	return answer.String(), usage, nil
}
