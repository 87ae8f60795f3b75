// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/orgcontext"
	"github.com/northbound/corpus/internal/store"
)

const (
	// maxPromptChars bounds the leading-chunk text handed to the model,
	// standing in for "K chunks chosen so the prompt stays within
	// context" without needing a tokenizer dependency in this package.
	maxPromptChars  = 12000
	maxTokens       = 1024
	classifyTimeout = 30 * time.Second
	maxAttempts     = 2
)

// Classifier assigns the §3 classification record to a document using
// a structured Anthropic tool call, with a heuristic fallback when the
// model is unreachable or returns something unusable.
type Classifier struct {
	sdk      anthropic.Client
	model    string
	orgCache *orgcontext.Cache
	store    *store.ClassificationStore
}

// New builds a Classifier from resolved configuration. orgCache and
// classifications are shared with the rest of the pipeline: the cache
// is invalidated, and the store written to, at the end of every
// Classify call.
func New(cfg *config.Config, orgCache *orgcontext.Cache, classifications *store.ClassificationStore) *Classifier {
	return &Classifier{
		sdk:      anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		model:    cfg.ChatModel,
		orgCache: orgCache,
		store:    classifications,
	}
}

// Classify produces, persists, and returns the classification for
// documentID. It never returns an error for a classification failure
// itself (the fallback absorbs that): an error here means the result
// could not be written to the store at all, which the job executor
// treats per §4.7.1 — classification failure never blocks document
// completion.
func (c *Classifier) Classify(ctx context.Context, tenant, documentID, filename string, chunkTexts []string) (*store.Classification, error) {
	facets, err := c.orgCache.Get(ctx, tenant)
	if err != nil {
		logger.Printf("classifier: organizational context unavailable for tenant %s: %v", tenant, err)
		facets = orgcontext.Facets{}
	}

	text := leadingText(chunkTexts, maxPromptChars)

	var result *store.Classification
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = c.classifyOnce(ctx, filename, text, facets)
		if err == nil {
			break
		}
		logger.Printf("classifier: attempt %d/%d failed for document %s: %v", attempt, maxAttempts, documentID, err)
	}

	if result == nil {
		fb := fallbackClassify(filename)
		result = &fb
	}

	result.Document = documentID
	result.Tenant = tenant
	result.ClassifiedAt = time.Now()
	if !result.Fallback {
		result.Model = c.model
	}

	if err := c.store.Upsert(ctx, result); err != nil {
		return nil, fmt.Errorf("persist classification for %s: %w", documentID, err)
	}
	c.orgCache.Invalidate(tenant)

	return result, nil
}

func (c *Classifier) classifyOnce(ctx context.Context, filename, text string, facets orgcontext.Facets) (*store.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	raw := toolInputSchema()
	schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
	schema.Properties = raw["properties"]
	if required, ok := raw["required"].([]string); ok {
		schema.Required = required
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(filename, text, facets)))},
		Tools: []anthropic.ToolUnionParam{{OfTool: &anthropic.ToolParam{
			Name:        toolName,
			Description: anthropic.String("Emit the structured classification for the document"),
			InputSchema: schema,
		}}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: toolName}},
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "anthropic classify call", err)
	}

	for _, block := range resp.Content {
		tu, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || tu.Name != toolName {
			continue
		}
		return decodeToolResult(tu.Input)
	}
	return nil, apperr.New(apperr.KindClassifier, fmt.Sprintf("classify response carried no %s tool call", toolName))
}

// decodeToolResult parses and validates the model's tool-call payload,
// rejecting it outright (rather than clamping) when a confidence value
// falls outside [0,1] or a required field is missing — an invalid
// payload is treated the same as an LLM failure and triggers the
// retry/fallback path.
func decodeToolResult(raw json.RawMessage) (*store.Classification, error) {
	var tr toolResult
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, apperr.Wrap(apperr.KindClassifier, "decode classification tool call", err)
	}

	conf := tr.Confidence
	if conf == nil {
		return nil, apperr.New(apperr.KindClassifier, "classification missing confidence map")
	}
	for _, field := range classificationFields {
		v, ok := conf[field]
		if !ok {
			return nil, apperr.New(apperr.KindClassifier, fmt.Sprintf("classification confidence missing field %q", field))
		}
		if v < 0 || v > 1 {
			return nil, apperr.New(apperr.KindClassifier, fmt.Sprintf("classification confidence for %q out of [0,1]: %v", field, v))
		}
	}

	conf2 := store.ConfidentialityInternal
	switch store.Confidentiality(tr.Confidentiality) {
	case store.ConfidentialityPublic, store.ConfidentialityInternal, store.ConfidentialityConfidential, store.ConfidentialityRestricted:
		conf2 = store.Confidentiality(tr.Confidentiality)
	default:
		return nil, apperr.New(apperr.KindClassifier, fmt.Sprintf("invalid confidentiality value %q", tr.Confidentiality))
	}

	if len(tr.Tags) > 5 {
		tr.Tags = tr.Tags[:5]
	}

	return &store.Classification{
		Team:            tr.Team,
		Project:         tr.Project,
		DocType:         tr.DocType,
		TimePeriod:      tr.TimePeriod,
		Confidentiality: conf2,
		People:          tr.People,
		Tags:            tr.Tags,
		Summary:         tr.Summary,
		Confidence:      conf,
	}, nil
}

// leadingText concatenates chunkTexts until adding the next one would
// exceed maxChars, truncating the final chunk if needed so the model
// always sees a bounded amount of input regardless of document size.
func leadingText(chunkTexts []string, maxChars int) string {
	var out []byte
	for _, t := range chunkTexts {
		sep := 0
		if len(out) > 0 {
			sep = 2
		}
		remaining := maxChars - len(out) - sep
		if remaining <= 0 {
			break
		}
		if sep > 0 {
			out = append(out, '\n', '\n')
		}
		if len(t) > remaining {
			out = append(out, t[:remaining]...)
			break
		}
		out = append(out, t...)
	}
	return string(out)
}
