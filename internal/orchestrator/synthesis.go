// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/rag"
)

const (
	synthesisTimeout   = 30 * time.Second
	synthesisMaxTokens = 1024
	synthesisToolName  = "emit_synthesis"
	synthesisFallback  = "I don't know based on the available documents."
)

const synthesisSystemText = "You are the synthesis stage of a multi-agent research assistant. You " +
	"receive a user question plus hit sets gathered by independent document, people, and web " +
	"research agents. Call emit_synthesis exactly once with a prose answer that cites its " +
	"sources inline (e.g. [doc: filename], [person: name], [web: url]), an honest confidence " +
	"in [0,1], and the list of sources actually used. If two sources disagree, say so plainly " +
	"in the answer rather than silently picking one."

type synthesisToolResult struct {
	Answer      string   `json:"answer"`
	Confidence  float64  `json:"confidence"`
	SourcesUsed []string `json:"sources_used"`
}

// anthropicSynthesizer produces the final cited answer from every
// sub-agent's hits, grounded on the same tool-forced Anthropic call
// shape as the Classifier and Planner.
type anthropicSynthesizer struct {
	sdk   anthropic.Client
	model string
}

func newAnthropicSynthesizer(cfg *config.Config) *anthropicSynthesizer {
	return &anthropicSynthesizer{sdk: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)), model: cfg.ChatModel}
}

func (s *anthropicSynthesizer) synthesize(ctx context.Context, query string, steps []Step) (string, float64, rag.TokenUsage, error) {
	hasEvidence := false
	for _, step := range steps {
		if len(step.Documents) > 0 || len(step.Employees) > 0 || len(step.External) > 0 {
			hasEvidence = true
			break
		}
	}
	if !hasEvidence {
		return synthesisFallback, 0, rag.TokenUsage{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
	schema.Properties = map[string]any{
		"answer":       map[string]any{"type": "string"},
		"confidence":   map[string]any{"type": "number", "description": "Confidence in [0,1]"},
		"sources_used": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}
	schema.Required = []string{"answer", "confidence", "sources_used"}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: synthesisMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: synthesisSystemText}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(buildSynthesisPrompt(query, steps)))},
		Tools: []anthropic.ToolUnionParam{{OfTool: &anthropic.ToolParam{
			Name:        synthesisToolName,
			Description: anthropic.String("Emit the synthesized answer"),
			InputSchema: schema,
		}}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: synthesisToolName}},
	}

	resp, err := s.sdk.Messages.New(ctx, params)
	if err != nil {
		logger.Printf("orchestrator: synthesis call failed, falling back to raw evidence dump: %v", err)
		return fallbackSynthesis(steps), 0.2, rag.TokenUsage{}, nil
	}

	usage := rag.TokenUsage{InputTokens: int(resp.Usage.InputTokens), OutputTokens: int(resp.Usage.OutputTokens)}

	for _, block := range resp.Content {
		tu, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || tu.Name != synthesisToolName {
			continue
		}
		var tr synthesisToolResult
		if err := json.Unmarshal(tu.Input, &tr); err != nil {
			logger.Printf("orchestrator: synthesis response undecodable, falling back to raw evidence dump: %v", err)
			return fallbackSynthesis(steps), 0.2, usage, nil
		}
		confidence := tr.Confidence
		if confidence < 0 || confidence > 1 {
			confidence = 0.5
		}
		return tr.Answer, confidence, usage, nil
	}

	logger.Printf("orchestrator: synthesis response carried no %s tool call, falling back to raw evidence dump", synthesisToolName)
	return fallbackSynthesis(steps), 0.2, usage, nil
}

// buildSynthesisPrompt renders every sub-agent's hits as labeled
// evidence blocks ahead of the question.
func buildSynthesisPrompt(query string, steps []Step) string {
	var b strings.Builder
	b.WriteString("Evidence gathered so far:\n\n")
	for _, step := range steps {
		for _, d := range step.Documents {
			fmt.Fprintf(&b, "[doc: %s] %s\n\n", d.Filename, d.ChunkText)
		}
		for _, e := range step.Employees {
			fmt.Fprintf(&b, "[person: %s] profile match, score %.2f\n\n", e.User, e.Score)
		}
		for _, x := range step.External {
			fmt.Fprintf(&b, "[web: %s] %s\n\n", x.URL, x.Snippet)
		}
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}

// fallbackSynthesis is used only when the model call itself fails or
// returns something unusable; it degrades to a plain evidence dump
// rather than inventing prose, mirroring classifier.fallbackClassify's
// "stay cheap and honest rather than creative" rule.
func fallbackSynthesis(steps []Step) string {
	var b strings.Builder
	b.WriteString("Synthesis unavailable; raw evidence follows.\n\n")
	for _, step := range steps {
		for _, d := range step.Documents {
			fmt.Fprintf(&b, "- [doc: %s] %s\n", d.Filename, truncateSnippet(d.ChunkText, 200))
		}
		for _, e := range step.Employees {
			fmt.Fprintf(&b, "- [person: %s]\n", e.User)
		}
		for _, x := range step.External {
			fmt.Fprintf(&b, "- [web: %s] %s\n", x.URL, truncateSnippet(x.Snippet, 200))
		}
	}
	return b.String()
}

func truncateSnippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
