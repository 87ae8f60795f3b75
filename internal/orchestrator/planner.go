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
)

const (
	planTimeout    = 15 * time.Second
	planMaxTokens  = 256
	planToolName   = "select_agents"
	planSystemText = "You route a user's question to the data sources a document intelligence " +
		"assistant can consult. Call select_agents exactly once. Select documents when the " +
		"question could be answered from the organization's files, people when it asks about " +
		"who did or knows something, external when it needs information outside the " +
		"organization's own documents. Select more than one when the question spans them."
)

// Decision is the planner's output: which optional sub-agent paths a
// query needs, per §4.10.
type Decision struct {
	Documents bool
	People    bool
	External  bool
}

type planToolResult struct {
	Documents bool `json:"documents"`
	People    bool `json:"people"`
	External  bool `json:"external"`
}

// anthropicPlanner is the concrete planner: a lightweight structured
// Anthropic tool call, the same SDK shape as the Classifier.
type anthropicPlanner struct {
	sdk   anthropic.Client
	model string
}

func newAnthropicPlanner(cfg *config.Config) *anthropicPlanner {
	return &anthropicPlanner{sdk: anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)), model: cfg.ChatModel}
}

func (p *anthropicPlanner) plan(ctx context.Context, tenant, query string) (Decision, string) {
	ctx, cancel := context.WithTimeout(ctx, planTimeout)
	defer cancel()

	schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
	schema.Properties = map[string]any{
		"documents": map[string]any{"type": "boolean", "description": "Consult the tenant's document corpus"},
		"people":    map[string]any{"type": "boolean", "description": "Consult known employees"},
		"external":  map[string]any{"type": "boolean", "description": "Consult external web research"},
	}
	schema.Required = []string{"documents", "people", "external"}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: planMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: planSystemText}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(query))},
		Tools: []anthropic.ToolUnionParam{{OfTool: &anthropic.ToolParam{
			Name:        planToolName,
			Description: anthropic.String("Select which sub-agents this query needs"),
			InputSchema: schema,
		}}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: planToolName}},
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		logger.Printf("orchestrator: planner call failed for tenant %s, falling back to keyword heuristic: %v", tenant, err)
		return fallbackPlan(query)
	}

	for _, block := range resp.Content {
		tu, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || tu.Name != planToolName {
			continue
		}
		var tr planToolResult
		if err := json.Unmarshal(tu.Input, &tr); err != nil {
			logger.Printf("orchestrator: planner response undecodable, falling back to keyword heuristic: %v", err)
			return fallbackPlan(query)
		}
		decision := Decision{Documents: tr.Documents, People: tr.People, External: tr.External}
		return decision, "planner: consulting " + summarizeDecision(decision)
	}

	logger.Printf("orchestrator: planner response carried no %s tool call, falling back to keyword heuristic", planToolName)
	return fallbackPlan(query)
}

// peopleKeywords and externalKeywords drive the fallback heuristic,
// the same "cheap signal from the text itself" shape as
// classifier.fallbackClassify's filename keyword lists.
var peopleKeywords = []string{"who ", "whose", "employee", "team member", "reports to", "contact for"}
var externalKeywords = []string{"latest", "news", "industry", "market", "competitor", "external", "web"}

// fallbackPlan defaults to documents-only, the safest universally
// applicable path, adding people/external only on an explicit keyword
// match. It never returns an error: this is the absorbing fallback
// for an unreachable or malformed planner response.
func fallbackPlan(query string) (Decision, string) {
	lower := strings.ToLower(query)
	decision := Decision{Documents: true}
	for _, kw := range peopleKeywords {
		if strings.Contains(lower, kw) {
			decision.People = true
			break
		}
	}
	for _, kw := range externalKeywords {
		if strings.Contains(lower, kw) {
			decision.External = true
			break
		}
	}
	return decision, fmt.Sprintf("planner: keyword fallback selected %s", summarizeDecision(decision))
}

// summarizeDecision renders a Decision as the comma-separated list of
// sub-agents it selects, for embedding into a reasoning step summary.
func summarizeDecision(d Decision) string {
	var parts []string
	if d.Documents {
		parts = append(parts, "documents")
	}
	if d.People {
		parts = append(parts, "people")
	}
	if d.External {
		parts = append(parts, "external")
	}
	if len(parts) == 0 {
		return "no sub-agent"
	}
	return strings.Join(parts, ", ")
}
