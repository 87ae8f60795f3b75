// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package classifier

import (
	"fmt"
	"strings"

	"github.com/northbound/corpus/internal/orgcontext"
)

const toolName = "emit_classification"

// toolResult is the shape the model's tool call is forced into. It
// mirrors store.Classification minus the fields the caller (not the
// model) owns: Document, Tenant, Model, Fallback, ClassifiedAt.
type toolResult struct {
	Team            string             `json:"team"`
	Project         string             `json:"project"`
	DocType         string             `json:"doc_type"`
	TimePeriod      string             `json:"time_period"`
	Confidentiality string             `json:"confidentiality"`
	People          []string           `json:"people"`
	Tags            []string           `json:"tags"`
	Summary         string             `json:"summary"`
	Confidence      map[string]float64 `json:"confidence"`
}

// classificationFields lists the keys toolResult.Confidence must carry
// one entry for, matching the §3 classification record's fields.
var classificationFields = []string{"team", "project", "doc_type", "time_period", "confidentiality", "people", "tags", "summary"}

func toolInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team":            map[string]any{"type": "string", "description": "The owning team, or empty string if not determinable"},
			"project":         map[string]any{"type": "string", "description": "The associated project, or empty string if not determinable"},
			"doc_type":        map[string]any{"type": "string", "description": "A short business document category, e.g. contract, invoice, report, proposal, memo"},
			"time_period":     map[string]any{"type": "string", "description": "The period the document pertains to, e.g. a quarter or year, or empty string"},
			"confidentiality": map[string]any{"type": "string", "enum": []string{"public", "internal", "confidential", "restricted"}},
			"people": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Named individuals mentioned as authors, recipients, or subjects",
			},
			"tags": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Up to 5 short freeform tags",
			},
			"summary": map[string]any{"type": "string", "description": "A one to three sentence summary of the document"},
			"confidence": map[string]any{
				"type":                 "object",
				"description":          "Per-field confidence in [0,1], one entry for each of: team, project, doc_type, time_period, confidentiality, people, tags, summary",
				"additionalProperties": map[string]any{"type": "number"},
			},
		},
		"required": []string{"doc_type", "confidentiality", "people", "tags", "summary", "confidence"},
	}
}

// buildPrompt renders the user-turn content: the organizational
// context, the filename, and the leading chunk text the document was
// truncated to.
func buildPrompt(filename, text string, facets orgcontext.Facets) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify the following document.\n\nFilename: %s\n\n", filename)

	if len(facets.Teams) > 0 || len(facets.Projects) > 0 || len(facets.DocTypes) > 0 {
		b.WriteString("Known organizational context for this tenant (prefer reusing these values over inventing new ones):\n")
		if len(facets.Teams) > 0 {
			fmt.Fprintf(&b, "- Teams: %s\n", strings.Join(facets.Teams, ", "))
		}
		if len(facets.Projects) > 0 {
			fmt.Fprintf(&b, "- Projects: %s\n", strings.Join(facets.Projects, ", "))
		}
		if len(facets.DocTypes) > 0 {
			fmt.Fprintf(&b, "- Doc types: %s\n", strings.Join(facets.DocTypes, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Document content:\n")
	b.WriteString(text)
	return b.String()
}

const systemPrompt = "You are a document classification assistant for a multi-tenant document " +
	"intelligence system. Call emit_classification exactly once with your best assessment. " +
	"Leave a field empty (empty string, empty array) rather than guessing when the document " +
	"gives no signal. Use a low temperature mentally: prefer the most likely categorical value " +
	"over a creative one."
