// Copyright (c) 2025 Northbound System
package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/rag"
)

func TestSynthesize_NoEvidenceReturnsLiteralFallbackWithoutCallingModel(t *testing.T) {
	s := newAnthropicSynthesizer(&config.Config{ChatModel: "claude-sonnet-4-5", AnthropicAPIKey: "test-key"})
	answer, confidence, _, err := s.synthesize(context.Background(), "what is our travel policy?", []Step{{Agent: "planner", Summary: "planner: no sub-agent selected"}})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if answer != synthesisFallback {
		t.Errorf("expected literal fallback, got %q", answer)
	}
	if confidence != 0 {
		t.Errorf("expected zero confidence for the no-evidence fallback, got %v", confidence)
	}
}

func TestFallbackSynthesis_DumpsEveryHitKind(t *testing.T) {
	steps := []Step{
		{Agent: "data_query", Documents: []rag.Source{{Filename: "q3.pdf", ChunkText: "revenue grew 12%"}}, Employees: []EmployeeHit{{User: "alice"}}},
		{Agent: "research", External: []ExternalHit{{URL: "https://example.com", Snippet: "context"}}},
	}
	out := fallbackSynthesis(steps)
	for _, want := range []string{"q3.pdf", "alice", "example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected fallback dump to mention %q, got %q", want, out)
		}
	}
}
