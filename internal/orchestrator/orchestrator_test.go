// Copyright (c) 2025 Northbound System
package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/rag"
)

type fakePlanner struct {
	decision Decision
	summary  string
}

func (f *fakePlanner) plan(_ context.Context, _, _ string) (Decision, string) {
	return f.decision, f.summary
}

type fakeAgent struct {
	step Step
	err  error
	wait time.Duration
}

func (f *fakeAgent) run(ctx context.Context, _ Query) (Step, error) {
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return Step{}, ctx.Err()
		}
	}
	return f.step, f.err
}

type fakeSynthesizer struct {
	answer     string
	confidence float64
	err        error
}

func (f *fakeSynthesizer) synthesize(_ context.Context, _ string, _ []Step) (string, float64, rag.TokenUsage, error) {
	return f.answer, f.confidence, rag.TokenUsage{}, f.err
}

func TestHandle_CollectsStepsFromSelectedAgentsOnly(t *testing.T) {
	o := &Orchestrator{
		planner:     &fakePlanner{decision: Decision{Documents: true}, summary: "planner: consulting documents"},
		dataQuery:   &fakeAgent{step: Step{Agent: "data_query", Summary: "data_query: 2 document hit(s)"}},
		research:    &fakeAgent{step: Step{Agent: "research", Summary: "research: should not run"}},
		synthesizer: &fakeSynthesizer{answer: "the Q3 report shows 12% growth", confidence: 0.9},
		turnTimeout: 5 * time.Second,
	}

	result, err := o.Handle(context.Background(), "acme", "what did the Q3 report say?")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(result.ReasoningSteps) != 2 {
		t.Fatalf("expected planner + data_query steps only, got %+v", result.ReasoningSteps)
	}
	if result.ReasoningSteps[0] != "planner: consulting documents" {
		t.Errorf("expected planner step first, got %q", result.ReasoningSteps[0])
	}
	if result.Answer != "the Q3 report shows 12% growth" {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
}

func TestHandle_SubAgentFailureOmitsItsStepWithoutFailingTheTurn(t *testing.T) {
	o := &Orchestrator{
		planner:     &fakePlanner{decision: Decision{Documents: true, External: true}, summary: "planner: consulting documents, external"},
		dataQuery:   &fakeAgent{err: context.DeadlineExceeded},
		research:    &fakeAgent{step: Step{Agent: "research", Summary: "research: 1 external result(s)"}},
		synthesizer: &fakeSynthesizer{answer: "partial answer", confidence: 0.5},
		turnTimeout: 5 * time.Second,
	}

	result, err := o.Handle(context.Background(), "acme", "what's new externally?")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(result.ReasoningSteps) != 2 {
		t.Fatalf("expected planner + research steps (data_query omitted), got %+v", result.ReasoningSteps)
	}
	for _, s := range result.ReasoningSteps {
		if s == "" {
			t.Errorf("unexpected empty step in %+v", result.ReasoningSteps)
		}
	}
}

func TestHandle_SynthesisFailurePropagates(t *testing.T) {
	o := &Orchestrator{
		planner:     &fakePlanner{decision: Decision{}, summary: "planner: no sub-agent selected"},
		dataQuery:   &fakeAgent{},
		research:    &fakeAgent{},
		synthesizer: &fakeSynthesizer{err: context.DeadlineExceeded},
		turnTimeout: 5 * time.Second,
	}

	if _, err := o.Handle(context.Background(), "acme", "anything"); err == nil {
		t.Fatal("expected synthesis failure to propagate")
	}
}
