// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/rag"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

const defaultTurnTimeout = 60 * time.Second

// Query is one user turn routed to the orchestrator, scoped to a
// tenant and carrying the planner's decision about which optional
// sub-agent paths apply.
type Query struct {
	Tenant        string
	Text          string
	WantDocuments bool
	WantPeople    bool
}

// EmployeeHit is one person match from the DataQueryAgent's people
// search.
type EmployeeHit struct {
	User     string         `json:"user"`
	Score    float32        `json:"score"`
	Snapshot map[string]any `json:"snapshot,omitempty"`
}

// ExternalHit is one stripped external page the ResearchAgent fetched.
type ExternalHit struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Step is one sub-agent's contribution, per spec.md's Design Note
// uniform `run(ctx, query) → {steps, hits}` contract: the step carries
// both its reasoning summary and whichever hit bucket it populated.
type Step struct {
	Agent     string        `json:"agent"`
	Summary   string        `json:"summary"`
	Documents []rag.Source  `json:"documents,omitempty"`
	Employees []EmployeeHit `json:"employees,omitempty"`
	External  []ExternalHit `json:"external,omitempty"`
}

// Sources is the final message's source union across every sub-agent.
type Sources struct {
	Documents []rag.Source  `json:"documents"`
	Employees []EmployeeHit `json:"employees"`
	External  []ExternalHit `json:"external"`
}

// Result is the orchestrator's answer, ready to persist onto a
// conversation Message per §4.11.
type Result struct {
	Answer         string         `json:"answer"`
	Confidence     float64        `json:"confidence"`
	ReasoningSteps []string       `json:"reasoning_steps"`
	Sources        Sources        `json:"sources"`
	Usage          rag.TokenUsage `json:"usage"`
}

// agent is the uniform contract every sub-agent (besides the planner
// and synthesizer, which return a single decision rather than hits)
// implements.
type agent interface {
	run(ctx context.Context, q Query) (Step, error)
}

// planner decides which optional sub-agent paths a query needs. It
// never returns an error: a planning failure falls back to a keyword
// heuristic rather than blocking the turn, the same "absorb into
// fallback" shape as classifier.Classify.
type planner interface {
	plan(ctx context.Context, tenant, query string) (Decision, string)
}

// synthesizer turns the collected steps into the final cited answer.
type synthesizer interface {
	synthesize(ctx context.Context, query string, steps []Step) (answer string, confidence float64, usage rag.TokenUsage, err error)
}

// Orchestrator runs the plan → parallel sub-agents → synthesize
// pipeline of §4.10, generalized from the teacher's `AnalystPool`
// one-job-against-N-rules worker shape into one-query-against-a-
// small-closed-set-of-sub-agents.
type Orchestrator struct {
	planner     planner
	dataQuery   agent
	research    agent
	synthesizer synthesizer
	turnTimeout time.Duration
}

// New wires an Orchestrator from its concrete dependencies.
func New(cfg *config.Config, ragEngine *rag.Engine, employees *store.EmployeeStore, vectors vectorindex.Index, embedder embeddings.Embedder) *Orchestrator {
	turnTimeout := cfg.ChatTurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}
	return &Orchestrator{
		planner:     newAnthropicPlanner(cfg),
		dataQuery:   newDataQueryAgent(ragEngine, employees, vectors, embedder),
		research:    newResearchAgent(cfg),
		synthesizer: newAnthropicSynthesizer(cfg),
		turnTimeout: turnTimeout,
	}
}

// Handle runs one turn end to end: plan, fan out the selected
// sub-agents concurrently, collect their steps in completion order,
// then synthesize.
func (o *Orchestrator) Handle(ctx context.Context, tenant, query string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	decision, planSummary := o.planner.plan(ctx, tenant, query)

	var mu sync.Mutex
	steps := []Step{{Agent: "planner", Summary: planSummary}}

	g, gctx := errgroup.WithContext(ctx)

	if decision.Documents || decision.People {
		g.Go(func() error {
			step, err := o.dataQuery.run(gctx, Query{Tenant: tenant, Text: query, WantDocuments: decision.Documents, WantPeople: decision.People})
			if err != nil {
				logger.Printf("orchestrator: data_query agent failed, omitting its step: %v", err)
				return nil
			}
			mu.Lock()
			steps = append(steps, step)
			mu.Unlock()
			return nil
		})
	}

	if decision.External {
		g.Go(func() error {
			step, err := o.research.run(gctx, Query{Tenant: tenant, Text: query})
			if err != nil {
				logger.Printf("orchestrator: research agent failed, omitting its step: %v", err)
				return nil
			}
			mu.Lock()
			steps = append(steps, step)
			mu.Unlock()
			return nil
		})
	}

	// Sub-agent failures are swallowed at the call site above (a
	// partial step is simply omitted, per §5's cancellation note), so
	// every goroutine returns nil and Wait has no error to surface.
	if err := g.Wait(); err != nil {
		logger.Printf("orchestrator: turn canceled: %v", err)
	}

	reasoning := make([]string, 0, len(steps))
	var sources Sources
	for _, s := range steps {
		reasoning = append(reasoning, s.Summary)
		sources.Documents = append(sources.Documents, s.Documents...)
		sources.Employees = append(sources.Employees, s.Employees...)
		sources.External = append(sources.External, s.External...)
	}

	answer, confidence, usage, err := o.synthesizer.synthesize(ctx, query, steps)
	if err != nil {
		return nil, err
	}

	return &Result{
		Answer:         answer,
		Confidence:     confidence,
		ReasoningSteps: reasoning,
		Sources:        sources,
		Usage:          usage,
	}, nil
}
