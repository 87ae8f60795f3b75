// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package orchestrator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/rag"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// peopleTopK bounds how many employee candidates a single search
// returns.
const peopleTopK = 5

// employeeNamespace is an alias kept local to this package so callers
// here read the same as the rest of §4.10's wiring.
func employeeNamespace(tenant string) string {
	return vectorindex.EmployeeNamespace(tenant)
}

// dataQueryAgent wraps the RAG Engine's retrieval half for document
// hits and a parallel employee-embedding search for people hits,
// per §4.10.
type dataQueryAgent struct {
	rag       *rag.Engine
	employees *store.EmployeeStore
	vectors   vectorindex.Index
	embedder  embeddings.Embedder
}

func newDataQueryAgent(ragEngine *rag.Engine, employees *store.EmployeeStore, vectors vectorindex.Index, embedder embeddings.Embedder) *dataQueryAgent {
	return &dataQueryAgent{rag: ragEngine, employees: employees, vectors: vectors, embedder: embedder}
}

func (a *dataQueryAgent) run(ctx context.Context, q Query) (Step, error) {
	var docs []rag.Source
	var people []EmployeeHit

	g, gctx := errgroup.WithContext(ctx)

	if q.WantDocuments {
		g.Go(func() error {
			srcs, err := a.rag.Retrieve(gctx, q.Tenant, q.Text, nil)
			if err != nil {
				return err
			}
			docs = srcs
			return nil
		})
	}

	if q.WantPeople {
		g.Go(func() error {
			hits, err := a.searchPeople(gctx, q.Tenant, q.Text)
			if err != nil {
				return err
			}
			people = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Step{}, err
	}

	summary := fmt.Sprintf("data_query: %d document hit(s), %d employee hit(s)", len(docs), len(people))
	return Step{Agent: "data_query", Summary: summary, Documents: docs, Employees: people}, nil
}

// searchPeople embeds the query, searches the tenant's employee
// namespace, then hydrates each hit's vector id back to the employee
// it belongs to via EmployeeStore.List — the same "resolve a bare
// vector hit back through the relational store" shape as
// rag.Engine.hydrate, since vectorindex.Match carries no identity
// field of its own.
func (a *dataQueryAgent) searchPeople(ctx context.Context, tenant, query string) ([]EmployeeHit, error) {
	queryVector, err := a.embedder.EmbedText(ctx, tenant, query)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "embed people query", err)
	}

	matches, err := a.vectors.Search(ctx, employeeNamespace(tenant), queryVector, peopleTopK, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "search employee vectors", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	employees, err := a.employees.List(ctx, tenant)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "list employee embeddings", err)
	}
	byVectorID := make(map[string]*store.EmployeeEmbedding, len(employees))
	for _, e := range employees {
		byVectorID[e.VectorID] = e
	}

	hits := make([]EmployeeHit, 0, len(matches))
	for _, m := range matches {
		e, ok := byVectorID[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, EmployeeHit{User: e.User, Score: m.Score, Snapshot: e.ProfileSnapshot})
	}
	return hits, nil
}
