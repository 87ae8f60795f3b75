// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/blobstore"
	"github.com/northbound/corpus/internal/chunker"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/jobs"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// fakeClassifier satisfies jobs.Classifier without calling out to an
// LLM, mirroring internal/jobs/process_document_test.go's fixture.
type fakeClassifier struct{}

func (f *fakeClassifier) Classify(_ context.Context, tenant, documentID, _ string, _ []string) (*store.Classification, error) {
	return &store.Classification{Document: documentID, Tenant: tenant, DocType: "report", ClassifiedAt: time.Now()}, nil
}

// testRig bundles the fakes every handler test in this package needs,
// grounded on internal/jobs/process_document_test.go's newTestRig.
type testRig struct {
	s       *store.Store
	blobs   *blobstore.MemoryStore
	vecs    *vectorindex.MemoryIndex
	embed   *embeddings.MockEmbedder
	exec    *jobs.Executor
	queue   *jobs.MemoryQueue
	tenant  string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	blobs := blobstore.NewMemoryStore()
	vecs := vectorindex.NewMemoryIndex()
	embedder := embeddings.NewMockEmbedder(8)
	chunkr, err := chunker.New(200, 20)
	if err != nil {
		t.Fatalf("chunker.New failed: %v", err)
	}
	queue := jobs.NewMemoryQueue()
	exec := jobs.NewExecutor(queue, s.Jobs, s.Documents, s.Chunks, blobs, embedder, vecs, chunkr, &fakeClassifier{}, s.Employees)

	return &testRig{s: s, blobs: blobs, vecs: vecs, embed: embedder, exec: exec, queue: queue, tenant: "acme"}
}
