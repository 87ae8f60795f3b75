// Copyright (c) 2025 Northbound System
package jobs

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/blobstore"
	"github.com/northbound/corpus/internal/chunker"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// budgetExceededEmbedder simulates openai.go's checkBudget gate tripping
// mid-pipeline, so processDocument's embed step can be exercised against
// a KindBudgetExceeded cause without a live OpenAI client.
type budgetExceededEmbedder struct{ dim int }

func (e *budgetExceededEmbedder) Dimension() int { return e.dim }
func (e *budgetExceededEmbedder) EmbedText(ctx context.Context, tenant, text string) ([]float32, error) {
	return nil, apperr.New(apperr.KindBudgetExceeded, "monthly embedding budget exceeded")
}
func (e *budgetExceededEmbedder) EmbedBatch(ctx context.Context, tenant string, texts []string) ([][]float32, error) {
	return nil, apperr.New(apperr.KindBudgetExceeded, "monthly embedding budget exceeded")
}

type fakeClassifier struct {
	calls int
	err   error
}

func (f *fakeClassifier) Classify(_ context.Context, tenant, documentID, filename string, chunkTexts []string) (*store.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &store.Classification{Document: documentID, Tenant: tenant, DocType: "report", ClassifiedAt: time.Now()}, nil
}

type testRig struct {
	s      *store.Store
	blobs  *blobstore.MemoryStore
	vecs   *vectorindex.MemoryIndex
	exec   *Executor
	fc     *fakeClassifier
	tenant string
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
	fc := &fakeClassifier{}
	queue := NewMemoryQueue()

	exec := NewExecutor(queue, s.Jobs, s.Documents, s.Chunks, blobs, embedder, vecs, chunkr, fc, s.Employees)

	return &testRig{s: s, blobs: blobs, vecs: vecs, exec: exec, fc: fc, tenant: "acme"}
}

func (r *testRig) seedDocument(t *testing.T, ctx context.Context, id, text string) *store.Document {
	t.Helper()
	key, err := r.blobs.Put(ctx, r.tenant, id+".txt", "text/plain", []byte(text))
	if err != nil {
		t.Fatalf("blobs.Put failed: %v", err)
	}
	doc := &store.Document{
		ID: id, Tenant: r.tenant, Filename: id + ".txt", Type: store.DocTypeTXT,
		ContentType: "text/plain", Size: int64(len(text)), StorageKey: key,
		Uploader: "alice", UploadedAt: time.Now(), Status: store.DocStatusPending,
	}
	if err := r.s.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("Documents.Create failed: %v", err)
	}
	return doc
}

func (r *testRig) seedJob(t *testing.T, ctx context.Context, jobID, documentID string) Envelope {
	t.Helper()
	job := &store.Job{JobID: jobID, Tenant: r.tenant, Type: store.JobTypeProcessDocument, CreatedAt: time.Now()}
	if err := r.s.Jobs.Submit(ctx, job); err != nil {
		t.Fatalf("Jobs.Submit failed: %v", err)
	}
	payload, err := json.Marshal(processDocumentPayload{DocumentID: documentID})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return Envelope{JobID: jobID, Tenant: r.tenant, Type: string(store.JobTypeProcessDocument), Payload: payload, CreatedAt: time.Now()}
}

func TestProcessDocument_HappyPath(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	text := strings.Repeat("The quarterly report covers revenue and headcount. ", 40)
	r.seedDocument(t, ctx, "doc-1", text)
	env := r.seedJob(t, ctx, "job-1", "doc-1")

	if err := r.exec.processDocument(ctx, env); err != nil {
		t.Fatalf("processDocument failed: %v", err)
	}

	doc, err := r.s.Documents.Get(ctx, r.tenant, "doc-1")
	if err != nil || doc.Status != store.DocStatusCompleted {
		t.Fatalf("expected completed document, got %+v err=%v", doc, err)
	}

	job, err := r.s.Jobs.Get(ctx, r.tenant, "job-1")
	if err != nil || job.Status != store.JobStatusCompleted || job.Progress != 100 {
		t.Fatalf("expected completed job at 100%%, got %+v err=%v", job, err)
	}

	chunks, err := r.s.Chunks.ListByDocument(ctx, "doc-1")
	if err != nil || len(chunks) == 0 {
		t.Fatalf("expected chunks persisted, got %d err=%v", len(chunks), err)
	}

	matches, err := r.vecs.Search(ctx, vectorindex.Namespace(r.tenant), make([]float32, 8), len(chunks), nil)
	if err != nil || len(matches) != len(chunks) {
		t.Fatalf("expected %d vectors indexed, got %d err=%v", len(chunks), len(matches), err)
	}

	if r.fc.calls != 1 {
		t.Errorf("expected classifier invoked once, got %d", r.fc.calls)
	}
}

func TestProcessDocument_MissingBlobFailsJobAndDocument(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	doc := &store.Document{
		ID: "doc-2", Tenant: r.tenant, Filename: "doc-2.txt", Type: store.DocTypeTXT,
		StorageKey: "acme/doc-2/missing.txt", Uploader: "alice", UploadedAt: time.Now(), Status: store.DocStatusPending,
	}
	if err := r.s.Documents.Create(ctx, doc); err != nil {
		t.Fatalf("Documents.Create failed: %v", err)
	}
	env := r.seedJob(t, ctx, "job-2", "doc-2")

	if err := r.exec.processDocument(ctx, env); err == nil {
		t.Fatal("expected error for missing blob")
	}

	got, err := r.s.Documents.Get(ctx, r.tenant, "doc-2")
	if err != nil || got.Status != store.DocStatusFailed {
		t.Fatalf("expected failed document, got %+v err=%v", got, err)
	}
	job, err := r.s.Jobs.Get(ctx, r.tenant, "job-2")
	if err != nil || job.Status != store.JobStatusFailed {
		t.Fatalf("expected failed job, got %+v err=%v", job, err)
	}
}

func TestProcessDocument_ClassifyFailureStillCompletesDocument(t *testing.T) {
	r := newTestRig(t)
	r.fc.err = context.DeadlineExceeded
	ctx := context.Background()

	text := strings.Repeat("Annual budget review notes for the finance team. ", 20)
	r.seedDocument(t, ctx, "doc-3", text)
	env := r.seedJob(t, ctx, "job-3", "doc-3")

	if err := r.exec.processDocument(ctx, env); err != nil {
		t.Fatalf("processDocument should not fail when only classification fails: %v", err)
	}

	doc, err := r.s.Documents.Get(ctx, r.tenant, "doc-3")
	if err != nil || doc.Status != store.DocStatusCompleted {
		t.Fatalf("expected document still completed despite classify failure, got %+v err=%v", doc, err)
	}
}

// TestProcessDocument_BudgetExceededFailsImmediatelyWithoutRetry exercises
// the embed step with a budget-exceeded cause: the document and job must
// both land in their failed terminal state, and the returned error must
// keep KindBudgetExceeded rather than being reported as transient, since a
// transient-tagged error here would have Pool requeue the job against a
// budget that is still exceeded.
func TestProcessDocument_BudgetExceededFailsImmediatelyWithoutRetry(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	blobs := blobstore.NewMemoryStore()
	vecs := vectorindex.NewMemoryIndex()
	chunkr, err := chunker.New(200, 20)
	if err != nil {
		t.Fatalf("chunker.New failed: %v", err)
	}
	fc := &fakeClassifier{}
	queue := NewMemoryQueue()
	exec := NewExecutor(queue, s.Jobs, s.Documents, s.Chunks, blobs, &budgetExceededEmbedder{dim: 8}, vecs, chunkr, fc, s.Employees)

	r := &testRig{s: s, blobs: blobs, vecs: vecs, exec: exec, fc: fc, tenant: "acme"}
	ctx := context.Background()

	text := strings.Repeat("Quarterly spend report for the finance team. ", 20)
	r.seedDocument(t, ctx, "doc-budget", text)
	env := r.seedJob(t, ctx, "job-budget", "doc-budget")

	err = exec.processDocument(ctx, env)
	if err == nil {
		t.Fatal("expected an error from a budget-exceeded embed step")
	}
	if apperr.KindOf(err) != apperr.KindBudgetExceeded {
		t.Fatalf("expected KindBudgetExceeded preserved, got %v", apperr.KindOf(err))
	}
	if apperr.IsTransient(err) {
		t.Fatal("budget-exceeded error must not be reported as transient")
	}

	doc, err := s.Documents.Get(ctx, r.tenant, "doc-budget")
	if err != nil || doc.Status != store.DocStatusFailed {
		t.Fatalf("expected failed document, got %+v err=%v", doc, err)
	}
	job, err := s.Jobs.Get(ctx, r.tenant, "job-budget")
	if err != nil || job.Status != store.JobStatusFailed {
		t.Fatalf("expected failed job, got %+v err=%v", job, err)
	}
}

func TestProcessDocument_RetryIsIdempotent(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	text := strings.Repeat("Contract renewal terms for the legal department. ", 30)
	r.seedDocument(t, ctx, "doc-4", text)
	env := r.seedJob(t, ctx, "job-4", "doc-4")

	if err := r.exec.processDocument(ctx, env); err != nil {
		t.Fatalf("first processDocument failed: %v", err)
	}
	firstChunks, err := r.s.Chunks.ListByDocument(ctx, "doc-4")
	if err != nil {
		t.Fatalf("ListByDocument failed: %v", err)
	}

	env.Attempt = 1
	if err := r.exec.processDocument(ctx, env); err != nil {
		t.Fatalf("retry processDocument failed: %v", err)
	}
	secondChunks, err := r.s.Chunks.ListByDocument(ctx, "doc-4")
	if err != nil {
		t.Fatalf("ListByDocument failed: %v", err)
	}

	if len(secondChunks) != len(firstChunks) {
		t.Fatalf("expected retry to replace chunks without duplicating, got %d vs %d", len(secondChunks), len(firstChunks))
	}
}
