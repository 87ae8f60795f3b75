// Copyright (c) 2025 Northbound System
package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/blobstore"
	"github.com/northbound/corpus/internal/chunker"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// transientErrorEmbedder always fails with a transient-tagged error, to
// exercise generateEmployeeEmbedding's failure path without it reaching
// into the job store itself.
type transientErrorEmbedder struct{ dim int }

func (e *transientErrorEmbedder) Dimension() int { return e.dim }
func (e *transientErrorEmbedder) EmbedText(ctx context.Context, tenant, text string) ([]float32, error) {
	return nil, apperr.New(apperr.KindTransientUpstream, "simulated upstream outage")
}
func (e *transientErrorEmbedder) EmbedBatch(ctx context.Context, tenant string, texts []string) ([][]float32, error) {
	return nil, apperr.New(apperr.KindTransientUpstream, "simulated upstream outage")
}

func (r *testRig) seedEmployeeJob(t *testing.T, ctx context.Context, jobID, userID, profileText string) Envelope {
	t.Helper()
	job := &store.Job{JobID: jobID, Tenant: r.tenant, Type: store.JobTypeGenerateEmployeeEmbed, CreatedAt: time.Now()}
	if err := r.s.Jobs.Submit(ctx, job); err != nil {
		t.Fatalf("Jobs.Submit failed: %v", err)
	}
	payload, err := json.Marshal(employeeEmbeddingPayload{UserID: userID, ProfileText: profileText})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return Envelope{JobID: jobID, Tenant: r.tenant, Type: string(store.JobTypeGenerateEmployeeEmbed), Payload: payload, CreatedAt: time.Now()}
}

func TestGenerateEmployeeEmbedding_UpsertsVectorAndRecord(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	env := r.seedEmployeeJob(t, ctx, "job-emp-1", "alice", "Alice leads the platform team and owns billing.")

	if err := r.exec.generateEmployeeEmbedding(ctx, env); err != nil {
		t.Fatalf("generateEmployeeEmbedding failed: %v", err)
	}

	job, err := r.s.Jobs.Get(ctx, r.tenant, "job-emp-1")
	if err != nil || job.Status != store.JobStatusCompleted {
		t.Fatalf("expected completed job, got %+v err=%v", job, err)
	}

	rec, err := r.s.Employees.Get(ctx, r.tenant, "alice")
	if err != nil || rec == nil || rec.VectorID != "employee_alice" {
		t.Fatalf("expected employee record with vector employee_alice, got %+v err=%v", rec, err)
	}

	matches, err := r.vecs.Search(ctx, vectorindex.EmployeeNamespace(r.tenant), make([]float32, 8), 1, nil)
	if err != nil || len(matches) != 1 || matches[0].ID != "employee_alice" {
		t.Fatalf("expected employee vector indexed, got %+v err=%v", matches, err)
	}
}

// TestGenerateEmployeeEmbedding_TransientFailureLeavesJobForPoolToRetry
// asserts that a transient embed failure does not itself mark the job
// failed: Pool owns the retry/terminal-failure decision (pool.go's
// markFailed), not the handler, so the job row must still read running
// right after the handler returns its transient-tagged error.
func TestGenerateEmployeeEmbedding_TransientFailureLeavesJobForPoolToRetry(t *testing.T) {
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
	exec := NewExecutor(queue, s.Jobs, s.Documents, s.Chunks, blobs, &transientErrorEmbedder{dim: 8}, vecs, chunkr, fc, s.Employees)

	r := &testRig{s: s, blobs: blobs, vecs: vecs, exec: exec, fc: fc, tenant: "acme"}
	ctx := context.Background()
	env := r.seedEmployeeJob(t, ctx, "job-emp-2", "carol", "Carol runs the data platform team.")

	err = exec.generateEmployeeEmbedding(ctx, env)
	if err == nil {
		t.Fatal("expected an error from the transient embedder")
	}
	if !apperr.IsTransient(err) {
		t.Fatalf("expected transient error preserved, got kind %v", apperr.KindOf(err))
	}

	job, err := s.Jobs.Get(ctx, r.tenant, "job-emp-2")
	if err != nil {
		t.Fatalf("Jobs.Get failed: %v", err)
	}
	if job.Status == store.JobStatusFailed {
		t.Fatal("handler must not mark the job failed on a transient error; that is Pool's call after retries are exhausted")
	}
}

func TestSubmitEmployeeEmbedding_EnqueuesJob(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	jobID, err := r.exec.SubmitEmployeeEmbedding(ctx, r.tenant, "bob", "Bob is the support lead.")
	if err != nil {
		t.Fatalf("SubmitEmployeeEmbedding failed: %v", err)
	}

	job, err := r.s.Jobs.Get(ctx, r.tenant, jobID)
	if err != nil || job == nil || job.Type != store.JobTypeGenerateEmployeeEmbed {
		t.Fatalf("expected submitted job row, got %+v err=%v", job, err)
	}
}

func TestSyncExternalSourceAndConsolidateMemories_CompleteWithoutError(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	for _, tc := range []struct {
		jobType store.JobType
		run     func(context.Context, Envelope) error
	}{
		{store.JobTypeSyncExternalSource, r.exec.syncExternalSource},
		{store.JobTypeConsolidateMemories, r.exec.consolidateMemories},
	} {
		jobID, err := r.exec.SubmitCronJob(ctx, r.tenant, tc.jobType)
		if err != nil {
			t.Fatalf("SubmitCronJob(%s) failed: %v", tc.jobType, err)
		}
		env := Envelope{JobID: jobID, Tenant: r.tenant, Type: string(tc.jobType), CreatedAt: time.Now()}
		if err := tc.run(ctx, env); err != nil {
			t.Fatalf("%s run failed: %v", tc.jobType, err)
		}
		job, err := r.s.Jobs.Get(ctx, r.tenant, jobID)
		if err != nil || job.Status != store.JobStatusCompleted {
			t.Fatalf("expected %s completed, got %+v err=%v", tc.jobType, job, err)
		}
	}
}
