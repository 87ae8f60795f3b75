// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/blobstore"
	"github.com/northbound/corpus/internal/chunker"
	"github.com/northbound/corpus/internal/embeddings"
	"github.com/northbound/corpus/internal/extract"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/store"
	"github.com/northbound/corpus/internal/vectorindex"
)

// Classifier is the narrow interface Executor needs from
// internal/classifier, so tests can substitute a fake rather than make
// live Anthropic calls. *classifier.Classifier satisfies this.
type Classifier interface {
	Classify(ctx context.Context, tenant, documentID, filename string, chunkTexts []string) (*store.Classification, error)
}

// Progress boundaries for the process_document state machine (§4.7.1).
const (
	progressDownload = 10
	progressExtract  = 30
	progressChunk    = 50
	progressEmbed    = 70
	progressUpsert   = 85
	progressClassify = 95
	progressDone     = 100
)

// Executor owns every dependency the job handlers need and exposes the
// Dispatch table the Pool runs against, plus Submit for callers
// (the HTTP layer) enqueueing new work.
type Executor struct {
	queue     Queue
	jobStore  *store.JobStore
	docs      *store.DocumentStore
	chunks    *store.ChunkStore
	blobs     blobstore.Store
	embedder  embeddings.Embedder
	vectors   vectorindex.Index
	chunkr    *chunker.Chunker
	classify  Classifier
	employees *store.EmployeeStore
}

// NewExecutor wires an Executor from already-constructed components.
func NewExecutor(
	queue Queue,
	jobStore *store.JobStore,
	docs *store.DocumentStore,
	chunks *store.ChunkStore,
	blobs blobstore.Store,
	embedder embeddings.Embedder,
	vectors vectorindex.Index,
	chunkr *chunker.Chunker,
	classify Classifier,
	employees *store.EmployeeStore,
) *Executor {
	return &Executor{
		queue:     queue,
		jobStore:  jobStore,
		docs:      docs,
		chunks:    chunks,
		blobs:     blobs,
		embedder:  embedder,
		vectors:   vectors,
		chunkr:    chunkr,
		classify:  classify,
		employees: employees,
	}
}

// Dispatch returns the Type → HandlerFunc table for Pool.
func (e *Executor) Dispatch() Dispatch {
	return Dispatch{
		string(store.JobTypeProcessDocument):       e.processDocument,
		string(store.JobTypeReclassifyDocument):    e.reclassifyDocument,
		string(store.JobTypeGenerateEmployeeEmbed): e.generateEmployeeEmbedding,
		string(store.JobTypeSyncExternalSource):    e.syncExternalSource,
		string(store.JobTypeConsolidateMemories):   e.consolidateMemories,
	}
}

// processDocumentPayload is the process_document and
// reclassify_document task argument: the one document it operates on.
type processDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

// Submit persists a queued Job row and enqueues its envelope,
// implementing the `submit(type, args) → job_id` contract of §4.7.
func (e *Executor) Submit(ctx context.Context, tenant string, jobType store.JobType, documentID string) (string, error) {
	payload, err := json.Marshal(processDocumentPayload{DocumentID: documentID})
	if err != nil {
		return "", fmt.Errorf("jobs: marshal payload: %w", err)
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &store.Job{JobID: jobID, Tenant: tenant, Type: jobType, CreatedAt: now}
	if err := e.jobStore.Submit(ctx, job); err != nil {
		return "", fmt.Errorf("jobs: submit job row: %w", err)
	}

	env := Envelope{JobID: jobID, Tenant: tenant, Type: string(jobType), Payload: payload, CreatedAt: now}
	if err := e.queue.Enqueue(ctx, env); err != nil {
		return "", fmt.Errorf("jobs: enqueue: %w", err)
	}
	return jobID, nil
}

// processDocument runs the full queued→download→extract→chunk→embed→
// upsert→classify→done pipeline for one document (§4.7.1). Idempotent:
// any chunks and vectors from a prior partial run are deleted before
// this run writes its own, so at-least-once redelivery never leaves
// duplicate or stale data behind.
func (e *Executor) processDocument(ctx context.Context, env Envelope) error {
	var payload processDocumentPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return apperr.Wrap(apperr.KindPermanent, "unmarshal process_document payload", err)
	}

	if err := e.jobStore.MarkRunning(ctx, env.JobID, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark job running", err)
	}

	doc, err := e.docs.Get(ctx, env.Tenant, payload.DocumentID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "load document", err)
	}
	if doc == nil {
		return e.fail(ctx, env.JobID, apperr.New(apperr.KindNotFound, fmt.Sprintf("document %s not found", payload.DocumentID)))
	}

	namespace := vectorindex.Namespace(env.Tenant)
	if err := e.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "clear prior chunks", err)
	}
	if err := e.vectors.DeleteDocument(ctx, namespace, doc.ID); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "clear prior vectors", err)
	}

	if err := e.docs.SetStatus(ctx, env.Tenant, doc.ID, store.DocStatusProcessing); err != nil {
		logger.Printf("jobs: document %s: failed to mark processing: %v", doc.ID, err)
	}

	// download
	data, err := e.blobs.Download(ctx, doc.StorageKey)
	if err != nil {
		if err == blobstore.ErrNotFound {
			return e.failDocument(ctx, env, doc, apperr.New(apperr.KindNotFound, "document blob missing from storage"))
		}
		return apperr.Wrap(apperr.KindTransientUpstream, "download document blob", err)
	}
	if err := e.jobStore.SetProgress(ctx, env.JobID, progressDownload); err != nil {
		logger.Printf("jobs: job %s: failed to set progress: %v", env.JobID, err)
	}

	// extract
	result, _, err := extract.Dispatch(ctx, doc.Filename, data)
	if err != nil {
		return e.failDocument(ctx, env, doc, err)
	}
	if err := e.jobStore.SetProgress(ctx, env.JobID, progressExtract); err != nil {
		logger.Printf("jobs: job %s: failed to set progress: %v", env.JobID, err)
	}

	// chunk
	textChunks, err := e.chunkr.Chunk(result.Text, result.Metadata)
	if err != nil {
		return e.failDocument(ctx, env, doc, apperr.Wrap(apperr.KindPermanent, "chunk document", err))
	}
	if len(textChunks) == 0 {
		return e.failDocument(ctx, env, doc, apperr.New(apperr.KindEmptyDocument, "document produced no chunks"))
	}
	if err := e.jobStore.SetProgress(ctx, env.JobID, progressChunk); err != nil {
		logger.Printf("jobs: job %s: failed to set progress: %v", env.JobID, err)
	}

	// embed
	texts := make([]string, len(textChunks))
	for i, c := range textChunks {
		texts[i] = c.Text
	}
	vectors, err := e.embedder.EmbedBatch(ctx, env.Tenant, texts)
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindBudgetExceeded {
			return e.failDocument(ctx, env, doc, err)
		}
		return apperr.Wrap(apperr.KindTransientUpstream, "embed chunks", err)
	}
	if err := e.jobStore.SetProgress(ctx, env.JobID, progressEmbed); err != nil {
		logger.Printf("jobs: job %s: failed to set progress: %v", env.JobID, err)
	}

	// upsert: store.Chunk rows first (the durable record of what was
	// embedded), then the vectors that point back at them.
	chunkRows := make([]*store.Chunk, len(textChunks))
	items := make([]vectorindex.Item, len(textChunks))
	for i, c := range textChunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", doc.ID, c.Index)
		meta := make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			meta[k] = v
		}
		chunkRows[i] = &store.Chunk{
			ID:           chunkID,
			Document:     doc.ID,
			Tenant:       env.Tenant,
			Index:        c.Index,
			Text:         c.Text,
			TokenCount:   c.TokenCount,
			EmbeddingKey: chunkID,
			Metadata:     meta,
		}
		items[i] = vectorindex.Item{
			ID:         chunkID,
			DocumentID: doc.ID,
			Vector:     vectors[i],
			Metadata:   vectorindex.Sanitize(map[string]any{"filename": doc.Filename, "chunk_index": c.Index}),
		}
	}
	if err := e.chunks.InsertBatch(ctx, chunkRows); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "insert chunks", err)
	}
	if err := e.vectors.Upsert(ctx, namespace, items); err != nil {
		// Roll back this attempt's partial writes before reporting the failure.
		if delErr := e.chunks.DeleteByDocument(ctx, doc.ID); delErr != nil {
			logger.Printf("jobs: document %s: failed to roll back chunks: %v", doc.ID, delErr)
		}
		if delErr := e.vectors.DeleteDocument(ctx, namespace, doc.ID); delErr != nil {
			logger.Printf("jobs: document %s: failed to roll back vectors: %v", doc.ID, delErr)
		}
		return apperr.Wrap(apperr.KindTransientUpstream, "upsert vectors", err)
	}
	if err := e.jobStore.SetProgress(ctx, env.JobID, progressUpsert); err != nil {
		logger.Printf("jobs: job %s: failed to set progress: %v", env.JobID, err)
	}

	// classify: failure here never fails the document (§4.7.1); the
	// classifier's own fallback path already absorbs LLM failures, so
	// an error surfacing here means the classification couldn't even
	// be persisted, which is logged and skipped rather than failing
	// the whole pipeline.
	if _, err := e.classify.Classify(ctx, env.Tenant, doc.ID, doc.Filename, texts); err != nil {
		logger.Printf("jobs: document %s: classification failed, completing without it: %v", doc.ID, err)
	}
	if err := e.jobStore.SetProgress(ctx, env.JobID, progressClassify); err != nil {
		logger.Printf("jobs: job %s: failed to set progress: %v", env.JobID, err)
	}

	if err := e.docs.SetStatus(ctx, env.Tenant, doc.ID, store.DocStatusCompleted); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark document completed", err)
	}
	if err := e.jobStore.MarkCompleted(ctx, env.JobID, map[string]any{"chunks": len(textChunks)}, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark job completed", err)
	}
	return nil
}

// reclassifyDocument re-runs only the classification step against a
// document's already-stored chunks, for the reclassify_document task
// type (e.g. triggered after an organizational-context change).
func (e *Executor) reclassifyDocument(ctx context.Context, env Envelope) error {
	var payload processDocumentPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return apperr.Wrap(apperr.KindPermanent, "unmarshal reclassify_document payload", err)
	}

	if err := e.jobStore.MarkRunning(ctx, env.JobID, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark job running", err)
	}

	doc, err := e.docs.Get(ctx, env.Tenant, payload.DocumentID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "load document", err)
	}
	if doc == nil {
		return e.fail(ctx, env.JobID, apperr.New(apperr.KindNotFound, fmt.Sprintf("document %s not found", payload.DocumentID)))
	}

	existing, err := e.chunks.ListByDocument(ctx, doc.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "load existing chunks", err)
	}
	texts := make([]string, len(existing))
	for i, c := range existing {
		texts[i] = c.Text
	}

	if _, err := e.classify.Classify(ctx, env.Tenant, doc.ID, doc.Filename, texts); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "reclassify document", err)
	}

	return e.jobStore.MarkCompleted(ctx, env.JobID, map[string]any{"reclassified": true}, time.Now())
}

// employeeEmbeddingPayload is the generate_employee_embedding task
// argument: the person and the profile text to embed.
type employeeEmbeddingPayload struct {
	UserID      string `json:"user_id"`
	ProfileText string `json:"profile_text"`
}

// SubmitEmployeeEmbedding enqueues a generate_employee_embedding job
// for a single user, implementing the `POST /embeddings/generate`
// contract of §6.1.
func (e *Executor) SubmitEmployeeEmbedding(ctx context.Context, tenant, userID, profileText string) (string, error) {
	payload, err := json.Marshal(employeeEmbeddingPayload{UserID: userID, ProfileText: profileText})
	if err != nil {
		return "", fmt.Errorf("jobs: marshal employee embedding payload: %w", err)
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &store.Job{JobID: jobID, Tenant: tenant, Type: store.JobTypeGenerateEmployeeEmbed, CreatedAt: now}
	if err := e.jobStore.Submit(ctx, job); err != nil {
		return "", fmt.Errorf("jobs: submit job row: %w", err)
	}

	env := Envelope{JobID: jobID, Tenant: tenant, Type: string(store.JobTypeGenerateEmployeeEmbed), Payload: payload, CreatedAt: now}
	if err := e.queue.Enqueue(ctx, env); err != nil {
		return "", fmt.Errorf("jobs: enqueue: %w", err)
	}
	return jobID, nil
}

// SubmitCronJob enqueues a sync_external_source or consolidate_memories
// run, both of which carry no per-job argument beyond the tenant they
// scan.
func (e *Executor) SubmitCronJob(ctx context.Context, tenant string, jobType store.JobType) (string, error) {
	jobID := uuid.New().String()
	now := time.Now()
	job := &store.Job{JobID: jobID, Tenant: tenant, Type: jobType, CreatedAt: now}
	if err := e.jobStore.Submit(ctx, job); err != nil {
		return "", fmt.Errorf("jobs: submit job row: %w", err)
	}

	env := Envelope{JobID: jobID, Tenant: tenant, Type: string(jobType), CreatedAt: now}
	if err := e.queue.Enqueue(ctx, env); err != nil {
		return "", fmt.Errorf("jobs: enqueue: %w", err)
	}
	return jobID, nil
}

// generateEmployeeEmbedding embeds a person's profile text and upserts
// it into the tenant's employee namespace under the employee_{U}
// vector-id convention (spec.md's Vector definition), then records the
// pointer row so DataQueryAgent's people search can hydrate it back to
// a name (§4.10).
func (e *Executor) generateEmployeeEmbedding(ctx context.Context, env Envelope) error {
	var payload employeeEmbeddingPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return apperr.Wrap(apperr.KindPermanent, "unmarshal generate_employee_embedding payload", err)
	}

	if err := e.jobStore.MarkRunning(ctx, env.JobID, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark job running", err)
	}

	vector, err := e.embedder.EmbedText(ctx, env.Tenant, payload.ProfileText)
	if err != nil {
		return apperr.Wrap(apperr.KindOf(err), "embed employee profile", err)
	}

	vectorID := fmt.Sprintf("employee_%s", payload.UserID)
	item := vectorindex.Item{ID: vectorID, Vector: vector, Metadata: vectorindex.Sanitize(map[string]any{"user": payload.UserID})}
	if err := e.vectors.Upsert(ctx, vectorindex.EmployeeNamespace(env.Tenant), []vectorindex.Item{item}); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "upsert employee vector", err)
	}

	now := time.Now()
	record := &store.EmployeeEmbedding{
		User:            payload.UserID,
		Tenant:          env.Tenant,
		VectorID:        vectorID,
		ProfileSnapshot: map[string]any{"profile_text": payload.ProfileText},
		LastUpdated:     now,
	}
	if err := e.employees.Upsert(ctx, record); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "persist employee embedding record", err)
	}

	return e.jobStore.MarkCompleted(ctx, env.JobID, map[string]any{"user_id": payload.UserID}, now)
}

// syncExternalSource is a minimal placeholder for the cron-triggered
// external-source refresh named in spec.md's task type list; nothing
// in SPEC_FULL.md or original_source/ specifies a concrete connector
// to sync against, so this records the run as completed without
// performing any fetch. A future connector implementation replaces
// this body; the dispatch table entry and job bookkeeping are already
// in place for it.
func (e *Executor) syncExternalSource(ctx context.Context, env Envelope) error {
	if err := e.jobStore.MarkRunning(ctx, env.JobID, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark job running", err)
	}
	logger.Printf("jobs: sync_external_source has no configured connector for tenant %s, marking done", env.Tenant)
	return e.jobStore.MarkCompleted(ctx, env.JobID, map[string]any{"sources_synced": 0}, time.Now())
}

// consolidateMemories is a minimal placeholder for the nightly memory
// consolidation cron named in spec.md's task type list; same scoping
// rationale as syncExternalSource.
func (e *Executor) consolidateMemories(ctx context.Context, env Envelope) error {
	if err := e.jobStore.MarkRunning(ctx, env.JobID, time.Now()); err != nil {
		return apperr.Wrap(apperr.KindTransientUpstream, "mark job running", err)
	}
	logger.Printf("jobs: consolidate_memories has no configured memory store for tenant %s, marking done", env.Tenant)
	return e.jobStore.MarkCompleted(ctx, env.JobID, map[string]any{"consolidated": 0}, time.Now())
}

// failDocument marks both the document and the job failed. It deletes
// no chunks or vectors: every call site comes before the chunk insert,
// and data from earlier runs was already cleared at the start of
// processDocument.
func (e *Executor) failDocument(ctx context.Context, env Envelope, doc *store.Document, cause error) error {
	if err := e.docs.SetStatus(ctx, env.Tenant, doc.ID, store.DocStatusFailed); err != nil {
		logger.Printf("jobs: document %s: failed to mark failed: %v", doc.ID, err)
	}
	return e.fail(ctx, env.JobID, cause)
}

func (e *Executor) fail(ctx context.Context, jobID string, cause error) error {
	if err := e.jobStore.MarkFailed(ctx, jobID, cause.Error(), time.Now()); err != nil {
		logger.Printf("jobs: job %s: failed to mark failed: %v", jobID, err)
	}
	return cause
}
