// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/logger"
)

// maxAttempts bounds the at-least-once retry budget §4.7 assigns
// transient errors: a task is requeued up to maxAttempts times, and one
// still failing on its fourth run is reclassified as permanent.
const maxAttempts = 3

// HandlerFunc processes one envelope. It should return an error
// tagged via apperr when the caller needs retry/fail routing to
// branch on it; an untagged error is treated as permanent.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Dispatch maps a job's Type string to the handler that processes it.
type Dispatch map[string]HandlerFunc

// JobFailer marks a job row terminally failed. Pool's permanent-failure
// branch calls it so a job reaches the failed status §4.7/§7 require
// even when its handler never got the chance to call MarkFailed itself
// (an untagged error, or a transient error that just exhausted
// maxAttempts).
type JobFailer interface {
	MarkFailed(ctx context.Context, jobID string, reason string, at time.Time) error
}

// Pool runs a fixed-size group of workers draining q and routing each
// envelope through dispatch, generalizing the teacher's
// StartWorkers/workerLoop from a single recalc_issue_priority handler
// to a type-keyed dispatch table.
type Pool struct {
	queue       Queue
	dispatch    Dispatch
	workerCount int
	jobs        JobFailer
}

// NewPool builds a Pool. dispatch must have an entry for every Type
// the caller will ever enqueue; an unrecognized type fails the job
// permanently rather than panicking. jobs is used to mark a job failed
// once Pool itself decides no more retries will happen; it may be nil
// in tests that don't care about terminal job state.
func NewPool(queue Queue, dispatch Dispatch, workerCount int, jobs JobFailer) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{queue: queue, dispatch: dispatch, workerCount: workerCount, jobs: jobs}
}

// Run starts workerCount goroutines and blocks until ctx is cancelled
// and every worker has returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		workerID := i + 1
		go func() {
			defer wg.Done()
			p.loop(ctx, workerID)
		}()
	}
	wg.Wait()
	logger.Printf("jobs: all %d workers stopped", p.workerCount)
}

func (p *Pool) loop(ctx context.Context, workerID int) {
	logger.Printf("jobs: worker %d started", workerID)
	defer logger.Printf("jobs: worker %d stopped", workerID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("jobs: worker %d dequeue error: %v", workerID, err)
			continue
		}

		p.handle(ctx, workerID, env)
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, env Envelope) {
	handler, ok := p.dispatch[env.Type]
	if !ok {
		logger.Printf("jobs: worker %d: no handler registered for type %q, job_id=%s", workerID, env.Type, env.JobID)
		p.markFailed(workerID, env, fmt.Sprintf("no handler registered for type %q", env.Type))
		return
	}

	err := handler(ctx, env)
	if err == nil {
		logger.Printf("jobs: worker %d: completed job_id=%s type=%s", workerID, env.JobID, env.Type)
		return
	}

	if apperr.IsTransient(err) && env.Attempt < maxAttempts {
		env.Attempt++
		backoff := time.Duration(env.Attempt) * time.Second
		logger.Printf("jobs: worker %d: transient error on job_id=%s (attempt %d/%d), requeueing after %s: %v",
			workerID, env.JobID, env.Attempt, maxAttempts, backoff, err)
		time.AfterFunc(backoff, func() {
			requeueCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := p.queue.Enqueue(requeueCtx, env); err != nil {
				logger.Printf("jobs: worker %d: failed to requeue job_id=%s: %v", workerID, env.JobID, err)
			}
		})
		return
	}

	logger.Printf("jobs: worker %d: permanent failure on job_id=%s: %v", workerID, env.JobID, err)
	p.markFailed(workerID, env, err.Error())
}

// markFailed marks env's job row terminally failed. Handlers already
// do this themselves for errors they recognize as immediately
// terminal (see failDocument/fail in executor.go); this is the
// backstop for everything else reaching this branch, most notably a
// transient error that has exhausted maxAttempts, so no Job row is
// ever left stuck in running/queued. MarkFailed on an already-failed
// job is a harmless overwrite with the same status.
func (p *Pool) markFailed(workerID int, env Envelope, reason string) {
	if p.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.jobs.MarkFailed(ctx, env.JobID, reason, time.Now()); err != nil {
		logger.Printf("jobs: worker %d: failed to mark job_id=%s failed: %v", workerID, env.JobID, err)
	}
}
