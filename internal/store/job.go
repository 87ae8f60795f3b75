// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// JobStatus tracks a queued task through the worker pool.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobType enumerates the task types the worker pool dispatches on.
type JobType string

const (
	JobTypeProcessDocument         JobType = "process_document"
	JobTypeReclassifyDocument      JobType = "reclassify_document"
	JobTypeGenerateEmployeeEmbed   JobType = "generate_employee_embedding"
	JobTypeSyncExternalSource      JobType = "sync_external_source"
	JobTypeConsolidateMemories     JobType = "consolidate_memories"
)

// Job is the durable row backing GET /jobs/{id}/status. Progress is
// written monotonically as the pipeline advances through its states.
type Job struct {
	JobID       string
	Tenant      string
	Type        JobType
	Status      JobStatus
	Progress    int
	Attempt     int
	Result      map[string]any
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// JobStore manages the jobs table.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a new job store.
func NewJobStore(db *sql.DB) (*JobStore, error) {
	store := &JobStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize jobs schema: %w", err)
	}
	return store, nil
}

func (s *JobStore) initSchema() error {
	const baseSchema = `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		progress INTEGER NOT NULL DEFAULT 0,
		attempt INTEGER NOT NULL DEFAULT 0,
		result TEXT NOT NULL DEFAULT '{}',
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_tenant_status ON jobs(tenant, status);
	`
	if _, err := s.db.Exec(baseSchema); err != nil {
		return fmt.Errorf("failed to create base table: %w", err)
	}

	// attempt was added after the initial cut of this table; migrate
	// existing installs the same way the teacher added last_seen_at to
	// api_keys.
	rows, err := s.db.Query("PRAGMA table_info(jobs)")
	if err != nil {
		return fmt.Errorf("failed to query table info: %w", err)
	}
	hasAttempt := false
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan table info: %w", err)
		}
		if name == "attempt" {
			hasAttempt = true
		}
	}
	rows.Close()

	if !hasAttempt {
		log.Printf("[MIGRATION] Adding attempt column to jobs table")
		if _, err := s.db.Exec("ALTER TABLE jobs ADD COLUMN attempt INTEGER NOT NULL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add attempt column: %w", err)
		}
	}

	return nil
}

// Submit persists a Job row in queued status, prior to enqueueing onto
// the broker.
func (s *JobStore) Submit(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, tenant, type, status, progress, attempt, result, error, created_at) VALUES (?, ?, ?, 'queued', 0, 0, '{}', '', ?)`,
		j.JobID, j.Tenant, string(j.Type), j.CreatedAt,
	)
	return err
}

// Get returns a job by id, scoped to tenant.
func (s *JobStore) Get(ctx context.Context, tenant, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, tenant, type, status, progress, attempt, result, error, created_at, started_at, completed_at
		 FROM jobs WHERE job_id = ? AND tenant = ?`, jobID, tenant)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

// MarkRunning transitions queued → running and stamps started_at.
func (s *JobStore) MarkRunning(ctx context.Context, jobID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', started_at = ?, attempt = attempt + 1 WHERE job_id = ?`, at, jobID)
	return err
}

// SetProgress writes a monotonic progress value at a pipeline state
// boundary (10, 30, 50, 70, 85, 95, 100).
func (s *JobStore) SetProgress(ctx context.Context, jobID string, progress int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ? WHERE job_id = ? AND progress < ?`, progress, jobID, progress)
	return err
}

// MarkCompleted transitions to the completed terminal state.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, result map[string]any, at time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'completed', progress = 100, result = ?, completed_at = ? WHERE job_id = ?`, string(payload), at, jobID)
	return err
}

// MarkFailed transitions to the failed terminal state.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, errMsg string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', error = ?, completed_at = ? WHERE job_id = ?`, errMsg, at, jobID)
	return err
}

// ResetForRetry returns a job to queued status, for the transient-error
// retry path.
func (s *JobStore) ResetForRetry(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = 'queued', started_at = NULL WHERE job_id = ?`, jobID)
	return err
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var typ, status, result string
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&j.JobID, &j.Tenant, &typ, &status, &j.Progress, &j.Attempt, &result, &j.Error, &j.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	j.Type = JobType(typ)
	j.Status = JobStatus(status)
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	if result != "" {
		if err := json.Unmarshal([]byte(result), &j.Result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	return &j, nil
}
