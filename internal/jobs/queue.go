// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is the wire format carried on the broker: which tenant and
// job owns this task, plus a fresh JSON payload per task type. Attempt
// is incremented by the pool, not the queue, each time the pool
// requeues the envelope after a transient error.
type Envelope struct {
	JobID     string          `json:"job_id"`
	Tenant    string          `json:"tenant"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue defines the broker contract: a durable FIFO carrying Envelopes.
type Queue interface {
	// Enqueue adds an envelope to the queue.
	Enqueue(ctx context.Context, env Envelope) error

	// Dequeue blocks until an envelope is available, then returns it.
	// Returns an error if the context is cancelled or the operation fails.
	Dequeue(ctx context.Context) (Envelope, error)
}
