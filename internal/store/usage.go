// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UsageCounter is the daily per-tenant aggregate the Embedder and
// generative LLM calls accumulate into.
type UsageCounter struct {
	Tenant        string
	Date          string // YYYY-MM-DD
	Tokens        int64
	APICalls      int64
	EstimatedCost float64
}

// UsageStore manages the usage_counters table.
type UsageStore struct {
	db *sql.DB
}

// NewUsageStore creates a new usage counter store.
func NewUsageStore(db *sql.DB) (*UsageStore, error) {
	store := &UsageStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize usage_counters schema: %w", err)
	}
	return store, nil
}

func (s *UsageStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS usage_counters (
		tenant TEXT NOT NULL,
		date TEXT NOT NULL,
		tokens INTEGER NOT NULL DEFAULT 0,
		api_calls INTEGER NOT NULL DEFAULT 0,
		estimated_cost REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant, date)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record adds to a tenant's daily counters, creating the row if absent.
func (s *UsageStore) Record(ctx context.Context, tenant, date string, tokens, apiCalls int64, cost float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_counters (tenant, date, tokens, api_calls, estimated_cost) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant, date) DO UPDATE SET
		   tokens = tokens + excluded.tokens,
		   api_calls = api_calls + excluded.api_calls,
		   estimated_cost = estimated_cost + excluded.estimated_cost`,
		tenant, date, tokens, apiCalls, cost,
	)
	return err
}

// MonthToDateCost sums estimated_cost for every day in the calendar
// month containing `day`, used by the Embedder's monthly budget gate.
func (s *UsageStore) MonthToDateCost(ctx context.Context, tenant string, day time.Time) (float64, error) {
	monthPrefix := day.Format("2006-01")
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(estimated_cost) FROM usage_counters WHERE tenant = ? AND date LIKE ?`,
		tenant, monthPrefix+"%",
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// Get returns the counter row for a tenant and date, or a zero-valued
// counter if none has been recorded yet.
func (s *UsageStore) Get(ctx context.Context, tenant, date string) (*UsageCounter, error) {
	var u UsageCounter
	u.Tenant, u.Date = tenant, date
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens, api_calls, estimated_cost FROM usage_counters WHERE tenant = ? AND date = ?`, tenant, date,
	).Scan(&u.Tokens, &u.APICalls, &u.EstimatedCost)
	if err == sql.ErrNoRows {
		return &u, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
