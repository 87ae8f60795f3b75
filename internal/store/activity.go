// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ActivityAction enumerates the operations the activity log records.
type ActivityAction string

const (
	ActivityUpload      ActivityAction = "UPLOAD"
	ActivitySearch      ActivityAction = "SEARCH"
	ActivityChat        ActivityAction = "CHAT"
	ActivityReclassify  ActivityAction = "RECLASSIFY"
	ActivityDelete      ActivityAction = "DELETE"
)

// ActivityEntry is one row of the append-only activity log.
type ActivityEntry struct {
	ID        int64
	Timestamp time.Time
	Tenant    string
	Actor     string
	Action    ActivityAction
	Details   string
}

// ActivityStore manages the activity_log table, a per-tenant audit
// trail of ingestion and retrieval operations.
type ActivityStore struct {
	db *sql.DB
}

// NewActivityStore creates a new activity log store.
func NewActivityStore(db *sql.DB) (*ActivityStore, error) {
	store := &ActivityStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize activity_log schema: %w", err)
	}
	return store, nil
}

func (s *ActivityStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		tenant TEXT NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activity_log_tenant ON activity_log(tenant, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_log_action ON activity_log(action);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Log records a new activity entry.
func (s *ActivityStore) Log(tenant, actor string, action ActivityAction, details string) error {
	_, err := s.db.Exec(
		"INSERT INTO activity_log (timestamp, tenant, actor, action, details) VALUES (?, ?, ?, ?, ?)",
		time.Now(), tenant, actor, string(action), details,
	)
	return err
}

// Recent returns the last N entries for a tenant, newest first,
// optionally filtered by action.
func (s *ActivityStore) Recent(tenant string, limit int, actionFilter string) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if actionFilter != "" {
		rows, err = s.db.Query(
			"SELECT id, timestamp, tenant, actor, action, details FROM activity_log WHERE tenant = ? AND action = ? ORDER BY timestamp DESC LIMIT ?",
			tenant, actionFilter, limit,
		)
	} else {
		rows, err = s.db.Query(
			"SELECT id, timestamp, tenant, actor, action, details FROM activity_log WHERE tenant = ? ORDER BY timestamp DESC LIMIT ?",
			tenant, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Tenant, &e.Actor, &action, &e.Details); err != nil {
			return nil, err
		}
		e.Action = ActivityAction(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
