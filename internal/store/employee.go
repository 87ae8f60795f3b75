// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EmployeeEmbedding is the one-per-(user,tenant) record pointing at the
// person's vector in the tenant's namespace.
type EmployeeEmbedding struct {
	User            string
	Tenant          string
	VectorID        string
	ProfileSnapshot map[string]any
	LastUpdated     time.Time
}

// EmployeeStore manages the employee_embeddings table.
type EmployeeStore struct {
	db *sql.DB
}

// NewEmployeeStore creates a new employee embedding store.
func NewEmployeeStore(db *sql.DB) (*EmployeeStore, error) {
	store := &EmployeeStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize employee_embeddings schema: %w", err)
	}
	return store, nil
}

func (s *EmployeeStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS employee_embeddings (
		user TEXT NOT NULL,
		tenant TEXT NOT NULL,
		vector_id TEXT NOT NULL,
		profile_snapshot TEXT NOT NULL DEFAULT '{}',
		last_updated DATETIME NOT NULL,
		PRIMARY KEY (user, tenant)
	);

	CREATE INDEX IF NOT EXISTS idx_employee_embeddings_tenant ON employee_embeddings(tenant);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert replaces the embedding record for a (user,tenant) pair.
func (s *EmployeeStore) Upsert(ctx context.Context, e *EmployeeEmbedding) error {
	snapshot, err := json.Marshal(e.ProfileSnapshot)
	if err != nil {
		return fmt.Errorf("marshal profile snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO employee_embeddings (user, tenant, vector_id, profile_snapshot, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user, tenant) DO UPDATE SET
		   vector_id=excluded.vector_id, profile_snapshot=excluded.profile_snapshot, last_updated=excluded.last_updated`,
		e.User, e.Tenant, e.VectorID, string(snapshot), e.LastUpdated,
	)
	return err
}

// Get returns the embedding record for a user in a tenant, or nil.
func (s *EmployeeStore) Get(ctx context.Context, tenant, user string) (*EmployeeEmbedding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user, tenant, vector_id, profile_snapshot, last_updated FROM employee_embeddings WHERE tenant = ? AND user = ?`, tenant, user)
	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// List returns every employee embedding record for a tenant, used to
// seed the DataQueryAgent's people-search candidate set.
func (s *EmployeeStore) List(ctx context.Context, tenant string) ([]*EmployeeEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user, tenant, vector_id, profile_snapshot, last_updated FROM employee_embeddings WHERE tenant = ?`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EmployeeEmbedding
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row rowScanner) (*EmployeeEmbedding, error) {
	var e EmployeeEmbedding
	var snapshot string
	if err := row.Scan(&e.User, &e.Tenant, &e.VectorID, &snapshot, &e.LastUpdated); err != nil {
		return nil, err
	}
	if snapshot != "" {
		if err := json.Unmarshal([]byte(snapshot), &e.ProfileSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal profile snapshot: %w", err)
		}
	}
	return &e, nil
}
