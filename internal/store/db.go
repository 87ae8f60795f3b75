// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store bundles every table-scoped sub-store behind the single handle
// cmd/corpusd wires into the HTTP and worker layers. Each sub-store owns
// its own initSchema, mirroring the teacher's one-file-per-table layout.
type Store struct {
	db *sql.DB

	Documents       *DocumentStore
	Chunks          *ChunkStore
	Classifications *ClassificationStore
	Employees       *EmployeeStore
	Conversations   *ConversationStore
	Messages        *MessageStore
	Jobs            *JobStore
	Usage           *UsageStore
	Activity        *ActivityStore
	SystemMetadata  *SystemMetadataStore
}

// Open opens (creating if absent) the SQLite database at path and
// initializes every sub-store's schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite serializes writers regardless; one connection avoids
	// "database is locked" under the worker pool's concurrent writes.
	db.SetMaxOpenConns(1)

	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}

	var err error
	if s.Documents, err = NewDocumentStore(db); err != nil {
		return nil, err
	}
	if s.Chunks, err = NewChunkStore(db); err != nil {
		return nil, err
	}
	if s.Classifications, err = NewClassificationStore(db); err != nil {
		return nil, err
	}
	if s.Employees, err = NewEmployeeStore(db); err != nil {
		return nil, err
	}
	if s.Conversations, err = NewConversationStore(db); err != nil {
		return nil, err
	}
	if s.Messages, err = NewMessageStore(db); err != nil {
		return nil, err
	}
	if s.Jobs, err = NewJobStore(db); err != nil {
		return nil, err
	}
	if s.Usage, err = NewUsageStore(db); err != nil {
		return nil, err
	}
	if s.Activity, err = NewActivityStore(db); err != nil {
		return nil, err
	}
	if s.SystemMetadata, err = NewSystemMetadataStore(db); err != nil {
		return nil, err
	}

	return s, nil
}

// DB exposes the underlying handle for callers that query across tables
// directly (the health and stats handlers).
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }
