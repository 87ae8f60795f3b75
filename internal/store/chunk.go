// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Chunk is one unit of embedded, searchable text within a document.
// Chunks are created atomically after successful embedding and never
// mutated afterward.
type Chunk struct {
	ID           string
	Document     string
	Tenant       string
	Index        int
	Text         string
	TokenCount   int
	EmbeddingKey string
	Metadata     map[string]any
}

// ChunkStore manages the chunks table.
type ChunkStore struct {
	db *sql.DB
}

// NewChunkStore creates a new chunk store.
func NewChunkStore(db *sql.DB) (*ChunkStore, error) {
	store := &ChunkStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize chunks schema: %w", err)
	}
	return store, nil
}

func (s *ChunkStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		tenant TEXT NOT NULL,
		idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		embedding_key TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		UNIQUE(document, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document);
	CREATE INDEX IF NOT EXISTS idx_chunks_tenant ON chunks(tenant);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertBatch inserts every chunk for a document in one transaction,
// satisfying the "created atomically" clause in §3 and the dense,
// gap-free index invariant (callers are expected to pass chunks with
// indices [0,N)).
func (s *ChunkStore) InsertBatch(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document, tenant, idx, text, token_count, embedding_key, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Document, c.Tenant, c.Index, c.Text, c.TokenCount, c.EmbeddingKey, string(meta)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByDocument returns all chunks for a document, ordered by index.
func (s *ChunkStore) ListByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, tenant, idx, text, token_count, embedding_key, metadata FROM chunks WHERE document = ? ORDER BY idx ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetByIDs hydrates a set of chunks by id, used by the RAG engine to
// attach filename/chunk_text to a vector search hit.
func (s *ChunkStore) GetByIDs(ctx context.Context, ids []string) (map[string]*Chunk, error) {
	out := make(map[string]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, document, tenant, idx, text, token_count, embedding_key, metadata FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// DeleteByDocument removes every chunk belonging to a document, used by
// the pipeline's partial-retry cleanup and upsert-failure rollback. The
// document delete handler does not call it.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document = ?`, documentID)
	return err
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var meta string
	if err := row.Scan(&c.ID, &c.Document, &c.Tenant, &c.Index, &c.Text, &c.TokenCount, &c.EmbeddingKey, &meta); err != nil {
		return nil, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	return &c, nil
}
