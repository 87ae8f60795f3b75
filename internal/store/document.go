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

// DocumentType enumerates the extractor dispatch types. Supplemental
// formats (xlsx, html, eml) normalize to one of these at ingest time.
type DocumentType string

const (
	DocTypePDF DocumentType = "pdf"
	DocTypeDOCX DocumentType = "docx"
	DocTypeTXT  DocumentType = "txt"
	DocTypeMD   DocumentType = "md"
	DocTypeCSV  DocumentType = "csv"
)

// DocumentStatus tracks a document through the ingestion pipeline.
type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "pending"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// Document is the durable record created on upload and mutated by the
// job pipeline. Only Status, Metadata, IsDeleted and DeletedAt change
// after creation; every other field is fixed at insert time.
type Document struct {
	ID          string
	Tenant      string
	Filename    string
	Type        DocumentType
	ContentType string
	Size        int64
	Checksum    string
	StorageKey  string
	Uploader    string
	UploadedAt  time.Time
	Status      DocumentStatus
	Metadata    map[string]any
	IsDeleted   bool
	DeletedAt   *time.Time
}

// DocumentStore manages the documents table.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore creates a new document store.
func NewDocumentStore(db *sql.DB) (*DocumentStore, error) {
	store := &DocumentStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize documents schema: %w", err)
	}
	return store, nil
}

func (s *DocumentStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		filename TEXT NOT NULL,
		type TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL,
		checksum TEXT NOT NULL DEFAULT '',
		storage_key TEXT NOT NULL,
		uploader TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		metadata TEXT NOT NULL DEFAULT '{}',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant, is_deleted);
	CREATE INDEX IF NOT EXISTS idx_documents_tenant_status ON documents(tenant, status);
	CREATE INDEX IF NOT EXISTS idx_documents_checksum ON documents(tenant, checksum);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a pending document row. The upload handler calls it
// after the blob upload and before the process_document enqueue, as
// separate steps with no shared transaction.
func (s *DocumentStore) Create(ctx context.Context, d *Document) error {
	meta, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, tenant, filename, type, content_type, size, checksum, storage_key, uploader, uploaded_at, status, metadata, is_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE)`,
		d.ID, d.Tenant, d.Filename, string(d.Type), d.ContentType, d.Size, d.Checksum, d.StorageKey, d.Uploader, d.UploadedAt, string(d.Status), string(meta),
	)
	return err
}

// Get returns a document by id, scoped to tenant. Returns nil, nil if not
// found or if found but owned by another tenant — callers must not
// distinguish the two outcomes to a caller (cross-tenant access maps to
// apperr.KindAuthorization, never KindNotFound).
func (s *DocumentStore) Get(ctx context.Context, tenant, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, filename, type, content_type, size, checksum, storage_key, uploader, uploaded_at, status, metadata, is_deleted, deleted_at
		 FROM documents WHERE id = ? AND tenant = ?`, id, tenant)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// FindByChecksum returns an existing non-deleted document with the same
// content hash, supporting the re-upload idempotence short-circuit.
func (s *DocumentStore) FindByChecksum(ctx context.Context, tenant, checksum string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, filename, type, content_type, size, checksum, storage_key, uploader, uploaded_at, status, metadata, is_deleted, deleted_at
		 FROM documents WHERE tenant = ? AND checksum = ? AND is_deleted = FALSE LIMIT 1`, tenant, checksum)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// List returns non-deleted documents for a tenant, newest first.
func (s *DocumentStore) List(ctx context.Context, tenant string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, filename, type, content_type, size, checksum, storage_key, uploader, uploaded_at, status, metadata, is_deleted, deleted_at
		 FROM documents WHERE tenant = ? AND is_deleted = FALSE ORDER BY uploaded_at DESC`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetStatus transitions a document's status.
func (s *DocumentStore) SetStatus(ctx context.Context, tenant, id string, status DocumentStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ? AND tenant = ?`, string(status), id, tenant)
	return err
}

// SetMetadata replaces the metadata blob wholesale.
func (s *DocumentStore) SetMetadata(ctx context.Context, tenant, id string, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal document metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET metadata = ? WHERE id = ? AND tenant = ?`, string(meta), id, tenant)
	return err
}

// SoftDelete marks a document deleted. The delete handler removes the
// document's vectors before calling it; the hard delete of the row is a
// separate administrative sweep.
func (s *DocumentStore) SoftDelete(ctx context.Context, tenant, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET is_deleted = TRUE, deleted_at = ? WHERE id = ? AND tenant = ?`, at, id, tenant)
	return err
}

// HardDelete removes the row outright. Callers must have already
// removed the document's vectors from the index (invariant 2 in §3).
func (s *DocumentStore) HardDelete(ctx context.Context, tenant, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND tenant = ?`, id, tenant)
	return err
}

// SweepSoftDeleted returns ids of soft-deleted documents older than
// before, for the administrative hard-delete sweep.
func (s *DocumentStore) SweepSoftDeleted(ctx context.Context, tenant string, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE tenant = ? AND is_deleted = TRUE AND deleted_at < ?`, tenant, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var typ, status, meta string
	var deletedAt sql.NullTime
	if err := row.Scan(&d.ID, &d.Tenant, &d.Filename, &typ, &d.ContentType, &d.Size, &d.Checksum, &d.StorageKey, &d.Uploader, &d.UploadedAt, &status, &meta, &d.IsDeleted, &deletedAt); err != nil {
		return nil, err
	}
	d.Type = DocumentType(typ)
	d.Status = DocumentStatus(status)
	if deletedAt.Valid {
		d.DeletedAt = &deletedAt.Time
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return &d, nil
}
