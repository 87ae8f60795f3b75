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

// Confidentiality enumerates the Classifier's sensitivity tiers.
type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "public"
	ConfidentialityInternal     Confidentiality = "internal"
	ConfidentialityConfidential Confidentiality = "confidential"
	ConfidentialityRestricted   Confidentiality = "restricted"
)

// Classification is the at-most-one-per-document record the Classifier
// produces. Reclassification replaces the row wholesale.
type Classification struct {
	Document        string
	Tenant          string
	Team            string
	Project         string
	DocType         string
	TimePeriod      string
	Confidentiality Confidentiality
	People          []string
	Tags            []string
	Summary         string
	Confidence      map[string]float64
	Model           string
	Fallback        bool
	ClassifiedAt    time.Time
}

// ClassificationStore manages the classifications table.
type ClassificationStore struct {
	db *sql.DB
}

// NewClassificationStore creates a new classification store.
func NewClassificationStore(db *sql.DB) (*ClassificationStore, error) {
	store := &ClassificationStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize classifications schema: %w", err)
	}
	return store, nil
}

func (s *ClassificationStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS classifications (
		document TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		doc_type TEXT NOT NULL DEFAULT '',
		time_period TEXT NOT NULL DEFAULT '',
		confidentiality TEXT NOT NULL DEFAULT 'internal',
		people TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		confidence TEXT NOT NULL DEFAULT '{}',
		model TEXT NOT NULL DEFAULT '',
		fallback BOOLEAN NOT NULL DEFAULT FALSE,
		classified_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_classifications_tenant_team ON classifications(tenant, team);
	CREATE INDEX IF NOT EXISTS idx_classifications_tenant_project ON classifications(tenant, project);
	CREATE INDEX IF NOT EXISTS idx_classifications_tenant_type ON classifications(tenant, doc_type);
	CREATE INDEX IF NOT EXISTS idx_classifications_tenant_period ON classifications(tenant, time_period);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert replaces the classification row for a document wholesale,
// matching the spec's "reclassification is an upsert" rule.
func (s *ClassificationStore) Upsert(ctx context.Context, c *Classification) error {
	people, err := json.Marshal(c.People)
	if err != nil {
		return fmt.Errorf("marshal people: %w", err)
	}
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	confidence, err := json.Marshal(c.Confidence)
	if err != nil {
		return fmt.Errorf("marshal confidence: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO classifications (document, tenant, team, project, doc_type, time_period, confidentiality, people, tags, summary, confidence, model, fallback, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document) DO UPDATE SET
		   tenant=excluded.tenant, team=excluded.team, project=excluded.project, doc_type=excluded.doc_type,
		   time_period=excluded.time_period, confidentiality=excluded.confidentiality, people=excluded.people,
		   tags=excluded.tags, summary=excluded.summary, confidence=excluded.confidence, model=excluded.model,
		   fallback=excluded.fallback, classified_at=excluded.classified_at`,
		c.Document, c.Tenant, c.Team, c.Project, c.DocType, c.TimePeriod, string(c.Confidentiality),
		string(people), string(tags), c.Summary, string(confidence), c.Model, c.Fallback, c.ClassifiedAt,
	)
	return err
}

// Get returns the classification for a document, or nil if none exists.
func (s *ClassificationStore) Get(ctx context.Context, documentID string) (*Classification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document, tenant, team, project, doc_type, time_period, confidentiality, people, tags, summary, confidence, model, fallback, classified_at
		 FROM classifications WHERE document = ?`, documentID)
	c, err := scanClassification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// DistinctFacets returns the known distinct teams, projects, and doc
// types for a tenant, used to build the Classifier's organizational
// context.
func (s *ClassificationStore) DistinctFacets(ctx context.Context, tenant string) (teams, projects, docTypes []string, err error) {
	query := func(column string) ([]string, error) {
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT DISTINCT %s FROM classifications WHERE tenant = ? AND %s != '' ORDER BY %s`, column, column, column), tenant)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var vals []string
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, rows.Err()
	}

	if teams, err = query("team"); err != nil {
		return
	}
	if projects, err = query("project"); err != nil {
		return
	}
	docTypes, err = query("doc_type")
	return
}

// ByFacet returns document ids matching a scalar facet column and value,
// used by the folder query service for by_team/by_project/by_type/by_date.
func (s *ClassificationStore) ByFacet(ctx context.Context, tenant, column, value string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT document FROM classifications WHERE tenant = ? AND %s = ?`, column), tenant, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// FacetCounts groups documents by a scalar facet column for a tenant,
// for the folder query service's by_team/by_project/by_type/by_date
// views. The returned map carries no order.
func (s *ClassificationStore) FacetCounts(ctx context.Context, tenant, column string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, document FROM classifications WHERE tenant = ? AND %s != ''`, column, column), tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make(map[string][]string)
	for rows.Next() {
		var facet, doc string
		if err := rows.Scan(&facet, &doc); err != nil {
			return nil, err
		}
		buckets[facet] = append(buckets[facet], doc)
	}
	return buckets, rows.Err()
}

// PersonFacetCounts unnests the people array column via json_each,
// grouping documents by each listed person.
func (s *ClassificationStore) PersonFacetCounts(ctx context.Context, tenant string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT je.value, classifications.document
		 FROM classifications, json_each(classifications.people) AS je
		 WHERE classifications.tenant = ?`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make(map[string][]string)
	for rows.Next() {
		var person, doc string
		if err := rows.Scan(&person, &doc); err != nil {
			return nil, err
		}
		buckets[person] = append(buckets[person], doc)
	}
	return buckets, rows.Err()
}

func scanClassification(row rowScanner) (*Classification, error) {
	var c Classification
	var confidentiality, people, tags, confidence string
	if err := row.Scan(&c.Document, &c.Tenant, &c.Team, &c.Project, &c.DocType, &c.TimePeriod, &confidentiality,
		&people, &tags, &c.Summary, &confidence, &c.Model, &c.Fallback, &c.ClassifiedAt); err != nil {
		return nil, err
	}
	c.Confidentiality = Confidentiality(confidentiality)
	if err := json.Unmarshal([]byte(people), &c.People); err != nil {
		return nil, fmt.Errorf("unmarshal people: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(confidence), &c.Confidence); err != nil {
		return nil, fmt.Errorf("unmarshal confidence: %w", err)
	}
	return &c, nil
}
