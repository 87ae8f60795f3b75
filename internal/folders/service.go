// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package folders

import (
	"context"
	"fmt"
	"sort"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/store"
)

// Facet identifies one of the five smart-folder views (§4.8).
type Facet string

const (
	FacetTeam    Facet = "team"
	FacetProject Facet = "project"
	FacetType    Facet = "type"
	FacetDate    Facet = "date"
	FacetPerson  Facet = "person"
)

// facetColumns maps a scalar Facet to its classifications column.
// FacetPerson has no entry here — it unnests the people array via
// ClassificationStore.PersonFacetCounts instead.
var facetColumns = map[Facet]string{
	FacetTeam:    "team",
	FacetProject: "project",
	FacetType:    "doc_type",
	FacetDate:    "time_period",
}

// Bucket is one facet value and the documents classified under it,
// the shape `GET /folders/by-{facet}` renders directly to JSON.
type Bucket struct {
	FacetValue string   `json:"facet_value"`
	Count      int      `json:"count"`
	Documents  []string `json:"documents"`
}

// Service answers faceted folder queries over a tenant's
// classifications, per §4.8.
type Service struct {
	classifications *store.ClassificationStore
}

// New builds a folder Service over the given classification store.
func New(classifications *store.ClassificationStore) *Service {
	return &Service{classifications: classifications}
}

// View returns the buckets for one facet, ordered by count descending
// then facet value ascending. When filter is non-empty, only the
// matching bucket is returned (empty slice if nothing matches).
func (s *Service) View(ctx context.Context, tenant string, facet Facet, filter string) ([]Bucket, error) {
	buckets, err := s.loadBuckets(ctx, tenant, facet)
	if err != nil {
		return nil, err
	}

	if filter != "" {
		docs, ok := buckets[filter]
		if !ok {
			return []Bucket{}, nil
		}
		return []Bucket{{FacetValue: filter, Count: len(docs), Documents: docs}}, nil
	}

	result := make([]Bucket, 0, len(buckets))
	for value, docs := range buckets {
		result = append(result, Bucket{FacetValue: value, Count: len(docs), Documents: docs})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].FacetValue < result[j].FacetValue
	})
	return result, nil
}

func (s *Service) loadBuckets(ctx context.Context, tenant string, facet Facet) (map[string][]string, error) {
	if facet == FacetPerson {
		buckets, err := s.classifications.PersonFacetCounts(ctx, tenant)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindTransientUpstream, "load person facet counts", err)
		}
		return buckets, nil
	}

	column, ok := facetColumns[facet]
	if !ok {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("unknown facet %q", facet))
	}
	buckets, err := s.classifications.FacetCounts(ctx, tenant, column)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientUpstream, "load facet counts", err)
	}
	return buckets, nil
}
