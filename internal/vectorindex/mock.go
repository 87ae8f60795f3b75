// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index used in tests and local development
// without a Qdrant endpoint configured.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Item
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]map[string]Item)}
}

// Upsert stores items keyed by id within the namespace, overwriting any
// existing point with the same id.
func (m *MemoryIndex) Upsert(_ context.Context, namespace string, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]Item)
		m.namespaces[namespace] = ns
	}
	for _, item := range items {
		ns[item.ID] = item
	}
	return nil
}

// Search performs a brute-force cosine-similarity scan, since the
// in-memory index never sees more than test-sized data.
func (m *MemoryIndex) Search(_ context.Context, namespace string, queryVector []float32, k int, filter map[string]string) ([]Match, error) {
	if k <= 0 {
		k = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.namespaces[namespace]
	matches := make([]Match, 0, len(ns))
	for _, item := range ns {
		if !matchesFilter(item.Metadata, filter) {
			continue
		}
		matches = append(matches, Match{
			ID:       item.ID,
			Score:    cosineSimilarity(queryVector, item.Vector),
			Metadata: item.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeleteDocument removes every item in the namespace whose DocumentID
// matches documentID.
func (m *MemoryIndex) DeleteDocument(_ context.Context, namespace, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil
	}
	for id, item := range ns {
		if item.DocumentID == documentID {
			delete(ns, id)
		}
	}
	return nil
}

// DeleteNamespace drops an entire namespace.
func (m *MemoryIndex) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
