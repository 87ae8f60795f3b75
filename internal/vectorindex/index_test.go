// Copyright (c) 2025 Northbound System
package vectorindex

import (
	"context"
	"testing"
)

func TestNamespace(t *testing.T) {
	if got := Namespace("acme corp"); got != "tenant_acme_corp" {
		t.Fatalf("Namespace(%q) = %q", "acme corp", got)
	}
}

func TestSanitize(t *testing.T) {
	in := map[string]any{
		"team":    "finance",
		"tags":    []string{"q1", "budget"},
		"count":   3,
		"nested":  map[string]any{"a": 1},
		"longstr": make([]byte, 0),
	}
	in["longstr"] = string(make([]byte, metadataValueLimit+500))

	out := Sanitize(in)
	if out["team"] != "finance" {
		t.Errorf("team = %q", out["team"])
	}
	if out["tags"] != "q1|budget" {
		t.Errorf("tags = %q", out["tags"])
	}
	if out["count"] != "3" {
		t.Errorf("count = %q", out["count"])
	}
	if _, ok := out["nested"]; ok {
		t.Errorf("expected nested map to be dropped")
	}
	if len(out["longstr"]) != metadataValueLimit {
		t.Errorf("expected truncation to %d, got %d", metadataValueLimit, len(out["longstr"]))
	}
}

func TestMemoryIndex_UpsertSearchDelete(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	ns := Namespace("acme")

	items := []Item{
		{ID: "doc1_chunk_0", DocumentID: "doc1", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"team": "finance"}},
		{ID: "doc1_chunk_1", DocumentID: "doc1", Vector: []float32{0, 1, 0}, Metadata: map[string]string{"team": "finance"}},
		{ID: "doc2_chunk_0", DocumentID: "doc2", Vector: []float32{0, 0, 1}, Metadata: map[string]string{"team": "legal"}},
	}
	if err := idx.Upsert(ctx, ns, items); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := idx.Search(ctx, ns, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "doc1_chunk_0" {
		t.Errorf("expected closest match doc1_chunk_0, got %s (score %f)", matches[0].ID, matches[0].Score)
	}

	filtered, err := idx.Search(ctx, ns, []float32{0, 0, 1}, 10, map[string]string{"team": "legal"})
	if err != nil {
		t.Fatalf("filtered search failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "doc2_chunk_0" {
		t.Fatalf("expected single legal-team match, got %+v", filtered)
	}

	if err := idx.DeleteDocument(ctx, ns, "doc1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	remaining, err := idx.Search(ctx, ns, []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search after delete failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "doc2_chunk_0" {
		t.Fatalf("expected only doc2's chunk to remain, got %+v", remaining)
	}

	if err := idx.DeleteNamespace(ctx, ns); err != nil {
		t.Fatalf("DeleteNamespace failed: %v", err)
	}
	empty, err := idx.Search(ctx, ns, []float32{1, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("Search after DeleteNamespace failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty namespace, got %+v", empty)
	}
}
