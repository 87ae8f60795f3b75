// Copyright (c) 2025 Northbound System
package chunker

import (
	"strings"
	"testing"
)

func TestChunker_EmptyText(t *testing.T) {
	c, err := New(1000, 200)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks, err := c.Chunk("", nil)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty text, got %d", len(chunks))
	}
}

func TestChunker_ShortText(t *testing.T) {
	c, err := New(1000, 200)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	text := "This is a short text. It should not be split."
	chunks, err := c.Chunk(text, map[string]string{"doc": "d1"})
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata["doc"] != "d1" {
		t.Errorf("expected metadata to be preserved, got %v", chunks[0].Metadata)
	}
}

func TestChunker_PacksWithinTokenBudget(t *testing.T) {
	c, err := New(20, 5)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	sentence := "This is sentence number with some words in it. "
	text := strings.Repeat(sentence, 30)

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if ch.TokenCount > 20 {
			t.Errorf("chunk %d exceeds token budget: %d tokens", ch.Index, ch.TokenCount)
		}
	}
}

func TestChunker_HardSplitsOverlongSentence(t *testing.T) {
	c, err := New(10, 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// A single sentence (no terminal punctuation) far longer than the
	// chunk size must still be split rather than dropped.
	text := strings.Repeat("word ", 200)

	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the over-long sentence to be hard-split into multiple chunks, got %d", len(chunks))
	}
	var total int
	for _, ch := range chunks {
		total += len(ch.Text)
	}
	if total == 0 {
		t.Fatalf("expected hard-split chunks to retain the original content")
	}
}

func TestChunker_PreservesParagraphIndex(t *testing.T) {
	c, err := New(1000, 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	text := "First paragraph sentence one. First paragraph sentence two.\n\nSecond paragraph sentence one."
	chunks, err := c.Chunk(text, nil)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		// With a large chunk size everything packs into a single chunk;
		// the paragraph index recorded should be the first paragraph's.
		t.Fatalf("expected a single packed chunk, got %d", len(chunks))
	}
	if chunks[0].ParagraphIdx != 0 {
		t.Errorf("expected paragraph index 0, got %d", chunks[0].ParagraphIdx)
	}
}
