// Copyright (c) 2025 Northbound System
package classifier

import (
	"fmt"
	"strings"
	"testing"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/store"
)

func TestFallbackClassify_ExtensionDrivenDocType(t *testing.T) {
	c := fallbackClassify("statement.eml")
	if c.DocType != "email" {
		t.Errorf("expected doc_type email, got %q", c.DocType)
	}
	if c.Confidentiality != store.ConfidentialityInternal {
		t.Errorf("expected internal confidentiality, got %q", c.Confidentiality)
	}
	if !c.Fallback {
		t.Error("expected Fallback=true")
	}
	for _, field := range classificationFields {
		if c.Confidence[field] != fallbackConfidence {
			t.Errorf("expected confidence %.1f for %q, got %v", fallbackConfidence, field, c.Confidence[field])
		}
	}
}

func TestFallbackClassify_KeywordDrivenTags(t *testing.T) {
	c := fallbackClassify("Q3_invoice_urgent_review.pdf")
	if c.DocType != "invoice" {
		t.Errorf("expected doc_type invoice, got %q", c.DocType)
	}
	hasFinance, hasUrgent := false, false
	for _, tag := range c.Tags {
		if tag == "#finance" {
			hasFinance = true
		}
		if tag == "#urgent" {
			hasUrgent = true
		}
	}
	if !hasFinance || !hasUrgent {
		t.Errorf("expected #finance and #urgent tags, got %v", c.Tags)
	}
}

func TestFallbackClassify_NoSignalLeavesDocTypeEmpty(t *testing.T) {
	c := fallbackClassify("file1234.pdf")
	if c.DocType != "" {
		t.Errorf("expected empty doc_type with no signal, got %q", c.DocType)
	}
	if len(c.Tags) != 0 {
		t.Errorf("expected no tags, got %v", c.Tags)
	}
}

func TestLeadingText_ConcatenatesWithinBudget(t *testing.T) {
	chunks := []string{"first", "second", "third"}
	got := leadingText(chunks, 100)
	if got != "first\n\nsecond\n\nthird" {
		t.Errorf("unexpected concatenation: %q", got)
	}
}

func TestLeadingText_TruncatesAtBudget(t *testing.T) {
	chunks := []string{strings.Repeat("a", 10), strings.Repeat("b", 10)}
	got := leadingText(chunks, 15)
	if len(got) != 15 {
		t.Fatalf("expected truncation to 15 chars, got %d (%q)", len(got), got)
	}
}

func TestDecodeToolResult_RejectsOutOfRangeConfidence(t *testing.T) {
	raw := []byte(`{"doc_type":"contract","confidentiality":"internal","people":[],"tags":[],"summary":"s","confidence":` +
		fullConfidenceJSON(map[string]float64{"team": 1.5}) + `}`)
	_, err := decodeToolResult(raw)
	if apperr.KindOf(err) != apperr.KindClassifier {
		t.Fatalf("expected KindClassifier, got %v (%v)", apperr.KindOf(err), err)
	}
}

func TestDecodeToolResult_RejectsMissingConfidenceField(t *testing.T) {
	raw := []byte(`{"doc_type":"contract","confidentiality":"internal","people":[],"tags":[],"summary":"s","confidence":{"team":0.5}}`)
	_, err := decodeToolResult(raw)
	if apperr.KindOf(err) != apperr.KindClassifier {
		t.Fatalf("expected KindClassifier for missing field, got %v (%v)", apperr.KindOf(err), err)
	}
}

func TestDecodeToolResult_RejectsInvalidConfidentiality(t *testing.T) {
	raw := []byte(`{"doc_type":"contract","confidentiality":"top-secret","people":[],"tags":[],"summary":"s","confidence":` +
		fullConfidenceJSON(nil) + `}`)
	_, err := decodeToolResult(raw)
	if apperr.KindOf(err) != apperr.KindClassifier {
		t.Fatalf("expected KindClassifier for invalid confidentiality, got %v (%v)", apperr.KindOf(err), err)
	}
}

func TestDecodeToolResult_AcceptsValidPayloadAndCapsTags(t *testing.T) {
	raw := []byte(`{"doc_type":"contract","confidentiality":"confidential","people":["Alice"],` +
		`"tags":["#a","#b","#c","#d","#e","#f"],"summary":"a contract","confidence":` + fullConfidenceJSON(nil) + `}`)
	c, err := decodeToolResult(raw)
	if err != nil {
		t.Fatalf("decodeToolResult failed: %v", err)
	}
	if len(c.Tags) != 5 {
		t.Errorf("expected tags capped at 5, got %d", len(c.Tags))
	}
	if c.Confidentiality != store.ConfidentialityConfidential {
		t.Errorf("unexpected confidentiality: %q", c.Confidentiality)
	}
}

// fullConfidenceJSON renders a confidence object covering every
// classificationFields entry at 0.5, with overrides applied on top —
// used to build both valid payloads and payloads with exactly one
// field pushed out of range.
func fullConfidenceJSON(overrides map[string]float64) string {
	var b strings.Builder
	b.WriteString("{")
	for i, field := range classificationFields {
		if i > 0 {
			b.WriteString(",")
		}
		v := 0.5
		if ov, ok := overrides[field]; ok {
			v = ov
		}
		fmt.Fprintf(&b, "%q:%v", field, v)
	}
	b.WriteString("}")
	return b.String()
}
