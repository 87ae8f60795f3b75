// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package classifier

import (
	"path/filepath"
	"strings"

	"github.com/northbound/corpus/internal/store"
)

const fallbackConfidence = 0.3

// extensionDocTypes maps a lowercase file extension straight to a
// business doc type, checked before the filename-keyword pass.
var extensionDocTypes = map[string]string{
	".eml": "email",
	".csv": "spreadsheet",
	".xls": "spreadsheet",
	".xlsx": "spreadsheet",
}

// keywordDocTypes is tried against the lowercased filename (not the
// body: the fallback path exists because the body couldn't be read by
// the model, so it sticks to cheap signals), in order, first match
// wins. Generalizes TaggerPool.fallbackTags's keyword list from tags
// to a single doc_type decision.
var keywordDocTypes = []struct {
	keywords []string
	docType  string
}{
	{[]string{"invoice", "billing", "payment"}, "invoice"},
	{[]string{"contract", "agreement", "nda"}, "contract"},
	{[]string{"proposal", "quote", "rfp"}, "proposal"},
	{[]string{"report"}, "report"},
	{[]string{"memo"}, "memo"},
	{[]string{"resume", "cv"}, "resume"},
}

// fallbackKeywordTags mirrors TaggerPool.fallbackTags verbatim: simple
// substring matches against the filename, used to populate Tags when
// the model is unavailable.
var fallbackKeywordTags = []struct {
	keywords []string
	tag      string
}{
	{[]string{"legal", "law", "contract"}, "#legal"},
	{[]string{"invoice", "billing", "payment"}, "#finance"},
	{[]string{"urgent", "asap", "immediate"}, "#urgent"},
	{[]string{"proposal", "quote"}, "#proposal"},
	{[]string{"confidential", "secret"}, "#confidential"},
}

// fallbackClassify produces the classification record's content when
// the LLM call fails or returns invalid JSON after one retry. It never
// reads document content: this path exists specifically to stay cheap
// and side-effect-free when the model is unreachable.
func fallbackClassify(filename string) store.Classification {
	nameLower := strings.ToLower(filename)
	ext := strings.ToLower(filepath.Ext(filename))

	docType := extensionDocTypes[ext]
	if docType == "" {
		for _, candidate := range keywordDocTypes {
			if containsAny(nameLower, candidate.keywords) {
				docType = candidate.docType
				break
			}
		}
	}

	var tags []string
	for _, candidate := range fallbackKeywordTags {
		if containsAny(nameLower, candidate.keywords) {
			tags = append(tags, candidate.tag)
		}
	}

	confidence := make(map[string]float64, len(classificationFields))
	for _, field := range classificationFields {
		confidence[field] = fallbackConfidence
	}

	return store.Classification{
		DocType:         docType,
		Confidentiality: store.ConfidentialityInternal,
		Tags:            tags,
		Confidence:      confidence,
		Fallback:        true,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
