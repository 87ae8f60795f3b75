// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/logger"
	"github.com/northbound/corpus/internal/store"
)

// extractors maps a recognized file extension to its handler.
var extractors = map[string]extractor{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".txt":  extractText,
	".md":   extractText,
	".csv":  extractCSV,
	".xlsx": extractExcel,
	".xls":  extractExcel,
	".html": extractHTML,
	".htm":  extractHTML,
	".eml":  extractEmail,
}

// primaryType maps an extension to the Document.type value it maps to.
// Supplemental formats (xlsx/xls, html/htm, eml) carry no dedicated
// document type in the data model — they normalize to "txt" once their
// structural content has already been flattened to plain text.
var primaryType = map[string]store.DocumentType{
	".pdf":  store.DocTypePDF,
	".docx": store.DocTypeDOCX,
	".txt":  store.DocTypeTXT,
	".md":   store.DocTypeMD,
	".csv":  store.DocTypeCSV,
	".xlsx": store.DocTypeTXT,
	".xls":  store.DocTypeTXT,
	".html": store.DocTypeTXT,
	".htm":  store.DocTypeTXT,
	".eml":  store.DocTypeTXT,
}

// Dispatch routes filename's extension to the matching extractor,
// verifies the bytes match the claimed container format, and returns
// the extracted text along with the Document.type this content
// normalizes to.
func Dispatch(ctx context.Context, filename string, data []byte) (Result, store.DocumentType, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	fn, ok := extractors[ext]
	if !ok {
		return Result{}, "", apperr.New(apperr.KindValidation, fmt.Sprintf("unsupported file type: %s", ext))
	}

	if err := verifyMagicBytes(ext, data); err != nil {
		return Result{}, "", err
	}

	result, err := fn(ctx, data)
	if err != nil {
		return Result{}, "", apperr.Wrap(apperr.KindExtraction, fmt.Sprintf("extract %s", filename), err)
	}

	if strings.TrimSpace(result.Text) == "" {
		return Result{}, "", apperr.New(apperr.KindEmptyDocument, fmt.Sprintf("no text extracted from %s", filename))
	}

	snippet := result.Text
	if len(snippet) > 150 {
		snippet = snippet[:150] + "..."
	}
	logger.Printf("extract: %s: %d characters, preview: %s", filename, len(result.Text), snippet)

	return result, primaryType[ext], nil
}

// IsSupported reports whether filename's extension has a registered
// extractor.
func IsSupported(filename string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// IsTemporaryFile reports whether a filename looks like an editor/OS
// lock or scratch file rather than a real upload (e.g. "~$doc.docx",
// "._resource", "draft.tmp").
func IsTemporaryFile(filename string) bool {
	base := filepath.Base(filename)
	switch {
	case strings.HasPrefix(base, "~$"):
		return true
	case strings.HasPrefix(base, "._"):
		return true
	case strings.HasSuffix(base, ".tmp"):
		return true
	}
	return false
}
