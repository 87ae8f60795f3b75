// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/northbound/corpus/internal/apperr"
)

var (
	pdfSignature = []byte("%PDF-")
	zipSignature = []byte("PK\x03\x04")
	// An empty zip archive (e.g. a DOCX/XLSX saved with no content)
	// carries the "empty archive" end-of-central-directory signature
	// instead of a local file header.
	zipEmptySignature = []byte("PK\x05\x06")
)

// verifyMagicBytes confirms that the uploaded bytes actually are the
// container format their extension claims, rejecting a renamed file
// before it reaches a format-specific library that might otherwise
// misbehave on malformed input. Text-based formats (txt, md, csv, html,
// eml) have no fixed container signature and are accepted as-is here;
// extractText's own UTF-8 handling is the guard for those.
// VerifyMagicBytes is the upload-time entry point for the same check
// Dispatch runs before extraction (§8: "a file whose declared type
// disagrees with magic bytes is rejected as ValidationError at
// upload"). It derives ext from filename itself so the server layer
// doesn't need to duplicate that logic.
func VerifyMagicBytes(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	return verifyMagicBytes(ext, data)
}

func verifyMagicBytes(ext string, data []byte) error {
	switch ext {
	case ".pdf":
		if !bytes.HasPrefix(data, pdfSignature) {
			return apperr.New(apperr.KindValidation, "file content does not match .pdf signature")
		}
	case ".docx", ".xlsx":
		if !bytes.HasPrefix(data, zipSignature) && !bytes.HasPrefix(data, zipEmptySignature) {
			return apperr.New(apperr.KindValidation, "file content does not match zip-container signature expected for "+ext)
		}
	}
	return nil
}
