// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractDOCX extracts text from a DOCX document held in memory.
// nguyenthenguyen/docx only opens from a file path, so the bytes are
// spooled to a short-lived temp file.
func extractDOCX(_ context.Context, data []byte) (Result, error) {
	tmp, err := os.CreateTemp("", "corpus-docx-*.docx")
	if err != nil {
		return Result{}, fmt.Errorf("spool DOCX to temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return Result{}, fmt.Errorf("spool DOCX to temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("spool DOCX to temp file: %w", err)
	}

	doc, err := docx.ReadDocxFile(tmp.Name())
	if err != nil {
		return Result{}, fmt.Errorf("open DOCX: %w", err)
	}
	defer doc.Close()

	text := strings.TrimSpace(doc.Editable().GetContent())
	return Result{Text: text}, nil
}
