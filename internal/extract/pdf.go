// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// extractPDF extracts text from a PDF held in memory using go-fitz
// (MuPDF). API reference: https://pkg.go.dev/github.com/gen2brain/go-fitz
func extractPDF(_ context.Context, data []byte) (Result, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Result{}, fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	numPages := doc.NumPage()

	for i := 0; i < numPages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			// A single unreadable page (e.g. scanned image with no text
			// layer) does not fail the whole document.
			continue
		}
		textBuilder.WriteString(pageText)
		if i < numPages-1 {
			textBuilder.WriteString("\n\n")
		}
	}

	return Result{
		Text:     strings.TrimSpace(textBuilder.String()),
		Metadata: map[string]string{"page_count": strconv.Itoa(numPages)},
	}, nil
}
