// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML extracts visible text from an HTML document, dropping
// script/style/noscript content before flattening to text.
func extractHTML(_ context.Context, data []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	return Result{Text: doc.Text()}, nil
}
