// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import "context"

// Result is the plain-text content recovered from a document, plus any
// structural hints worth carrying into the chunker (sheet name, email
// headers, page count).
type Result struct {
	Text     string
	Metadata map[string]string
}

// extractor pulls Result out of a document body held entirely in
// memory. Every format handler in this package satisfies this shape;
// Dispatch selects among them by extension.
type extractor func(ctx context.Context, data []byte) (Result, error)
