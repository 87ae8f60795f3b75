// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package embeddings

import (
	"context"
	"fmt"
)

// Embedder generates vector embeddings from text for one tenant at a
// time, batching, retrying, rate-limiting and metering usage per §4.4.
type Embedder interface {
	// EmbedText generates an embedding vector for a single text.
	EmbedText(ctx context.Context, tenant, text string) ([]float32, error)

	// EmbedBatch generates embeddings for up to EmbedBatch texts in one
	// upstream call; len(result) == len(texts).
	EmbedBatch(ctx context.Context, tenant string, texts []string) ([][]float32, error)

	// Dimension returns the fixed dimension of vectors this embedder
	// produces, read by the Vector Index Adapter when lazily creating a
	// tenant's collection.
	Dimension() int
}

// modelDimensions maps a model name to its fixed output dimension.
// text-embedding-3-large is the default configured model (3072-dim).
var modelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// modelUnitPriceUSD is the cost per token used for UsageCounter.estimated_cost,
// keyed the same as modelDimensions.
var modelUnitPriceUSD = map[string]float64{
	"text-embedding-3-large": 0.00000013,
	"text-embedding-3-small": 0.00000002,
	"text-embedding-ada-002": 0.0000001,
}

// DimensionForModel returns the known dimension for model, defaulting to
// the text-embedding-3-large dimension if the model is unrecognized
// (e.g. a future model not yet in the table) rather than failing closed.
func DimensionForModel(model string) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	return 3072
}

func unitPriceForModel(model string) float64 {
	if p, ok := modelUnitPriceUSD[model]; ok {
		return p
	}
	return modelUnitPriceUSD["text-embedding-3-large"]
}

// errDimensionMismatch builds the error returned when an upstream
// response's embedding count does not match the request's input count.
func errDimensionMismatch(want, got int) error {
	return fmt.Errorf("embeddings: expected %d vectors, got %d", want, got)
}
