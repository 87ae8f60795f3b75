// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package embeddings

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/northbound/corpus/internal/apperr"
	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/store"
)

// OpenAIEmbedder generates embeddings through the OpenAI API, with
// retry-with-backoff, a circuit breaker, a requests-per-minute limiter,
// and per-tenant usage/budget accounting, per §4.4.
type OpenAIEmbedder struct {
	client  sdk.Client
	model   string
	dim     int
	batch   int
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	usage   *store.UsageStore
	budget  int64 // monthly limit compared as-is with the USD estimated_cost sum; 0 disables the gate
}

// NewOpenAIEmbedder builds an embedder from process configuration and the
// usage store it records consumption into.
func NewOpenAIEmbedder(cfg *config.Config, usage *store.UsageStore) (*OpenAIEmbedder, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("embeddings: LLM_API_KEY is required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-embeddings",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	rpm := cfg.EmbedRPM
	if rpm <= 0 {
		rpm = 3000
	}

	return &OpenAIEmbedder{
		client:  sdk.NewClient(option.WithAPIKey(cfg.LLMAPIKey)),
		model:   cfg.EmbedModel,
		dim:     DimensionForModel(cfg.EmbedModel),
		batch:   cfg.EmbedBatch,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		breaker: breaker,
		usage:   usage,
		budget:  cfg.MonthlyTokenBudget,
	}, nil
}

// Dimension returns the configured model's fixed embedding dimension.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// EmbedText embeds a single string.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, tenant, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, tenant, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in chunks of at most e.batch, enforcing the
// monthly budget gate before each upstream call and recording usage
// after each success.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, tenant string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := e.batch
	if batchSize <= 0 {
		batchSize = 100
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := e.checkBudget(ctx, tenant); err != nil {
			return nil, err
		}

		vectors, tokens, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, vectors...)

		cost := float64(tokens) * unitPriceForModel(e.model)
		if recErr := e.usage.Record(ctx, tenant, time.Now().Format("2006-01-02"), int64(tokens), 1, cost); recErr != nil {
			return nil, fmt.Errorf("embeddings: record usage: %w", recErr)
		}
	}
	return result, nil
}

// checkBudget rejects with BudgetExceeded when the tenant's month-to-date
// estimated cost already exceeds the configured monthly budget. A budget
// of 0 disables the gate.
func (e *OpenAIEmbedder) checkBudget(ctx context.Context, tenant string) error {
	if e.budget <= 0 {
		return nil
	}
	spent, err := e.usage.MonthToDateCost(ctx, tenant, time.Now())
	if err != nil {
		return fmt.Errorf("embeddings: check budget: %w", err)
	}
	if spent > float64(e.budget) {
		return apperr.New(apperr.KindBudgetExceeded, fmt.Sprintf("monthly embedding budget of %d exceeded for tenant %s", e.budget, tenant))
	}
	return nil
}

// embedOnce issues one upstream call with rate limiting, retry-with-
// backoff on transient failures, and circuit breaking across calls.
func (e *OpenAIEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, int, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("embeddings: rate limiter: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx)

	var out embedResult
	op := func() error {
		raw, err := e.breaker.Execute(func() (interface{}, error) {
			return e.callUpstream(ctx, texts)
		})
		if err != nil {
			if e.breaker.State() == gobreaker.StateOpen {
				return apperr.Wrap(apperr.KindTransientUpstream, "embeddings: circuit open", err)
			}
			return apperr.Wrap(apperr.KindTransientUpstream, "embeddings: upstream call failed", err)
		}
		out = raw.(embedResult)
		return nil
	}

	if err := backoff.Retry(op, retryPolicy); err != nil {
		return nil, 0, err
	}
	return out.vectors, out.tokens, nil
}

// embedResult carries one upstream call's output through the circuit
// breaker's interface{} return.
type embedResult struct {
	vectors [][]float32
	tokens  int
}

func (e *OpenAIEmbedder) callUpstream(ctx context.Context, texts []string) (interface{}, error) {
	resp, err := e.client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: sdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, errDimensionMismatch(len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vectors[i][j] = float32(v)
		}
	}

	return embedResult{vectors: vectors, tokens: int(resp.Usage.TotalTokens)}, nil
}
