package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/benefitsflow/benefits-rag/internal/core/domain"
	"github.com/benefitsflow/benefits-rag/internal/core/ports/driven"
	"github.com/benefitsflow/benefits-rag/internal/logger"
)

// Default gateway tuning.
const (
	DefaultMaxAttempts   = 4
	DefaultBaseDelay     = 500 * time.Millisecond
	DefaultCacheCapacity = 4096
	DefaultRequestRate   = 10.0 // provider requests per second
	DefaultRequestBurst  = 5
)

// EmbeddingGateway maps text to vectors via a pluggable provider. It owns
// the batching, retry, caching and rate-limit discipline so that neither
// ingestion nor retrieval needs to know provider quirks.
//
// Retry is an explicit state machine: a bounded attempt count with
// exponential backoff and jitter. On exhaustion the caller receives a
// *domain.EmbeddingExhausted carrying every vector that did succeed, so
// completed work is never silently lost or re-billed.
type EmbeddingGateway struct {
	provider    driven.EmbeddingProvider
	limiter     *rate.Limiter
	cache       *embedCache
	maxAttempts int
	baseDelay   time.Duration
}

// GatewayOption configures the embedding gateway.
type GatewayOption func(*EmbeddingGateway)

// WithMaxAttempts sets the retry budget per provider batch.
func WithMaxAttempts(n int) GatewayOption {
	return func(g *EmbeddingGateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay; each retry doubles it.
func WithBaseDelay(d time.Duration) GatewayOption {
	return func(g *EmbeddingGateway) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

// WithRequestRate caps provider requests per second with the given burst.
func WithRequestRate(perSecond float64, burst int) GatewayOption {
	return func(g *EmbeddingGateway) {
		if perSecond > 0 && burst > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithCacheCapacity sets the size of the per-run memoization cache.
func WithCacheCapacity(n int) GatewayOption {
	return func(g *EmbeddingGateway) {
		if n > 0 {
			g.cache = newEmbedCache(n)
		}
	}
}

// NewEmbeddingGateway creates a gateway around the given provider.
func NewEmbeddingGateway(provider driven.EmbeddingProvider, opts ...GatewayOption) *EmbeddingGateway {
	g := &EmbeddingGateway{
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Limit(DefaultRequestRate), DefaultRequestBurst),
		cache:       newEmbedCache(DefaultCacheCapacity),
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Embed generates one vector per input text, parallel to input order.
// Oversized batches are split to the provider's maximum transparently.
// Identical (role, text) inputs within a run are served from cache.
func (g *EmbeddingGateway) Embed(
	ctx context.Context, texts []string, role driven.EmbedRole,
) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	// Serve what we can from cache, collect the rest.
	var pendingIdx []int
	for i, text := range texts {
		if vec, ok := g.cache.get(cacheKey(role, text)); ok {
			vectors[i] = vec
			continue
		}
		pendingIdx = append(pendingIdx, i)
	}
	if len(pendingIdx) == 0 {
		logger.Debug("Embedding: all %d texts cached", len(texts))
		return vectors, nil
	}
	logger.Debug("Embedding: %d/%d texts cached, %d to embed",
		len(texts)-len(pendingIdx), len(texts), len(pendingIdx))

	batchSize := g.provider.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	for from := 0; from < len(pendingIdx); from += batchSize {
		to := from + batchSize
		if to > len(pendingIdx) {
			to = len(pendingIdx)
		}
		batch := pendingIdx[from:to]

		batchTexts := make([]string, len(batch))
		for i, idx := range batch {
			batchTexts[i] = texts[idx]
		}

		embedded, err := g.embedBatchWithRetry(ctx, batchTexts, role)
		if err != nil {
			// Hand back everything embedded so far; the caller can
			// persist it and retry only the remainder.
			return nil, &domain.EmbeddingExhausted{Vectors: vectors, Cause: err}
		}

		for i, idx := range batch {
			vectors[idx] = embedded[i]
			g.cache.set(cacheKey(role, texts[idx]), embedded[i])
		}
	}

	return vectors, nil
}

// embedBatchWithRetry runs one provider batch under the retry budget.
func (g *EmbeddingGateway) embedBatchWithRetry(
	ctx context.Context, texts []string, role driven.EmbedRole,
) ([][]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := g.provider.EmbedBatch(ctx, texts, role)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("provider returned %d vectors for %d texts",
					len(vectors), len(texts))
			}
			return vectors, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
		if attempt == g.maxAttempts {
			break
		}

		delay := g.backoff(attempt)
		logger.Warn("Embedding attempt %d/%d failed: %v (retrying in %s)",
			attempt, g.maxAttempts, err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", g.maxAttempts, lastErr)
}

// backoff returns the exponential delay for the given attempt with up to
// 50% random jitter to avoid thundering herds against a rate limit.
func (g *EmbeddingGateway) backoff(attempt int) time.Duration {
	delay := g.baseDelay << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// Dimensions returns the provider's vector size.
func (g *EmbeddingGateway) Dimensions() int {
	return g.provider.Dimensions()
}

// ModelName returns the provider's embedding model name.
func (g *EmbeddingGateway) ModelName() string {
	return g.provider.ModelName()
}

func cacheKey(role driven.EmbedRole, text string) string {
	return string(role) + "\x00" + text
}
