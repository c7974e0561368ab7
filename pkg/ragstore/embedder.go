package ragstore

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// Embedding contracts accepted by WithEmbedder. An Embedder may also
// implement BatchEmbedder, used when ingesting many chunks at once, and
// HealthChecker, consulted by Client.Health.
type (
	Embedder             = domain.Embedder
	BatchEmbedder        = domain.BatchEmbedder
	HealthChecker        = domain.HealthChecker
	EmbeddingResult      = domain.EmbeddingResult
	BatchEmbeddingResult = domain.BatchEmbeddingResult
)

// providerGuard marks every failure of a caller-supplied embedder with
// ErrEmbeddingProviderError.
type providerGuard struct {
	inner Embedder
}

func (g providerGuard) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := g.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, providerFailure("embed", err)
	}
	return res, nil
}

func (g providerGuard) HealthCheck(ctx context.Context) error {
	hc, ok := g.inner.(HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx)
}

type batchingGuard struct {
	providerGuard
	batch BatchEmbedder
}

func (g batchingGuard) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	res, err := g.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, providerFailure("batch embed", err)
	}
	return res, nil
}

func providerFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrEmbeddingProviderError, err)
}

// guardEmbedder keeps the optional BatchEmbedder capability of e visible.
func guardEmbedder(e Embedder) Embedder {
	g := providerGuard{inner: e}
	if b, ok := e.(BatchEmbedder); ok {
		return batchingGuard{providerGuard: g, batch: b}
	}
	return g
}
