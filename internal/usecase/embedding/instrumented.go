// Package embedding holds the logging and batching decorator applied to every
// configured embedder.
package embedding

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// DefaultMaxAPIBatchSize caps the texts sent in a single provider request.
const DefaultMaxAPIBatchSize = 256

var (
	_ domain.Embedder      = (*InstrumentedEmbedder)(nil)
	_ domain.BatchEmbedder = (*InstrumentedEmbedder)(nil)
	_ domain.HealthChecker = (*InstrumentedEmbedder)(nil)
)

// InstrumentedEmbedder logs every provider call and cuts batches down to
// the provider's request limit. Request metrics belong to the provider
// adapters.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	provider  string
	batchSize int
	log       *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. batchSize <= 0 uses DefaultMaxAPIBatchSize.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, batchSize int, logger *zap.Logger) *InstrumentedEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultMaxAPIBatchSize
	}
	return &InstrumentedEmbedder{
		inner:     inner,
		provider:  provider,
		batchSize: batchSize,
		log:       logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	began := time.Now()
	res, err := p.inner.Embed(ctx, text)
	took := zap.Duration("duration", time.Since(began))
	if err != nil {
		p.log.Error("embedding request failed", took, zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	p.log.Debug("embedding request completed", took,
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens))
	return res, nil
}

// BatchEmbed sends texts in slices of at most batchSize and concatenates
// the vectors in input order.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	began := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	offset := 0
	for part := range slices.Chunk(texts, p.batchSize) {
		res, err := domain.EmbedAll(ctx, p.inner, part)
		if err != nil {
			p.log.Error("batch embedding request failed",
				zap.Int("batch_offset", offset),
				zap.Int("batch_size", len(part)),
				zap.Error(err))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", offset, err)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
		offset += len(part)
	}
	p.log.Debug("batch embedding completed",
		zap.Duration("duration", time.Since(began)),
		zap.Int("texts", len(texts)),
		zap.Int("total_tokens", out.TotalTokens))
	return out, nil
}

// HealthCheck passes through to the provider; providers without a probe are
// always healthy.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health: %w", p.provider, err)
	}
	return nil
}
