package domain

import (
	"context"
	"fmt"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the provider's token accounting.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult holds one vector per input text, in input order.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedAll embeds texts in input order. It uses one BatchEmbed call when e
// supports it and one Embed per text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	be, ok := e.(BatchEmbedder)
	if !ok {
		return embedEach(ctx, e, texts)
	}
	res, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	if got := len(res.Embeddings); got != len(texts) {
		return BatchEmbeddingResult{}, fmt.Errorf("%w: %d vectors for %d texts", ErrEmbeddingProviderError, got, len(texts))
	}
	return res, nil
}

func embedEach(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	var out BatchEmbeddingResult
	out.Embeddings = make([][]float32, 0, len(texts))
	for i := range texts {
		res, err := e.Embed(ctx, texts[i])
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed text %d: %w", i, err)
		}
		out.Embeddings = append(out.Embeddings, res.Embedding)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// InstructionEmbedder prefixes every text with a fixed instruction, e.g.
// "passage: " for stored chunks and "query: " for query text.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed with instruction: %w", err)
	}
	return res, nil
}

func (e *InstructionEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	prefixed := make([]string, 0, len(texts))
	for _, t := range texts {
		prefixed = append(prefixed, e.instruction+t)
	}
	res, err := EmbedAll(ctx, e.inner, prefixed)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("batch embed with instruction: %w", err)
	}
	return res, nil
}

// Split routes documents and queries to different embedders.
// Backends embed stored chunks with Document and query text with Query.
type Split struct {
	Document Embedder
	Query    Embedder
}

// Valid reports whether both sides are set.
func (s Split) Valid() bool { return s.Document != nil && s.Query != nil }
