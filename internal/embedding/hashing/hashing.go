// Package hashing provides an offline embedder that maps word tokens into a
// fixed number of buckets. Texts sharing words land close together, which is
// enough for local runs and tests without a provider.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// DefaultDimensions is used when New receives a non-positive dimension.
const DefaultDimensions = 256

// Embedder is a deterministic bag-of-words embedder.
type Embedder struct {
	dims int
}

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// New creates an embedder producing vectors of the given dimension.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed returns an L2-normalized term-frequency vector. Token counts are
// reported as usage.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	vec, tokens := e.vector(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: tokens, TotalTokens: tokens}, nil
}

// BatchEmbed embeds each text in order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		vec, tokens := e.vector(t)
		out.Embeddings[i] = vec
		out.PromptTokens += tokens
		out.TotalTokens += tokens
	}
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(text string) ([]float32, int) {
	vec := make([]float32, e.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		idx := int(sum % uint32(e.dims))
		// The top bit picks the sign so bucket collisions partly cancel.
		if sum&(1<<31) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, len(tokens)
}
