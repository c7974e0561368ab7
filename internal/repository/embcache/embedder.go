// Package embcache caches embedding vectors in the key-value side of the
// database so re-ingested and repeated query texts skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/db"
	"github.com/kailas-cloud/ragstore/internal/domain"
)

// store is the slice of db.KVStore the cache needs.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configure the cache. Namespace should change whenever the model or
// dimensions do, so stale vectors are never served.
type Options struct {
	Namespace  string
	TTL        time.Duration
	CacheTotal *prometheus.CounterVec // label "result": "hit" / "miss"
	Logger     *zap.Logger
}

// CachedEmbedder is a caching decorator over an embedder.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	prefix string
	ttl    time.Duration
	total  *prometheus.CounterVec
	logger *zap.Logger
}

var (
	_ domain.Embedder      = (*CachedEmbedder)(nil)
	_ domain.BatchEmbedder = (*CachedEmbedder)(nil)
)

// New creates a caching decorator.
func New(inner domain.Embedder, s store, opts Options) *CachedEmbedder {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:  inner,
		store:  s,
		prefix: "emb_cache:" + opts.Namespace + ":",
		ttl:    opts.TTL,
		total:  opts.CacheTotal,
		logger: log,
	}
}

// Embed returns a cached vector or calls the inner embedder.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.get(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.put(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed serves hits from the cache and embeds only the misses, in one
// inner call. Output order matches texts.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	keys := make([]string, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		keys[i] = c.key(t)
		if vec, ok := c.get(ctx, keys[i]); ok {
			c.count("hit")
			out.Embeddings[i] = vec
			continue
		}
		c.count("miss")
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	res, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("got %d embeddings for %d texts: %w",
			len(res.Embeddings), len(missTexts), domain.ErrEmbeddingProviderError)
	}
	for j, i := range missIdx {
		out.Embeddings[i] = res.Embeddings[j]
		c.put(ctx, keys[i], res.Embeddings[j])
	}
	out.PromptTokens = res.PromptTokens
	out.TotalTokens = res.TotalTokens
	return out, nil
}

// HealthCheck delegates to the inner embedder when it supports checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func (c *CachedEmbedder) count(result string) {
	if c.total != nil {
		c.total.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("embedding cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	vec, err := decode(data)
	if err != nil {
		c.logger.Warn("embedding cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.Set(ctx, key, encode(vec), c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid cache entry: len=%d not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
