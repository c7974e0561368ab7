package embcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/ragstore/internal/db"
	"github.com/kailas-cloud/ragstore/internal/domain"
)

type mockEmbedder struct {
	vec        []float32
	tokens     int
	err        error
	embedCalls int
	batchCalls int
	batchSizes []int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.embedCalls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, PromptTokens: m.tokens, TotalTokens: m.tokens}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		out.Embeddings[i] = m.vec
	}
	out.PromptTokens = m.tokens * len(texts)
	out.TotalTokens = m.tokens * len(texts)
	return out, nil
}

// memKV is an in-memory KV store that records positive TTLs.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = ttl
	}
	return nil
}

func newTestCache(t *testing.T, inner *mockEmbedder, opts Options) (*CachedEmbedder, *memKV) {
	t.Helper()
	kv := newMemKV()
	return New(inner, kv, opts), kv
}
