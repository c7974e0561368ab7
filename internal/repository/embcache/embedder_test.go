package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{0.5, -1}, tokens: 3}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "t"}, []string{"result"})
	c, _ := newTestCache(t, inner, Options{Namespace: "m", CacheTotal: total})

	first, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if first.TotalTokens != 3 {
		t.Errorf("miss tokens = %d, want 3", first.TotalTokens)
	}

	second, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if inner.embedCalls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.embedCalls)
	}
	if second.TotalTokens != 0 || second.Embedding[1] != -1 {
		t.Errorf("hit = %+v", second)
	}
	if testutil.ToFloat64(total.WithLabelValues("hit")) != 1 || testutil.ToFloat64(total.WithLabelValues("miss")) != 1 {
		t.Error("unexpected hit/miss counts")
	}
}

func TestEmbed_NamespaceIsolatesModels(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{1}}
	kv := newMemKV()
	a := New(inner, kv, Options{Namespace: "model-a"})
	b := New(inner, kv, Options{Namespace: "model-b"})

	if _, err := a.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if inner.embedCalls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.embedCalls)
	}
}

func TestEmbed_UsesTTL(t *testing.T) {
	c, kv := newTestCache(t, &mockEmbedder{vec: []float32{1}}, Options{TTL: time.Hour})
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if len(kv.ttls) != 1 {
		t.Fatalf("expected one TTL write, got %d", len(kv.ttls))
	}
	for _, ttl := range kv.ttls {
		if ttl != time.Hour {
			t.Errorf("ttl = %v", ttl)
		}
	}
}

func TestEmbed_InnerError(t *testing.T) {
	want := errors.New("provider down")
	c, kv := newTestCache(t, &mockEmbedder{err: want}, Options{})
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, want) {
		t.Errorf("error = %v", err)
	}
	if len(kv.data) != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreErrorFallsThrough(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{1}}
	c, kv := newTestCache(t, inner, Options{})
	kv.getErr = errors.New("conn reset")
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("cache read failure must not fail the embed: %v", err)
	}
	if inner.embedCalls != 1 {
		t.Errorf("inner calls = %d", inner.embedCalls)
	}
}

func TestBatchEmbed_MixedHitsMisses(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{2}, tokens: 1}
	c, _ := newTestCache(t, inner, Options{})
	if _, err := c.Embed(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}

	res, err := c.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if inner.batchCalls != 1 || inner.batchSizes[0] != 2 {
		t.Errorf("inner batch = %d calls, sizes %v; want one call of 2", inner.batchCalls, inner.batchSizes)
	}
	if res.TotalTokens != 2 {
		t.Errorf("tokens = %d, want only misses counted", res.TotalTokens)
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{vec: []float32{2}}
	c, _ := newTestCache(t, inner, Options{})
	if _, err := c.BatchEmbed(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.BatchEmbed(context.Background(), []string{"b", "a"}); err != nil {
		t.Fatal(err)
	}
	if inner.batchCalls != 1 {
		t.Errorf("inner batch calls = %d, want 1", inner.batchCalls)
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	c, _ := newTestCache(t, &mockEmbedder{}, Options{})
	res, err := c.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Errorf("got %+v, %v", res, err)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	if _, err := decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated entry")
	}
	vec, err := decode(encode([]float32{1.5, -2}))
	if err != nil || vec[0] != 1.5 || vec[1] != -2 {
		t.Errorf("round trip = %v, %v", vec, err)
	}
}
