package domain

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// recordingEmbedder returns vec for every text and remembers what it saw.
type recordingEmbedder struct {
	vec    []float32
	tokens int
	err    error
	seen   []string
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	r.seen = append(r.seen, text)
	if r.err != nil {
		return EmbeddingResult{}, r.err
	}
	return EmbeddingResult{Embedding: r.vec, PromptTokens: r.tokens, TotalTokens: r.tokens}, nil
}

// batchingEmbedder also implements BatchEmbedder; Embed must not be used.
type batchingEmbedder struct {
	recordingEmbedder
	out      [][]float32
	batchErr error
	batches  [][]string
}

func (b *batchingEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	b.batches = append(b.batches, texts)
	if b.batchErr != nil {
		return BatchEmbeddingResult{}, b.batchErr
	}
	return BatchEmbeddingResult{Embeddings: b.out, TotalTokens: 7}, nil
}

func TestEmbedAll(t *testing.T) {
	providerErr := errors.New("quota exceeded")

	tests := []struct {
		name       string
		embedder   Embedder
		texts      []string
		wantVecs   int
		wantTokens int
		wantErr    error
	}{
		{
			name:       "per text without batch support",
			embedder:   &recordingEmbedder{vec: []float32{1, 0}, tokens: 4},
			texts:      []string{"invoice", "receipt", "refund"},
			wantVecs:   3,
			wantTokens: 12,
		},
		{
			name:     "empty input",
			embedder: &recordingEmbedder{vec: []float32{1}},
			wantVecs: 0,
		},
		{
			name:     "failing text",
			embedder: &recordingEmbedder{err: providerErr},
			texts:    []string{"invoice"},
			wantErr:  providerErr,
		},
		{
			name:       "native batch",
			embedder:   &batchingEmbedder{out: [][]float32{{1}, {2}}},
			texts:      []string{"a", "b"},
			wantVecs:   2,
			wantTokens: 7,
		},
		{
			name:     "batch returns too few vectors",
			embedder: &batchingEmbedder{out: [][]float32{{1}}},
			texts:    []string{"a", "b"},
			wantErr:  ErrEmbeddingProviderError,
		},
		{
			name:     "batch error",
			embedder: &batchingEmbedder{batchErr: providerErr},
			texts:    []string{"a"},
			wantErr:  providerErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := EmbedAll(context.Background(), tt.embedder, tt.texts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Embeddings) != tt.wantVecs {
				t.Errorf("expected %d vectors, got %d", tt.wantVecs, len(res.Embeddings))
			}
			if res.TotalTokens != tt.wantTokens {
				t.Errorf("expected %d tokens, got %d", tt.wantTokens, res.TotalTokens)
			}
		})
	}
}

func TestEmbedAll_PrefersBatch(t *testing.T) {
	b := &batchingEmbedder{out: [][]float32{{1}, {2}}}
	if _, err := EmbedAll(context.Background(), b, []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.batches) != 1 {
		t.Errorf("expected one batch call, got %d", len(b.batches))
	}
	if len(b.seen) != 0 {
		t.Errorf("Embed should not be called, saw %v", b.seen)
	}
}

func TestInstructionEmbedder_Embed(t *testing.T) {
	inner := &recordingEmbedder{vec: []float32{0.5, 0.5}}
	emb := NewInstructionEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "refund policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("expected 2 dims, got %d", len(res.Embedding))
	}
	if want := []string{"query: refund policy"}; !slices.Equal(inner.seen, want) {
		t.Errorf("inner saw %v, want %v", inner.seen, want)
	}
}

func TestInstructionEmbedder_EmptyInstructionPassesThrough(t *testing.T) {
	inner := &recordingEmbedder{vec: []float32{1}}
	if _, err := NewInstructionEmbedder(inner, "").Embed(context.Background(), "plain"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.seen[0] != "plain" {
		t.Errorf("got %q", inner.seen[0])
	}
}

func TestInstructionEmbedder_WrapsErrors(t *testing.T) {
	providerErr := errors.New("timeout")
	emb := NewInstructionEmbedder(&recordingEmbedder{err: providerErr}, "passage: ")

	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, providerErr) {
		t.Errorf("Embed: expected wrapped error, got %v", err)
	}
	if _, err := emb.BatchEmbed(context.Background(), []string{"x"}); !errors.Is(err, providerErr) {
		t.Errorf("BatchEmbed: expected wrapped error, got %v", err)
	}
}

func TestInstructionEmbedder_BatchPrefixesEveryText(t *testing.T) {
	t.Run("batch inner", func(t *testing.T) {
		inner := &batchingEmbedder{out: [][]float32{{1}, {2}}}
		emb := NewInstructionEmbedder(inner, "passage: ")
		if _, err := emb.BatchEmbed(context.Background(), []string{"one", "two"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"passage: one", "passage: two"}
		if len(inner.batches) != 1 || !slices.Equal(inner.batches[0], want) {
			t.Errorf("batches = %v, want [%v]", inner.batches, want)
		}
	})

	t.Run("single inner", func(t *testing.T) {
		inner := &recordingEmbedder{vec: []float32{1}, tokens: 2}
		emb := NewInstructionEmbedder(inner, "passage: ")
		res, err := emb.BatchEmbed(context.Background(), []string{"one", "two"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []string{"passage: one", "passage: two"}; !slices.Equal(inner.seen, want) {
			t.Errorf("seen = %v, want %v", inner.seen, want)
		}
		if res.TotalTokens != 4 {
			t.Errorf("expected 4 tokens, got %d", res.TotalTokens)
		}
	})
}

func TestSplit_Valid(t *testing.T) {
	e := &recordingEmbedder{}
	cases := map[string]struct {
		split Split
		want  bool
	}{
		"both":          {Split{Document: e, Query: e}, true},
		"document only": {Split{Document: e}, false},
		"none":          {Split{}, false},
	}
	for name, tc := range cases {
		if got := tc.split.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", name, got, tc.want)
		}
	}
}
