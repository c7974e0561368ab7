package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/embedding/hashing"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("provider down")
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	h := hashing.New(1024)
	b, err := New(domain.Split{Document: h, Query: h})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func seed(t *testing.T, b *Backend) {
	t.Helper()
	err := b.Add(context.Background(), "docs", []backend.Record{
		{ID: "1", Text: "the cat sat on the mat", Metadata: backend.Metadata{"source": "a.txt"}},
		{ID: "2", Text: "stock market revenue report", Metadata: backend.Metadata{"source": "b.txt"}},
		{ID: "3", Text: "a cat and a dog", Metadata: backend.Metadata{"source": "a.txt"}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestNew_RequiresEmbedders(t *testing.T) {
	if _, err := New(domain.Split{}); err == nil {
		t.Error("expected error")
	}
}

func TestQuery_RanksByDistance(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)

	hits, err := b.Query(context.Background(), "docs", "cat", 2, filter.Expression{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.ID == "2" {
			t.Errorf("unrelated record ranked in top 2: %+v", hits)
		}
	}
	if hits[0].Distance > hits[1].Distance {
		t.Error("hits not ascending by distance")
	}
}

func TestQuery_WherePrefilters(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)

	where, _ := filter.Equals("source", "b.txt")
	hits, err := b.Query(context.Background(), "docs", "cat", 5, where)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "2" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestQuery_UnknownCollection(t *testing.T) {
	b := newTestBackend(t)
	hits, err := b.Query(context.Background(), "none", "x", 5, filter.Expression{})
	if err != nil || len(hits) != 0 {
		t.Errorf("hits=%v err=%v", hits, err)
	}
}

func TestAdd_EmbeddingFailureWritesNothing(t *testing.T) {
	b, _ := New(domain.Split{Document: failingEmbedder{}, Query: failingEmbedder{}})
	err := b.Add(context.Background(), "docs", []backend.Record{{ID: "1", Text: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if b.Len("docs") != 0 {
		t.Errorf("Len = %d, want 0", b.Len("docs"))
	}
}

func TestAdd_ReplacesExistingID(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)
	err := b.Add(context.Background(), "docs", []backend.Record{{ID: "1", Text: "changed"}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	recs, _ := b.Get(context.Background(), "docs", filter.Expression{}, 0)
	if len(recs) != 3 || recs[0].ID != "1" || recs[0].Text != "changed" {
		t.Errorf("records = %+v", recs)
	}
}

func TestGet_OrderAndLimit(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)

	recs, _ := b.Get(context.Background(), "docs", filter.Expression{}, 2)
	if len(recs) != 2 || recs[0].ID != "1" || recs[1].ID != "2" {
		t.Errorf("records = %+v", recs)
	}

	where, _ := filter.Equals("source", "a.txt")
	recs, _ = b.Get(context.Background(), "docs", where, 0)
	if len(recs) != 2 || recs[1].ID != "3" {
		t.Errorf("filtered records = %+v", recs)
	}
}

func TestGet_ReturnsCopies(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)
	recs, _ := b.GetByIDs(context.Background(), "docs", []string{"1"})
	recs[0].Metadata["source"] = "mutated"

	again, _ := b.GetByIDs(context.Background(), "docs", []string{"1"})
	if again[0].Metadata["source"] != "a.txt" {
		t.Error("stored metadata was mutated through a returned record")
	}
}

func TestGetByIDs_SkipsMissing(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)
	recs, _ := b.GetByIDs(context.Background(), "docs", []string{"3", "nope", "1"})
	if len(recs) != 2 || recs[0].ID != "3" || recs[1].ID != "1" {
		t.Errorf("records = %+v", recs)
	}
}

func TestDelete_Counts(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)
	n, err := b.Delete(context.Background(), "docs", []string{"1", "missing", "3"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}
	if b.Len("docs") != 1 {
		t.Errorf("Len = %d, want 1", b.Len("docs"))
	}
}

func TestUpdateMetadata_AllOrNothing(t *testing.T) {
	b := newTestBackend(t)
	seed(t, b)

	err := b.UpdateMetadata(context.Background(), "docs",
		[]string{"1", "missing"},
		[]backend.Metadata{{"source": "x"}, {"source": "y"}})
	if !errors.Is(err, backend.ErrRecordNotFound) {
		t.Fatalf("error = %v, want ErrRecordNotFound", err)
	}
	recs, _ := b.GetByIDs(context.Background(), "docs", []string{"1"})
	if recs[0].Metadata["source"] != "a.txt" {
		t.Error("partial update applied")
	}

	err = b.UpdateMetadata(context.Background(), "docs",
		[]string{"1"}, []backend.Metadata{{"source": "z.txt", "tags": "t"}})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	recs, _ = b.GetByIDs(context.Background(), "docs", []string{"1"})
	if recs[0].Metadata["tags"] != "t" {
		t.Errorf("metadata = %v", recs[0].Metadata)
	}
}

func TestUpdateMetadata_LengthMismatch(t *testing.T) {
	b := newTestBackend(t)
	if err := b.UpdateMetadata(context.Background(), "docs", []string{"1"}, nil); err == nil {
		t.Error("expected error")
	}
}
