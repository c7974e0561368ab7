package document_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/ragstore/internal/backend/memory"
	"github.com/kailas-cloud/ragstore/internal/deadline"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	"github.com/kailas-cloud/ragstore/internal/embedding/hashing"
	"github.com/kailas-cloud/ragstore/internal/extract"
	chunkrepo "github.com/kailas-cloud/ragstore/internal/repository/chunk"
	"github.com/kailas-cloud/ragstore/internal/usecase/document"
	"github.com/kailas-cloud/ragstore/internal/usecase/ingest"
	"github.com/kailas-cloud/ragstore/internal/usecase/retrieval"
)

type stack struct {
	ingest    *ingest.Service
	retrieval *retrieval.Service
	documents *document.Service
}

func newStack(t *testing.T) stack {
	t.Helper()
	emb := hashing.New(512)
	be, err := memory.New(domain.Split{Document: emb, Query: emb})
	if err != nil {
		t.Fatal(err)
	}
	if err := be.EnsureCollection(context.Background(), "documents"); err != nil {
		t.Fatal(err)
	}
	repo := chunkrepo.New(be, "documents")
	return stack{
		ingest: ingest.New(repo, extract.New(), deadline.NewPool(1, time.Second),
			ingest.Config{ChunkSize: 5, ChunkOverlap: 0}),
		retrieval: retrieval.New(retrieval.NewTagFilteringQuerier(repo, 3)),
		documents: document.New(repo),
	}
}

func TestScenario_IngestAndQuery(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	res, err := s.ingest.IngestText(ctx, ingest.TextInput{
		Text:   "AAAA BBBB CCCC",
		Source: "AAAA BBBB CCCC",
		Tags:   tagset.Of("demo"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ChunkIDs) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(res.ChunkIDs))
	}

	var texts []string
	for _, id := range res.ChunkIDs {
		c, err := s.documents.GetChunk(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if c.Total() != 3 {
			t.Errorf("chunk %s total = %d, want 3", id, c.Total())
		}
		texts = append(texts, c.Text())
	}
	if want := []string{"AAAA ", "BBBB ", "CCCC"}; !slices.Equal(texts, want) {
		t.Errorf("texts = %q, want %q", texts, want)
	}

	req, err := request.NewQuery("BBBB", tagset.Of("demo"), false, 3, filter.Expression{})
	if err != nil {
		t.Fatal(err)
	}
	hits, err := s.retrieval.Query(ctx, &req)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for i := range hits {
		c := hits[i].Chunk()
		if strings.Contains(c.Text(), "BBBB") {
			found = true
			if !slices.Equal(c.Tags().Slice(), []string{"demo"}) {
				t.Errorf("tags = %v, want [demo]", c.Tags().Slice())
			}
		}
	}
	if !found {
		t.Error("query for BBBB did not return the BBBB chunk")
	}
}

func TestScenario_DeleteSourceTwice(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	if _, err := s.ingest.IngestText(ctx, ingest.TextInput{
		Text:   "AAAA BBBB CCCC",
		Source: "AAAA BBBB CCCC",
		Tags:   tagset.Of("demo"),
	}); err != nil {
		t.Fatal(err)
	}

	n, err := s.documents.DeleteSource(ctx, "AAAA BBBB CCCC")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}

	n, err = s.documents.DeleteSource(ctx, "AAAA BBBB CCCC")
	if n != 0 || !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("repeat delete = %d, %v; want 0, not found", n, err)
	}
}

func TestScenario_ReingestReplacesSource(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	in := ingest.TextInput{Text: "AAAA BBBB CCCC", Source: "doc", Tags: tagset.Of("demo")}
	if _, err := s.ingest.IngestText(ctx, in); err != nil {
		t.Fatal(err)
	}
	res, err := s.ingest.IngestText(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Replaced != 3 {
		t.Errorf("replaced = %d, want 3", res.Replaced)
	}

	docs, err := s.documents.List(ctx, tagset.Set{}, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
	if docs[0].TotalChunks() != 3 || len(docs[0].ChunkIDs()) != 3 {
		t.Errorf("total_chunks = %d, chunk ids = %d; want 3", docs[0].TotalChunks(), len(docs[0].ChunkIDs()))
	}

	n, err := s.documents.DeleteSource(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
}
