package chunk

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/domain"
	domchunk "github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

func testChunk(t *testing.T) domchunk.Chunk {
	t.Helper()
	c, err := domchunk.New("id-1", "hello", "report.pdf", 1, 3,
		tagset.Of("finance", "Q1"), map[string]any{"author": "kim", "pages": 12})
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}
	return c
}

func TestSave_EncodesMetadata(t *testing.T) {
	ms := &mockStore{}
	var got []backend.Record
	ms.addFn = func(_ context.Context, collection string, records []backend.Record) error {
		if collection != "documents" {
			t.Errorf("collection = %q", collection)
		}
		got = records
		return nil
	}
	repo := New(ms, "documents")
	if err := repo.Save(context.Background(), []domchunk.Chunk{testChunk(t)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m := got[0].Metadata
	if m["source"] != "report.pdf" || m["chunk_index"] != int64(1) || m["total_chunks"] != int64(3) {
		t.Errorf("metadata = %v", m)
	}
	if m["tags"] != "finance,Q1" {
		t.Errorf("tags = %v", m["tags"])
	}
	if m["author"] != "kim" || m["pages"] != int64(12) {
		t.Errorf("extra = %v", m)
	}
}

func TestSave_WrapsBackendError(t *testing.T) {
	ms := &mockStore{addFn: func(context.Context, string, []backend.Record) error {
		return errors.New("connection refused")
	}}
	err := New(ms, "documents").Save(context.Background(), []domchunk.Chunk{testChunk(t)})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
}

func TestFromRecord_RoundTrip(t *testing.T) {
	c := testChunk(t)
	back := fromRecord(toRecord(&c))
	if back.ID() != c.ID() || back.Source() != c.Source() || back.Index() != 1 || back.Total() != 3 {
		t.Errorf("round trip mismatch: %+v", back)
	}
	if !back.Tags().Equal(c.Tags()) {
		t.Errorf("tags = %v", back.Tags().Slice())
	}
	if back.Extra()["author"] != "kim" {
		t.Errorf("extra = %v", back.Extra())
	}
	if _, ok := back.Extra()["tags"]; ok {
		t.Error("reserved key leaked into extra")
	}
}

func TestFromRecord_LegacyAndMissingFields(t *testing.T) {
	c := fromRecord(backend.Record{ID: "x", Text: "t", Metadata: backend.Metadata{
		"chunk": float64(2), "total_chunks": "5", "tags": " a , ,b,a ",
	}})
	if c.Source() != domchunk.UnknownSource {
		t.Errorf("Source() = %q", c.Source())
	}
	if c.Index() != 2 || c.Total() != 5 {
		t.Errorf("index=%d total=%d", c.Index(), c.Total())
	}
	if !c.Tags().Equal(tagset.Of("a", "b")) {
		t.Errorf("tags = %v", c.Tags().Slice())
	}
}

func TestQuery_BuildsRankedHits(t *testing.T) {
	ms := &mockStore{queryFn: func(_ context.Context, _, text string, k int, _ filter.Expression) ([]backend.Hit, error) {
		if text != "q" || k != 6 {
			t.Errorf("text=%q k=%d", text, k)
		}
		return []backend.Hit{{
			Record:   backend.Record{ID: "1", Text: "t", Metadata: backend.Metadata{"source": "a"}},
			Distance: 0.25,
		}}, nil
	}}
	hits, err := New(ms, "documents").Query(context.Background(), "q", 6, filter.Expression{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 || !hits[0].Ranked() || hits[0].Similarity() != 0.75 {
		t.Errorf("hits = %+v", hits)
	}
}

func TestScan_Unranked(t *testing.T) {
	ms := &mockStore{getFn: func(_ context.Context, _ string, _ filter.Expression, limit int) ([]backend.Record, error) {
		if limit != 0 {
			t.Errorf("limit = %d", limit)
		}
		return []backend.Record{{ID: "1", Metadata: backend.Metadata{"source": "a"}}}, nil
	}}
	hits, err := New(ms, "documents").Scan(context.Background(), filter.Expression{}, 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(hits) != 1 || hits[0].Ranked() {
		t.Errorf("hits = %+v", hits)
	}
}

func TestUpdateMetadata_NotFound(t *testing.T) {
	ms := &mockStore{updateMetadataFn: func(context.Context, string, []string, []backend.Metadata) error {
		return backend.ErrRecordNotFound
	}}
	err := New(ms, "documents").UpdateMetadata(context.Background(), []domchunk.Chunk{testChunk(t)})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateMetadata_KeepsPosition(t *testing.T) {
	var metas []backend.Metadata
	ms := &mockStore{updateMetadataFn: func(_ context.Context, _ string, _ []string, m []backend.Metadata) error {
		metas = m
		return nil
	}}
	c := testChunk(t)
	retagged := c.WithTags(tagset.Of("legal"))
	if err := New(ms, "documents").UpdateMetadata(context.Background(), []domchunk.Chunk{retagged}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if metas[0]["tags"] != "legal" || metas[0]["chunk_index"] != int64(1) || metas[0]["source"] != "report.pdf" {
		t.Errorf("metadata = %v", metas[0])
	}
}

func TestDelete_WrapsBackendError(t *testing.T) {
	ms := &mockStore{deleteFn: func(context.Context, string, []string) (int, error) {
		return 0, errors.New("boom")
	}}
	if _, err := New(ms, "documents").Delete(context.Background(), []string{"1"}); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("error = %v", err)
	}
}
