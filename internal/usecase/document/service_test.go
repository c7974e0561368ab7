package document

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// --- Mocks ---

type mockRepo struct {
	chunks    []chunk.Chunk
	scanErr   error
	deleteErr error
	updateErr error
	deleted   []string
	updated   []chunk.Chunk
}

func (m *mockRepo) Scan(context.Context, filter.Expression, int) ([]hit.Hit, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	out := make([]hit.Hit, len(m.chunks))
	for i, c := range m.chunks {
		out[i] = hit.Unranked(c)
	}
	return out, nil
}

func (m *mockRepo) ByIDs(_ context.Context, ids []string) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for _, c := range m.chunks {
		if slices.Contains(ids, c.ID()) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, ids []string) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	n := 0
	m.chunks = slices.DeleteFunc(m.chunks, func(c chunk.Chunk) bool {
		if slices.Contains(ids, c.ID()) {
			n++
			m.deleted = append(m.deleted, c.ID())
			return true
		}
		return false
	})
	return n, nil
}

func (m *mockRepo) UpdateMetadata(_ context.Context, chunks []chunk.Chunk) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = append(m.updated, chunks...)
	return nil
}

func mk(id, src string, index int, tags ...string) chunk.Chunk {
	return chunk.Reconstruct(id, "text "+id, src, index, 0, tagset.Of(tags...), map[string]any{"lang": "en"})
}

func fixture() *mockRepo {
	return &mockRepo{chunks: []chunk.Chunk{
		mk("1", "/tmp/up1/report.pdf", 0, "finance"),
		mk("2", "/tmp/up1/report.pdf", 1, "finance"),
		mk("3", "notes.txt", 0),
		mk("4", "contract.docx", 0, "legal"),
	}}
}

// --- Tests ---

func TestList(t *testing.T) {
	tests := []struct {
		name     string
		tags     tagset.Set
		untagged bool
		limit    int
		want     []string
	}{
		{"all", tagset.Set{}, true, 0, []string{"report.pdf", "notes.txt", "contract.docx"}},
		{"by tag", tagset.Of("legal"), false, 0, []string{"contract.docx"}},
		{"by tag with untagged", tagset.Of("finance"), true, 0, []string{"report.pdf", "notes.txt"}},
		{"limit after aggregation", tagset.Set{}, true, 2, []string{"report.pdf", "notes.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := New(fixture()).List(context.Background(), tt.tags, tt.untagged, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for i := range docs {
				got = append(got, docs[i].Source())
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("sources = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestList_TotalChunks(t *testing.T) {
	docs, err := New(fixture()).List(context.Background(), tagset.Of("finance"), false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].TotalChunks() != 2 {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestList_BackendError(t *testing.T) {
	repo := &mockRepo{scanErr: domain.BackendError("scan chunks", errors.New("down"))}
	if _, err := New(repo).List(context.Background(), tagset.Set{}, true, 0); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("error = %v", err)
	}
}

func TestGetChunk(t *testing.T) {
	svc := New(fixture())
	c, err := svc.GetChunk(context.Background(), "3")
	if err != nil {
		t.Fatal(err)
	}
	if c.Source() != "notes.txt" {
		t.Errorf("source = %q", c.Source())
	}

	if _, err := svc.GetChunk(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing chunk error = %v", err)
	}
	if _, err := svc.GetChunk(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty id error = %v", err)
	}
}

func TestDeleteChunk(t *testing.T) {
	repo := fixture()
	svc := New(repo)
	if err := svc.DeleteChunk(context.Background(), "4"); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteChunk(context.Background(), "4"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func TestDeleteSource_MatchesTempPath(t *testing.T) {
	repo := fixture()
	svc := New(repo)

	n, err := svc.DeleteSource(context.Background(), "report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || !slices.Equal(repo.deleted, []string{"1", "2"}) {
		t.Errorf("deleted %d: %v", n, repo.deleted)
	}

	_, err = svc.DeleteSource(context.Background(), "report.pdf")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "source" {
		t.Errorf("repeat delete error = %v", err)
	}
}

func TestDeleteSource_Validation(t *testing.T) {
	if _, err := New(fixture()).DeleteSource(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("error = %v", err)
	}
}

func TestDeleteSource_BackendError(t *testing.T) {
	repo := fixture()
	repo.deleteErr = domain.BackendError("delete chunks", errors.New("down"))
	if _, err := New(repo).DeleteSource(context.Background(), "notes.txt"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("error = %v", err)
	}
}

func TestRetag(t *testing.T) {
	repo := fixture()
	n, err := New(repo).Retag(context.Background(), "report.pdf", tagset.Of("archive", "finance"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(repo.updated) != 2 {
		t.Fatalf("updated %d chunks", n)
	}
	for i := range repo.updated {
		c := repo.updated[i]
		if !slices.Equal(c.Tags().Slice(), []string{"archive", "finance"}) {
			t.Errorf("tags = %v", c.Tags().Slice())
		}
		if c.Text() != "text "+c.ID() || c.Extra()["lang"] != "en" {
			t.Errorf("retag must leave text and extra metadata untouched: %+v", c)
		}
	}
}

func TestRetag_UnknownSource(t *testing.T) {
	if _, err := New(fixture()).Retag(context.Background(), "nope", tagset.Of("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestUpdateChunkMetadata(t *testing.T) {
	repo := fixture()
	svc := New(repo)

	c, err := svc.UpdateChunkMetadata(context.Background(), "3", map[string]any{"author": "ann", "lang": nil})
	if err != nil {
		t.Fatal(err)
	}
	if c.Extra()["author"] != "ann" {
		t.Errorf("extra = %v", c.Extra())
	}
	if _, ok := c.Extra()["lang"]; ok {
		t.Error("nil value should remove the key")
	}
	if len(repo.updated) != 1 {
		t.Errorf("expected one update, got %d", len(repo.updated))
	}
}

func TestUpdateChunkMetadata_Rejects(t *testing.T) {
	svc := New(fixture())
	tests := []struct {
		name  string
		id    string
		patch map[string]any
		want  error
	}{
		{"reserved key", "3", map[string]any{"source": "x"}, domain.ErrValidation},
		{"missing chunk", "nope", map[string]any{"a": "b"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateChunkMetadata(context.Background(), tt.id, tt.patch)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateChunkMetadata_BackendError(t *testing.T) {
	repo := fixture()
	repo.updateErr = fmt.Errorf("%w: gone", domain.ErrNotFound)
	if _, err := New(repo).UpdateChunkMetadata(context.Background(), "3", map[string]any{"a": "b"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v", err)
	}
}
