package ragstore

import (
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/search/result"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
	tagsuc "github.com/kailas-cloud/ragstore/internal/usecase/tags"
)

// IngestResult describes one stored text or file. Replaced counts the
// chunks of an earlier ingestion of the same source that were removed.
type IngestResult struct {
	Source   string
	ChunkIDs []string
	Tags     []string
	Replaced int
}

// Chunk is one stored piece of a document.
type Chunk struct {
	ID          string
	Text        string
	Source      string
	ChunkIndex  int
	TotalChunks int
	Tags        []string
	Metadata    map[string]any
}

// ScoredChunk is a chunk returned by Query. Score is 1 - distance,
// clamped at zero. Scored is false for chunks matched without a vector.
type ScoredChunk struct {
	Chunk
	Score    float64
	Distance float64
	Scored   bool
}

// QueryOptions restrict a semantic chunk query.
type QueryOptions struct {
	Tags            []string
	IncludeUntagged bool
	Limit           int // default 5, max 100
	// Where holds exact metadata matches, all of which must hold.
	Where map[string]string
}

// SearchOptions restrict a hybrid document search.
type SearchOptions struct {
	Tags            []string
	IncludeUntagged bool
	Limit           int // default 5, max 100
}

// MatchType tells which branch found a search result.
type MatchType string

// Match types.
const (
	MatchFilename MatchType = "filename"
	MatchContent  MatchType = "content"
)

// MatchedChunk is the chunk that produced a content match.
type MatchedChunk struct {
	ID         string
	ChunkIndex int
	Text       string
}

// SearchResult is one document found by Search or Similar.
type SearchResult struct {
	Source    string
	MatchType MatchType
	Score     float64
	Preview   string
	Matched   *MatchedChunk
}

// ListOptions restrict Documents. IncludeUntagged only matters when Tags is set.
type ListOptions struct {
	Tags            []string
	IncludeUntagged bool
	Limit           int // 0 = all
}

// Document is the per-source view over stored chunks.
type Document struct {
	Source      string
	TotalChunks int
	Tags        []string
	Metadata    map[string]any
	Preview     string
	ChunkIDs    []string
}

// TagCount is the number of documents carrying a tag.
type TagCount struct {
	Tag       string
	Documents int
}

// TagInventory lists every tag in use. Partial is set when the backend
// could not be scanned and the lists are empty.
type TagInventory struct {
	Tags    []string
	Counts  []TagCount
	Partial bool
}

// HealthStatus is the aggregated engine health.
type HealthStatus struct {
	Status string // ok, degraded, error
	Checks map[string]string
}

func ingestFromDomain(r ingestuc.Result) IngestResult {
	return IngestResult{Source: r.Source, ChunkIDs: r.ChunkIDs, Tags: r.Tags.Slice(), Replaced: r.Replaced}
}

func chunkFromDomain(c *chunk.Chunk) Chunk {
	return Chunk{
		ID:          c.ID(),
		Text:        c.Text(),
		Source:      c.Source(),
		ChunkIndex:  c.Index(),
		TotalChunks: c.Total(),
		Tags:        c.Tags().Slice(),
		Metadata:    c.Extra(),
	}
}

func scoredFromDomain(h *hit.Hit) ScoredChunk {
	c := h.Chunk()
	out := ScoredChunk{Chunk: chunkFromDomain(&c), Scored: h.Ranked()}
	if h.Ranked() {
		out.Score = h.Similarity()
		out.Distance = h.Distance()
	}
	return out
}

func resultsFromDomain(rs []result.Result) []SearchResult {
	out := make([]SearchResult, len(rs))
	for i := range rs {
		r := &rs[i]
		out[i] = SearchResult{
			Source:    r.Source(),
			MatchType: MatchType(r.MatchType()),
			Score:     r.Score(),
			Preview:   r.Preview(),
		}
		if m := r.MatchedChunk(); m != nil {
			out[i].Matched = &MatchedChunk{ID: m.ID, ChunkIndex: m.Index, Text: m.Text}
		}
	}
	return out
}

func documentFromDomain(d *source.Document) Document {
	return Document{
		Source:      d.Source(),
		TotalChunks: d.TotalChunks(),
		Tags:        d.Tags().Slice(),
		Metadata:    d.Metadata(),
		Preview:     d.Preview(),
		ChunkIDs:    d.ChunkIDs(),
	}
}

func inventoryFromDomain(inv tagsuc.Inventory) TagInventory {
	out := TagInventory{Tags: inv.Tags, Partial: inv.Partial}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	out.Counts = make([]TagCount, len(inv.Counts))
	for i, c := range inv.Counts {
		out.Counts[i] = TagCount{Tag: c.Tag, Documents: c.Documents}
	}
	return out
}
