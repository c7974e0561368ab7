package source

import (
	"maps"

	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/search/result"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// Document is the derived document-level view over the chunks of one source.
type Document struct {
	source      string
	totalChunks int
	tags        tagset.Set
	metadata    map[string]any
	preview     string
	bestScore   float64
	chunkIDs    []string
}

// Source returns the display source.
func (d *Document) Source() string { return d.source }

// TotalChunks returns the member count, or the stored total when larger.
func (d *Document) TotalChunks() int { return d.totalChunks }

// Tags returns the first non-empty tag set seen in the group.
func (d *Document) Tags() tagset.Set { return d.tags }

// Metadata returns merged extra metadata (reserved keys excluded).
func (d *Document) Metadata() map[string]any { return d.metadata }

// Preview returns an excerpt of the first member chunk.
func (d *Document) Preview() string { return d.preview }

// BestScore returns the highest member similarity (0 for scan results).
func (d *Document) BestScore() float64 { return d.bestScore }

// ChunkIDs returns member ids in hit order.
func (d *Document) ChunkIDs() []string { return d.chunkIDs }

// Aggregate groups hits by normalized source. Groups keep the order in which
// their source first appears. Pure function.
func Aggregate(hits []hit.Hit) []Document {
	if len(hits) == 0 {
		return []Document{}
	}
	index := make(map[string]int)
	docs := make([]Document, 0)
	storedTotal := make([]int, 0)

	for i := range hits {
		h := &hits[i]
		c := h.Chunk()
		key := Normalize(c.Source())

		pos, ok := index[key]
		if !ok {
			pos = len(docs)
			index[key] = pos
			docs = append(docs, Document{
				source:  key,
				preview: result.Preview(c.Text()),
			})
			storedTotal = append(storedTotal, c.Total())
		}
		d := &docs[pos]
		d.chunkIDs = append(d.chunkIDs, c.ID())
		if d.tags.IsEmpty() && !c.Tags().IsEmpty() {
			d.tags = c.Tags()
		}
		if len(c.Extra()) > 0 {
			if d.metadata == nil {
				d.metadata = make(map[string]any, len(c.Extra()))
			}
			maps.Copy(d.metadata, c.Extra())
		}
		if s := h.Similarity(); s > d.bestScore {
			d.bestScore = s
		}
	}

	for i := range docs {
		docs[i].totalChunks = max(len(docs[i].chunkIDs), storedTotal[i])
		if docs[i].metadata == nil {
			docs[i].metadata = map[string]any{}
		}
	}
	return docs
}
