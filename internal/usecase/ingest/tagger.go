package ingest

import (
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// Tag builds one chunk per piece. Every chunk of the batch carries the same
// source, total and tags; extra must already be sanitized.
func Tag(pieces []string, src string, tags tagset.Set, extra map[string]any, newID func() string) ([]chunk.Chunk, error) {
	out := make([]chunk.Chunk, 0, len(pieces))
	for i, p := range pieces {
		c, err := chunk.New(newID(), p, src, i, len(pieces), tags, extra)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
