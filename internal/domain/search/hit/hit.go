// Package hit carries chunk candidates returned by the similarity backend.
package hit

import (
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// Hit is a decoded chunk plus its distance to the query.
// Scan results carry no distance; Ranked is false for them.
type Hit struct {
	chunk    chunk.Chunk
	distance float64
	ranked   bool
}

// New creates a ranked hit.
func New(c chunk.Chunk, distance float64) Hit {
	return Hit{chunk: c, distance: distance, ranked: true}
}

// Unranked wraps a chunk returned by a metadata scan.
func Unranked(c chunk.Chunk) Hit {
	return Hit{chunk: c}
}

// Chunk returns the underlying chunk.
func (h *Hit) Chunk() chunk.Chunk { return h.chunk }

// Source returns the chunk source as stored.
func (h *Hit) Source() string { return h.chunk.Source() }

// Tags returns the chunk tags.
func (h *Hit) Tags() tagset.Set { return h.chunk.Tags() }

// Distance returns the backend distance (smaller is closer).
func (h *Hit) Distance() float64 { return h.distance }

// Ranked reports whether the hit came from a similarity query.
func (h *Hit) Ranked() bool { return h.ranked }

// Similarity maps distance onto [0, 1]: max(0, 1-d).
func (h *Hit) Similarity() float64 {
	if !h.ranked {
		return 0
	}
	return Similarity(h.distance)
}

// Similarity converts a distance into a score in [0, 1].
func Similarity(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
