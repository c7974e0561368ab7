package chunk

import (
	"fmt"
	"maps"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// Stored metadata keys owned by the engine. Callers cannot set them through
// extra metadata.
const (
	KeySource      = "source"
	KeyIndex       = "chunk_index"
	KeyLegacyIndex = "chunk"
	KeyTotal       = "total_chunks"
	KeyTags        = "tags"
)

// UnknownSource labels chunks whose stored record lost its source field.
const UnknownSource = "Unknown"

// IsReserved reports whether key is one of the engine-owned metadata keys.
func IsReserved(key string) bool {
	switch key {
	case KeySource, KeyIndex, KeyLegacyIndex, KeyTotal, KeyTags:
		return true
	}
	return false
}

// Chunk is one retrievable unit of a source document (immutable value object).
type Chunk struct {
	id     string
	text   string
	source string
	index  int
	total  int
	tags   tagset.Set
	extra  map[string]any
}

// New validates and creates a Chunk.
// Reserved keys in extra are discarded; values must be scalars.
func New(id, text, source string, index, total int, tags tagset.Set, extra map[string]any) (Chunk, error) {
	if id == "" {
		return Chunk{}, domain.NewValidation("id", "chunk id is required")
	}
	if text == "" {
		return Chunk{}, domain.NewValidation("text", "chunk text is required")
	}
	if source == "" {
		return Chunk{}, domain.NewValidation("source", "source is required")
	}
	if index < 0 || total <= 0 || index >= total {
		return Chunk{}, domain.NewValidation("chunk_index",
			fmt.Sprintf("index %d out of range for %d chunks", index, total))
	}
	clean, err := SanitizeExtra(extra)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{
		id: id, text: text, source: source,
		index: index, total: total,
		tags: tags, extra: clean,
	}, nil
}

// Reconstruct creates a Chunk without validation (storage hydration).
// Missing fields are tolerated: total 0 means "not recorded".
func Reconstruct(id, text, source string, index, total int, tags tagset.Set, extra map[string]any) Chunk {
	if source == "" {
		source = UnknownSource
	}
	return Chunk{id: id, text: text, source: source, index: index, total: total, tags: tags, extra: extra}
}

// ID returns the opaque chunk identifier.
func (c *Chunk) ID() string { return c.id }

// Text returns the chunk content.
func (c *Chunk) Text() string { return c.text }

// Source returns the logical document identifier exactly as stored.
func (c *Chunk) Source() string { return c.source }

// Index returns the zero-based position within the source.
func (c *Chunk) Index() int { return c.index }

// Total returns the sibling count recorded at ingestion (0 if unknown).
func (c *Chunk) Total() int { return c.total }

// Tags returns the canonical tag set.
func (c *Chunk) Tags() tagset.Set { return c.tags }

// Extra returns the caller-supplied metadata.
func (c *Chunk) Extra() map[string]any { return c.extra }

// WithTags returns a copy carrying tags. Only metadata changes.
func (c *Chunk) WithTags(tags tagset.Set) Chunk {
	cp := *c
	cp.tags = tags
	return cp
}

// WithExtra returns a copy with patch merged over the current extra metadata.
// A nil value in patch removes the key.
func (c *Chunk) WithExtra(patch map[string]any) (Chunk, error) {
	merged := maps.Clone(c.extra)
	if merged == nil {
		merged = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	clean, err := SanitizeExtra(merged)
	if err != nil {
		return Chunk{}, err
	}
	cp := *c
	cp.extra = clean
	return cp, nil
}

// SanitizeExtra drops reserved keys and rejects non-scalar values.
// Integers are normalized to int64 and floats to float64.
func SanitizeExtra(extra map[string]any) (map[string]any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		if k == "" || IsReserved(k) {
			continue
		}
		norm, ok := normalizeScalar(v)
		if !ok {
			return nil, domain.NewValidation("metadata."+k, fmt.Sprintf("unsupported value type %T", v))
		}
		out[k] = norm
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func normalizeScalar(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float32:
		return float64(x), true
	default:
		return nil, false
	}
}
