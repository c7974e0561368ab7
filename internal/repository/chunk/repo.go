// Package chunk adapts domain chunks to backend records. The delimited tag
// string and the numeric metadata encoding live only here.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/domain"
	domchunk "github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// store is the consumer interface for chunk persistence (ISP).
type store interface {
	backend.Writer
	backend.Querier
}

// Repo reads and writes chunks in one collection.
type Repo struct {
	store      store
	collection string
}

// New creates a chunk repository bound to collection.
func New(s store, collection string) *Repo {
	return &Repo{store: s, collection: collection}
}

// Collection returns the bound collection name.
func (r *Repo) Collection() string { return r.collection }

// Save stores chunks in one backend call.
func (r *Repo) Save(ctx context.Context, chunks []domchunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]backend.Record, len(chunks))
	for i := range chunks {
		records[i] = toRecord(&chunks[i])
	}
	if err := r.store.Add(ctx, r.collection, records); err != nil {
		return domain.BackendError("add chunks", err)
	}
	return nil
}

// Query returns up to k chunks nearest to text.
func (r *Repo) Query(ctx context.Context, text string, k int, where filter.Expression) ([]hit.Hit, error) {
	raw, err := r.store.Query(ctx, r.collection, text, k, where)
	if err != nil {
		return nil, domain.BackendError("query chunks", err)
	}
	hits := make([]hit.Hit, len(raw))
	for i, h := range raw {
		hits[i] = hit.New(fromRecord(h.Record), h.Distance)
	}
	return hits, nil
}

// Scan returns chunks matching where in insertion order, unranked.
// limit <= 0 scans everything.
func (r *Repo) Scan(ctx context.Context, where filter.Expression, limit int) ([]hit.Hit, error) {
	records, err := r.store.Get(ctx, r.collection, where, limit)
	if err != nil {
		return nil, domain.BackendError("scan chunks", err)
	}
	hits := make([]hit.Hit, len(records))
	for i, rec := range records {
		hits[i] = hit.Unranked(fromRecord(rec))
	}
	return hits, nil
}

// ByIDs returns the chunks that exist among ids, in ids order.
func (r *Repo) ByIDs(ctx context.Context, ids []string) ([]domchunk.Chunk, error) {
	records, err := r.store.GetByIDs(ctx, r.collection, ids)
	if err != nil {
		return nil, domain.BackendError("get chunks", err)
	}
	out := make([]domchunk.Chunk, len(records))
	for i, rec := range records {
		out[i] = fromRecord(rec)
	}
	return out, nil
}

// Delete removes chunks by id and returns how many existed.
func (r *Repo) Delete(ctx context.Context, ids []string) (int, error) {
	n, err := r.store.Delete(ctx, r.collection, ids)
	if err != nil {
		return 0, domain.BackendError("delete chunks", err)
	}
	return n, nil
}

// UpdateMetadata rewrites tags and extra metadata of stored chunks.
// Text, source and position are written back unchanged.
func (r *Repo) UpdateMetadata(ctx context.Context, chunks []domchunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	metas := make([]backend.Metadata, len(chunks))
	for i := range chunks {
		rec := toRecord(&chunks[i])
		ids[i] = rec.ID
		metas[i] = rec.Metadata
	}
	if err := r.store.UpdateMetadata(ctx, r.collection, ids, metas); err != nil {
		if errors.Is(err, backend.ErrRecordNotFound) {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return domain.BackendError("update chunk metadata", err)
	}
	return nil
}

func toRecord(c *domchunk.Chunk) backend.Record {
	meta := make(backend.Metadata, len(c.Extra())+4)
	maps.Copy(meta, c.Extra())
	meta[domchunk.KeySource] = c.Source()
	meta[domchunk.KeyIndex] = int64(c.Index())
	meta[domchunk.KeyTotal] = int64(c.Total())
	meta[domchunk.KeyTags] = tagset.Encode(c.Tags())
	return backend.Record{ID: c.ID(), Text: c.Text(), Metadata: meta}
}

// fromRecord tolerates records written by older versions: missing source,
// the legacy "chunk" index key, numbers stored as floats or strings.
func fromRecord(rec backend.Record) domchunk.Chunk {
	m := rec.Metadata
	src, _ := m.Lookup(domchunk.KeySource)

	index, ok := asInt(m[domchunk.KeyIndex])
	if !ok {
		index, _ = asInt(m[domchunk.KeyLegacyIndex])
	}
	total, _ := asInt(m[domchunk.KeyTotal])

	var tags tagset.Set
	if raw, ok := m[domchunk.KeyTags].(string); ok {
		tags = tagset.Decode(raw)
	}

	var extra map[string]any
	for k, v := range m {
		if domchunk.IsReserved(k) {
			continue
		}
		if extra == nil {
			extra = make(map[string]any, len(m))
		}
		extra[k] = v
	}
	return domchunk.Reconstruct(rec.ID, rec.Text, src, index, total, tags, extra)
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		return n, err == nil
	default:
		return 0, false
	}
}
