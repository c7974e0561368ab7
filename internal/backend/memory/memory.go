// Package memory is an in-process similarity backend. It ranks by brute-force
// cosine distance and suits tests, demos and small corpora.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
)

var _ backend.Backend = (*Backend)(nil)

type entry struct {
	rec backend.Record
	vec []float32
}

type collection struct {
	order   []string
	entries map[string]*entry
}

// Backend keeps every collection in memory behind a single RWMutex.
type Backend struct {
	emb domain.Split

	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty backend. Documents are embedded with emb.Document
// and queries with emb.Query.
func New(emb domain.Split) (*Backend, error) {
	if !emb.Valid() {
		return nil, fmt.Errorf("memory backend: document and query embedders are required")
	}
	return &Backend{emb: emb, collections: make(map[string]*collection)}, nil
}

// EnsureCollection creates the collection if missing.
func (b *Backend) EnsureCollection(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collection(name)
	return nil
}

// Ping always succeeds.
func (b *Backend) Ping(context.Context) error { return nil }

// Close drops all data.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collections = make(map[string]*collection)
	return nil
}

// Add embeds every record first and only then writes, so an embedding failure
// leaves the collection untouched. Existing ids are replaced in place.
func (b *Backend) Add(ctx context.Context, name string, records []backend.Record) error {
	if len(records) == 0 {
		return nil
	}
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	res, err := domain.EmbedAll(ctx, b.emb.Document, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.collection(name)
	for i, r := range records {
		e := &entry{rec: copyRecord(r), vec: res.Embeddings[i]}
		if _, exists := c.entries[r.ID]; !exists {
			c.order = append(c.order, r.ID)
		}
		c.entries[r.ID] = e
	}
	return nil
}

// Query ranks the records matching where by cosine distance to text.
func (b *Backend) Query(
	ctx context.Context, name, text string, k int, where filter.Expression,
) ([]backend.Hit, error) {
	res, err := b.emb.Query.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return []backend.Hit{}, nil
	}
	hits := make([]backend.Hit, 0, len(c.order))
	for _, id := range c.order {
		e := c.entries[id]
		if !where.Matches(e.rec.Metadata.Lookup) {
			continue
		}
		hits = append(hits, backend.Hit{
			Record:   copyRecord(e.rec),
			Distance: backend.CosineDistance(res.Embedding, e.vec),
		})
	}
	return backend.TopK(hits, k), nil
}

// Get scans records in insertion order.
func (b *Backend) Get(_ context.Context, name string, where filter.Expression, limit int) ([]backend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return []backend.Record{}, nil
	}
	out := make([]backend.Record, 0, len(c.order))
	for _, id := range c.order {
		e := c.entries[id]
		if !where.Matches(e.rec.Metadata.Lookup) {
			continue
		}
		out = append(out, copyRecord(e.rec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetByIDs returns existing records in ids order.
func (b *Backend) GetByIDs(_ context.Context, name string, ids []string) ([]backend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return []backend.Record{}, nil
	}
	out := make([]backend.Record, 0, len(ids))
	for _, id := range ids {
		if e, ok := c.entries[id]; ok {
			out = append(out, copyRecord(e.rec))
		}
	}
	return out, nil
}

// Delete removes ids and reports how many existed.
func (b *Backend) Delete(_ context.Context, name string, ids []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return 0, nil
	}
	removed := 0
	for _, id := range ids {
		if _, ok := c.entries[id]; ok {
			delete(c.entries, id)
			removed++
		}
	}
	if removed > 0 {
		c.order = slices.DeleteFunc(c.order, func(id string) bool {
			_, keep := c.entries[id]
			return !keep
		})
	}
	return removed, nil
}

// UpdateMetadata replaces metadata for every id, or for none if any is missing.
func (b *Backend) UpdateMetadata(_ context.Context, name string, ids []string, metas []backend.Metadata) error {
	if len(ids) != len(metas) {
		return fmt.Errorf("update metadata: %d ids for %d metadata maps", len(ids), len(metas))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrRecordNotFound, ids)
	}
	for _, id := range ids {
		if _, ok := c.entries[id]; !ok {
			return fmt.Errorf("%w: %s", backend.ErrRecordNotFound, id)
		}
	}
	for i, id := range ids {
		c.entries[id].rec.Metadata = metas[i].Clone()
	}
	return nil
}

// Len returns the number of records in a collection.
func (b *Backend) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.collections[name]; ok {
		return len(c.order)
	}
	return 0
}

func (b *Backend) collection(name string) *collection {
	c, ok := b.collections[name]
	if !ok {
		c = &collection{entries: make(map[string]*entry)}
		b.collections[name] = c
	}
	return c
}

func copyRecord(r backend.Record) backend.Record {
	return backend.Record{ID: r.ID, Text: r.Text, Metadata: r.Metadata.Clone()}
}
