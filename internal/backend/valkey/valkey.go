// Package valkey is the similarity backend on a Valkey (valkey-search) or
// Redis 8 server. Each record is one HASH; one HNSW index per collection
// serves KNN queries.
package valkey

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/db"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
)

const (
	fieldContent   = "__content"
	fieldVector    = "__vector"
	fieldMeta      = "__meta"
	fieldSourceKey = "__source_key"
	fieldSeq       = "__seq"

	sourceKey = "source"

	listPageSize = 1000
	// residualOverFetch widens KNN when part of the filter runs client-side.
	residualOverFetch = 4
)

var returnFields = []string{fieldContent, fieldMeta, fieldSeq}

// store is the consumer interface for the backend (ISP).
type store interface {
	db.Pinger
	db.HashStore
	db.IndexManager
	db.Searcher
	Close()
}

// Config controls key layout and the vector index.
type Config struct {
	Prefix      string
	Dimensions  int
	HNSWM       int
	EFConstruct int
}

var _ backend.Backend = (*Backend)(nil)

// Backend implements backend.Backend over db.Store.
type Backend struct {
	store store
	emb   domain.Split
	cfg   Config
	now   func() time.Time
}

// New creates a backend. Dimensions must match the document embedder.
func New(s store, emb domain.Split, cfg Config) (*Backend, error) {
	if !emb.Valid() {
		return nil, fmt.Errorf("valkey backend: document and query embedders are required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("valkey backend: dimensions must be positive")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ragstore:"
	}
	if cfg.HNSWM <= 0 {
		cfg.HNSWM = 16
	}
	if cfg.EFConstruct <= 0 {
		cfg.EFConstruct = 200
	}
	return &Backend{store: s, emb: emb, cfg: cfg, now: time.Now}, nil
}

// EnsureCollection creates the collection index when missing.
func (b *Backend) EnsureCollection(ctx context.Context, name string) error {
	idx := b.indexName(name)
	exists, err := b.store.IndexExists(ctx, idx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", idx, err)
	}
	if exists {
		return nil
	}
	def, err := db.NewIndex(idx).
		Prefix(b.keyPrefix(name)).
		Tag(fieldSourceKey, ",").
		Numeric(fieldSeq).
		Vector(fieldVector, b.cfg.Dimensions, b.cfg.HNSWM, b.cfg.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index %s: %w", idx, err)
	}
	if err := b.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", idx, err)
	}
	return nil
}

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error { return b.store.Ping(ctx) }

// Close releases the connection.
func (b *Backend) Close() error {
	b.store.Close()
	return nil
}

// Add embeds and writes all records in one pipeline. If any HSET fails the
// keys of this call are deleted again. Replacing an id moves it to the end
// of insertion order.
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

	base := b.now().UnixNano()
	items := make([]db.HashSetItem, len(records))
	keys := make([]string, len(records))
	for i, r := range records {
		meta, err := backend.MarshalMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %q: %w", r.ID, err)
		}
		keys[i] = b.key(name, r.ID)
		items[i] = db.HashSetItem{Key: keys[i], Fields: map[string]string{
			fieldContent:   r.Text,
			fieldVector:    vectorToBytes(res.Embeddings[i]),
			fieldMeta:      meta,
			fieldSourceKey: sourceTag(r.Metadata),
			fieldSeq:       strconv.FormatInt(base+int64(i), 10),
		}}
	}

	if err := b.store.HSetMulti(ctx, items); err != nil {
		if _, cleanupErr := b.store.DelMulti(ctx, keys); cleanupErr != nil {
			return errors.Join(fmt.Errorf("hset: %w", err), fmt.Errorf("rollback: %w", cleanupErr))
		}
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

// Query runs KNN with the source condition pushed down as a TAG pre-filter.
// The full expression is re-checked on every returned entry.
func (b *Backend) Query(
	ctx context.Context, name, text string, k int, where filter.Expression,
) ([]backend.Hit, error) {
	if k <= 0 {
		return []backend.Hit{}, nil
	}
	res, err := b.emb.Query.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	pushed, residual := pushdown(where)
	fetch := k
	if residual {
		fetch = k * residualOverFetch
	}
	result, err := b.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    b.indexName(name),
		VectorField:  fieldVector,
		Filters:      pushed,
		Vector:       res.Embedding,
		K:            fetch,
		ReturnFields: returnFields,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return []backend.Hit{}, nil
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]backend.Hit, 0, len(result.Entries))
	for _, e := range result.Entries {
		rec, err := b.toRecord(name, e.Key, e.Fields)
		if err != nil {
			return nil, err
		}
		if !where.Matches(rec.Metadata.Lookup) {
			continue
		}
		hits = append(hits, backend.Hit{Record: rec, Distance: e.Distance})
	}
	return backend.TopK(hits, k), nil
}

// Get pages through the collection and returns matches in insertion order.
func (b *Backend) Get(ctx context.Context, name string, where filter.Expression, limit int) ([]backend.Record, error) {
	pushed, _ := pushdown(where)

	type seqRecord struct {
		rec backend.Record
		seq int64
	}
	var all []seqRecord
	for offset := 0; ; offset += listPageSize {
		result, err := b.store.SearchList(ctx, &db.ListQuery{
			IndexName:    b.indexName(name),
			KeyPrefix:    b.keyPrefix(name),
			Filters:      pushed,
			Offset:       offset,
			Limit:        listPageSize,
			ReturnFields: returnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", name, err)
		}
		for _, e := range result.Entries {
			rec, err := b.toRecord(name, e.Key, e.Fields)
			if err != nil {
				return nil, err
			}
			if !where.Matches(rec.Metadata.Lookup) {
				continue
			}
			seq, _ := strconv.ParseInt(e.Fields[fieldSeq], 10, 64)
			all = append(all, seqRecord{rec: rec, seq: seq})
		}
		if len(result.Entries) == 0 || offset+listPageSize >= result.Total {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]backend.Record, len(all))
	for i, s := range all {
		out[i] = s.rec
	}
	return out, nil
}

// GetByIDs fetches hashes directly by key.
func (b *Backend) GetByIDs(ctx context.Context, name string, ids []string) ([]backend.Record, error) {
	if len(ids) == 0 {
		return []backend.Record{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(name, id)
	}
	hashes, err := b.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	out := make([]backend.Record, 0, len(ids))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		rec, err := b.toRecord(name, keys[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes ids and reports how many existed.
func (b *Backend) Delete(ctx context.Context, name string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(name, id)
	}
	n, err := b.store.DelMulti(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}
	return n, nil
}

// UpdateMetadata rewrites the metadata fields of existing records. All ids
// are checked before anything is written.
func (b *Backend) UpdateMetadata(ctx context.Context, name string, ids []string, metas []backend.Metadata) error {
	if len(ids) != len(metas) {
		return fmt.Errorf("update metadata: %d ids for %d metadata maps", len(ids), len(metas))
	}
	items := make([]db.HashSetItem, len(ids))
	for i, id := range ids {
		key := b.key(name, id)
		ok, err := b.store.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("exists %s: %w", key, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", backend.ErrRecordNotFound, id)
		}
		meta, err := backend.MarshalMetadata(metas[i])
		if err != nil {
			return fmt.Errorf("record %q: %w", id, err)
		}
		items[i] = db.HashSetItem{Key: key, Fields: map[string]string{
			fieldMeta:      meta,
			fieldSourceKey: sourceTag(metas[i]),
		}}
	}
	if err := b.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset metadata: %w", err)
	}
	return nil
}

func (b *Backend) toRecord(name, key string, fields map[string]string) (backend.Record, error) {
	meta, err := backend.UnmarshalMetadata(fields[fieldMeta])
	if err != nil {
		return backend.Record{}, fmt.Errorf("record %s: %w", key, err)
	}
	return backend.Record{
		ID:       strings.TrimPrefix(key, b.keyPrefix(name)),
		Text:     fields[fieldContent],
		Metadata: meta,
	}, nil
}

func (b *Backend) keyPrefix(name string) string { return b.cfg.Prefix + name + ":" }

func (b *Backend) key(name, id string) string { return b.keyPrefix(name) + id }

func (b *Backend) indexName(name string) string { return b.cfg.Prefix + name + ":idx" }

// pushdown extracts must-conditions on source as a TAG filter over the
// hashed source field. residual reports whether other conditions remain.
func pushdown(where filter.Expression) (filter.Expression, bool) {
	var pushed []filter.Condition
	residual := len(where.MustNot()) > 0
	for _, c := range where.Must() {
		if c.Key() != sourceKey {
			residual = true
			continue
		}
		hashed := make([]string, len(c.Values()))
		for i, v := range c.Values() {
			hashed[i] = hashSource(v)
		}
		cond, err := filter.NewAnyOf(fieldSourceKey, hashed...)
		if err != nil {
			residual = true
			continue
		}
		pushed = append(pushed, cond)
	}
	expr, err := filter.NewExpression(pushed, nil)
	if err != nil {
		return filter.Expression{}, true
	}
	return expr, residual
}

func sourceTag(m backend.Metadata) string {
	v, ok := m.Lookup(sourceKey)
	if !ok {
		return ""
	}
	return hashSource(v)
}

// hashSource keeps arbitrary paths out of TAG escaping rules.
func hashSource(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return rueidis.BinaryString(buf)
}
