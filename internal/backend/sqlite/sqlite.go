// Package sqlite is a single-file similarity backend on modernc.org/sqlite.
// Vectors are stored as little-endian float32 blobs and ranked in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// idBatchSize bounds the ids bound in one IN (...) list; SQLite rejects
// statements with more than 32766 variables.
const idBatchSize = 500

var _ backend.Backend = (*Backend)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	vector     BLOB,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_collection ON records (collection, seq);
`

// Backend stores records in one SQLite database.
type Backend struct {
	db  *sql.DB
	emb domain.Split
}

// Open creates or opens the database at path and applies the schema.
// Pass MemoryPath for a throwaway database.
func Open(path string, emb domain.Split) (*Backend, error) {
	if !emb.Valid() {
		return nil, fmt.Errorf("sqlite backend: document and query embedders are required")
	}
	if path == "" {
		path = MemoryPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Backend{db: db, emb: emb}, nil
}

// EnsureCollection registers the collection name.
func (b *Backend) EnsureCollection(ctx context.Context, name string) error {
	if _, err := b.db.ExecContext(ctx,
		`INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return fmt.Errorf("ensure collection %q: %w", name, err)
	}
	return nil
}

// Ping checks the database connection.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error { return b.db.Close() }

// Add embeds all records and writes them in one transaction. Existing ids
// keep their position and get the new content.
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

	return b.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO records (collection, id, text, metadata, vector)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET
				text = excluded.text,
				metadata = excluded.metadata,
				vector = excluded.vector`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range records {
			meta, err := backend.MarshalMetadata(r.Metadata)
			if err != nil {
				return fmt.Errorf("record %q: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, name, r.ID, r.Text, meta, float32SliceToBytes(res.Embeddings[i])); err != nil {
				return fmt.Errorf("insert record %q: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Query ranks matching records by cosine distance to text.
func (b *Backend) Query(
	ctx context.Context, name, text string, k int, where filter.Expression,
) ([]backend.Hit, error) {
	res, err := b.emb.Query.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT id, text, metadata, vector FROM records WHERE collection = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	hits := make([]backend.Hit, 0)
	for rows.Next() {
		var (
			rec  backend.Record
			meta string
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if rec.Metadata, err = backend.UnmarshalMetadata(meta); err != nil {
			return nil, fmt.Errorf("record %q: %w", rec.ID, err)
		}
		if !where.Matches(rec.Metadata.Lookup) {
			continue
		}
		hits = append(hits, backend.Hit{
			Record:   rec,
			Distance: backend.CosineDistance(res.Embedding, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return backend.TopK(hits, k), nil
}

// Get scans matching records in insertion order.
func (b *Backend) Get(ctx context.Context, name string, where filter.Expression, limit int) ([]backend.Record, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, text, metadata FROM records WHERE collection = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	out := make([]backend.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !where.Matches(rec.Metadata.Lookup) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// GetByIDs returns existing records in ids order.
func (b *Backend) GetByIDs(ctx context.Context, name string, ids []string) ([]backend.Record, error) {
	if len(ids) == 0 {
		return []backend.Record{}, nil
	}
	byID := make(map[string]backend.Record, len(ids))
	for batch := range slices.Chunk(ids, idBatchSize) {
		if err := b.loadByIDs(ctx, name, batch, byID); err != nil {
			return nil, err
		}
	}

	out := make([]backend.Record, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (b *Backend) loadByIDs(ctx context.Context, name string, ids []string, into map[string]backend.Record) error {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, text, metadata FROM records WHERE collection = ? AND id IN (`+placeholders(len(ids))+`)`,
		idArgs(name, ids)...)
	if err != nil {
		return fmt.Errorf("query records by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		into[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}
	return nil
}

// Delete removes ids and reports how many rows went away. Batches run in
// one transaction.
func (b *Backend) Delete(ctx context.Context, name string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	total := 0
	err := b.inTx(ctx, func(tx *sql.Tx) error {
		for batch := range slices.Chunk(ids, idBatchSize) {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM records WHERE collection = ? AND id IN (`+placeholders(len(batch))+`)`,
				idArgs(name, batch)...)
			if err != nil {
				return fmt.Errorf("delete records: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateMetadata replaces metadata for all ids in one transaction. A missing
// id rolls back the whole call.
func (b *Backend) UpdateMetadata(ctx context.Context, name string, ids []string, metas []backend.Metadata) error {
	if len(ids) != len(metas) {
		return fmt.Errorf("update metadata: %d ids for %d metadata maps", len(ids), len(metas))
	}
	return b.inTx(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			meta, err := backend.MarshalMetadata(metas[i])
			if err != nil {
				return fmt.Errorf("record %q: %w", id, err)
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE records SET metadata = ? WHERE collection = ? AND id = ?`, meta, name, id)
			if err != nil {
				return fmt.Errorf("update record %q: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: %s", backend.ErrRecordNotFound, id)
			}
		}
		return nil
	})
}

func (b *Backend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (backend.Record, error) {
	var (
		rec  backend.Record
		meta string
		err  error
	)
	if err = rows.Scan(&rec.ID, &rec.Text, &meta); err != nil {
		return backend.Record{}, fmt.Errorf("scan record: %w", err)
	}
	if rec.Metadata, err = backend.UnmarshalMetadata(meta); err != nil {
		return backend.Record{}, fmt.Errorf("record %q: %w", rec.ID, err)
	}
	return rec, nil
}

// idArgs binds the collection followed by ids.
func idArgs(name string, ids []string) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, name)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
