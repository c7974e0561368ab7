// Package backend defines the similarity backend capability the retrieval
// engine runs on, plus helpers shared by its adapters.
package backend

import (
	"context"
	"errors"
	"maps"
	"strconv"

	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
)

// ErrRecordNotFound is returned by UpdateMetadata when an id does not exist.
var ErrRecordNotFound = errors.New("backend: record not found")

// Metadata holds scalar fields attached to a record: string, bool,
// int64 or float64.
type Metadata map[string]any

// Lookup returns the string form of a scalar field, for filter evaluation.
func (m Metadata) Lookup(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	return maps.Clone(m)
}

// Record is one stored text with its metadata.
type Record struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Hit is a record returned by Query with its distance (smaller is closer).
type Hit struct {
	Record
	Distance float64
}

// Writer mutates a collection.
type Writer interface {
	// Add stores records. A failed call leaves none of them behind.
	Add(ctx context.Context, collection string, records []Record) error
	// Delete removes ids and reports how many existed.
	Delete(ctx context.Context, collection string, ids []string) (int, error)
	// UpdateMetadata replaces the metadata of existing records; metas[i] belongs to ids[i].
	UpdateMetadata(ctx context.Context, collection string, ids []string, metas []Metadata) error
}

// Querier reads a collection.
type Querier interface {
	// Query returns up to k records nearest to text, ascending by distance.
	Query(ctx context.Context, collection, text string, k int, where filter.Expression) ([]Hit, error)
	// Get scans records matching where in insertion order. limit <= 0 returns all.
	Get(ctx context.Context, collection string, where filter.Expression, limit int) ([]Record, error)
	// GetByIDs returns the records that exist among ids, in ids order.
	GetByIDs(ctx context.Context, collection string, ids []string) ([]Record, error)
}

// Backend is the full capability set.
type Backend interface {
	Writer
	Querier
	EnsureCollection(ctx context.Context, collection string) error
	Ping(ctx context.Context) error
	Close() error
}
