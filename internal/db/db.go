// Package db is the storage facade under the Valkey/Redis similarity
// backend and the embedding cache. It speaks in hashes, plain keys and FT
// indexes; chunk semantics live one layer up.
package db

import (
	"context"
	"time"
)

// Store is everything the valkey adapter implements. Consumers declare the
// subset they need.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one HSET: a key and the fields written to it.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore reads and writes chunk hashes. The Multi variants pipeline one
// command per key; an error names the first key that failed.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	DelMulti(ctx context.Context, keys []string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore holds opaque values. Get returns ErrKeyNotFound for a missing key.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value; ttl <= 0 keeps it until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager creates FT indexes. CreateIndex returns ErrIndexExists when
// another writer won the race.
type IndexManager interface {
	CreateIndex(ctx context.Context, idx *Index) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher queries FT indexes. A missing index yields ErrIndexNotFound.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchList(ctx context.Context, q *ListQuery) (*SearchResult, error)
}
