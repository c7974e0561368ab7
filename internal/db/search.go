package db

import "github.com/kailas-cloud/ragstore/internal/domain/search/filter"

// KNNQuery asks for the K hashes nearest to Vector. Filters become TAG
// pre-filters, so every condition key must be an indexed tag field.
type KNNQuery struct {
	IndexName    string
	VectorField  string // default "__vector"
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string // empty returns every field
}

// ListQuery pages through an index without ranking. With no filter the
// store walks KeyPrefix instead, since valkey-search refuses a bare "*".
type ListQuery struct {
	IndexName    string
	KeyPrefix    string
	Filters      filter.Expression
	Offset       int
	Limit        int // <= 0 means everything, for prefix walks
	ReturnFields []string
}

// SearchResult holds one page of hits and the total match count.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is one matched hash. Distance is the cosine distance reported
// in __vector_score; list queries leave it zero.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
