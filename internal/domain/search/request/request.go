package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query length in bytes.
	MaxQueryLength = 4096
	DefaultLimit   = 5
	MaxLimit       = 100
)

// Search is a validated hybrid (filename + content) query.
type Search struct {
	query           string
	tags            tagset.Set
	includeUntagged bool
	limit           int
}

// NewSearch validates and normalizes hybrid search parameters.
// Defaults: limit=5, clamped to MaxLimit.
func NewSearch(query string, tags tagset.Set, includeUntagged bool, limit int) (Search, error) {
	q, err := validateQuery(query)
	if err != nil {
		return Search{}, err
	}
	return Search{
		query:           q,
		tags:            tags,
		includeUntagged: includeUntagged,
		limit:           clampLimit(limit),
	}, nil
}

// Query returns the search text, trimmed.
func (r *Search) Query() string { return r.query }

// Tags returns the requested tag predicate (empty = no filtering).
func (r *Search) Tags() tagset.Set { return r.tags }

// IncludeUntagged reports whether untagged chunks pass a non-empty predicate.
func (r *Search) IncludeUntagged() bool { return r.includeUntagged }

// Limit returns the maximum number of results.
func (r *Search) Limit() int { return r.limit }

// Query is a validated chunk-level semantic query with a tag predicate.
type Query struct {
	text            string
	tags            tagset.Set
	includeUntagged bool
	limit           int
	where           filter.Expression
}

// NewQuery validates a tag-filtered semantic query.
func NewQuery(text string, tags tagset.Set, includeUntagged bool, limit int, where filter.Expression) (Query, error) {
	q, err := validateQuery(text)
	if err != nil {
		return Query{}, err
	}
	return Query{
		text:            q,
		tags:            tags,
		includeUntagged: includeUntagged,
		limit:           clampLimit(limit),
		where:           where,
	}, nil
}

// Text returns the query text.
func (r *Query) Text() string { return r.text }

// Tags returns the requested tag predicate.
func (r *Query) Tags() tagset.Set { return r.tags }

// IncludeUntagged reports whether untagged chunks pass a non-empty predicate.
func (r *Query) IncludeUntagged() bool { return r.includeUntagged }

// Limit returns the maximum number of hits.
func (r *Query) Limit() int { return r.limit }

// Where returns the scalar metadata pre-filter passed to the backend.
func (r *Query) Where() filter.Expression { return r.where }

func validateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", domain.NewValidation("query", "query is required")
	}
	if len(q) > MaxQueryLength {
		return "", domain.NewValidation("query", fmt.Sprintf("query too long (max %d chars)", MaxQueryLength))
	}
	return q, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
