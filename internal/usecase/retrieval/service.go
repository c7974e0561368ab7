package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	"github.com/kailas-cloud/ragstore/internal/logger"
	"github.com/kailas-cloud/ragstore/internal/metrics"
)

// ChunkQuerier runs a raw similarity query.
type ChunkQuerier interface {
	Query(ctx context.Context, text string, k int, where filter.Expression) ([]hit.Hit, error)
}

// TagFilteringQuerier adds over-fetch and the tag predicate on top of a raw
// querier, keeping tags out of backend query construction.
type TagFilteringQuerier struct {
	inner  ChunkQuerier
	factor int
}

// NewTagFilteringQuerier wraps inner. factor < 1 falls back to the default.
func NewTagFilteringQuerier(inner ChunkQuerier, factor int) *TagFilteringQuerier {
	if factor < 1 {
		factor = DefaultOverFetchFactor
	}
	return &TagFilteringQuerier{inner: inner, factor: factor}
}

// Query returns up to limit hits passing the tag predicate. Without tags it
// asks the backend for exactly limit hits. A short result is not an error.
func (q *TagFilteringQuerier) Query(
	ctx context.Context, text string, limit int,
	tags tagset.Set, includeUntagged bool, where filter.Expression,
) ([]hit.Hit, error) {
	k := limit
	if !tags.IsEmpty() {
		k = OverFetch(limit, q.factor)
	}
	raw, err := q.inner.Query(ctx, text, k, where)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	hits := FilterByTags(raw, tags, includeUntagged, limit)
	if !tags.IsEmpty() && len(hits) < limit {
		metrics.TagFilterShortTotal.Inc()
		logger.FromContext(ctx).Debug("tag filter returned short result",
			zap.Int("requested", limit),
			zap.Int("fetched", len(raw)),
			zap.Int("kept", len(hits)),
		)
	}
	return hits, nil
}

// Service serves tag-filtered chunk queries.
type Service struct {
	querier *TagFilteringQuerier
}

// New creates a retrieval service.
func New(querier *TagFilteringQuerier) *Service {
	return &Service{querier: querier}
}

// Query returns the chunks nearest to the request text that pass its tag
// predicate and metadata filter.
func (s *Service) Query(ctx context.Context, req *request.Query) ([]hit.Hit, error) {
	return s.querier.Query(ctx, req.Text(), req.Limit(), req.Tags(), req.IncludeUntagged(), req.Where())
}
