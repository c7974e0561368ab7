// Package tags derives the tag inventory from stored chunk metadata.
// Nothing is persisted; every call rescans the collection.
package tags

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	"github.com/kailas-cloud/ragstore/internal/logger"
	"github.com/kailas-cloud/ragstore/internal/metrics"
)

// ChunkScanner lists stored chunks.
type ChunkScanner interface {
	Scan(ctx context.Context, where filter.Expression, limit int) ([]hit.Hit, error)
}

// Count is the number of distinct sources carrying a tag.
type Count struct {
	Tag       string
	Documents int
}

// Inventory combines the tag union and per-tag document counts.
// Partial is set when the scan failed and the lists are empty.
type Inventory struct {
	Tags    []string
	Counts  []Count
	Partial bool
}

// Service computes tag inventories.
type Service struct {
	chunks ChunkScanner
}

// New creates a tag inventory service.
func New(chunks ChunkScanner) *Service {
	return &Service{chunks: chunks}
}

// AllTags returns the sorted union of every chunk's tags.
func (s *Service) AllTags(ctx context.Context) ([]string, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	return union(all), nil
}

// TagCounts returns, per tag, how many sources carry it, sorted by tag.
// Each source contributes its first non-empty tag set once.
func (s *Service) TagCounts(ctx context.Context) ([]Count, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	return counts(all), nil
}

// Inventory computes both views from one scan. A backend failure yields an
// empty inventory marked Partial instead of an error.
func (s *Service) Inventory(ctx context.Context) Inventory {
	all, err := s.scan(ctx)
	if err != nil {
		metrics.SearchDegradedTotal.WithLabelValues("tag_inventory").Inc()
		logger.FromContext(ctx).Warn("tag inventory unavailable", zap.Error(err))
		return Inventory{Tags: []string{}, Counts: []Count{}, Partial: true}
	}
	return Inventory{Tags: union(all), Counts: counts(all)}
}

func (s *Service) scan(ctx context.Context) ([]hit.Hit, error) {
	all, err := s.chunks.Scan(ctx, filter.Expression{}, 0)
	if err != nil {
		return nil, fmt.Errorf("scan tags: %w", err)
	}
	return all, nil
}

func union(hits []hit.Hit) []string {
	seen := make(map[string]struct{})
	for i := range hits {
		for _, t := range hits[i].Tags().Slice() {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func counts(hits []hit.Hit) []Count {
	perTag := make(map[string]int)
	for _, d := range source.Aggregate(hits) {
		for _, t := range d.Tags().Slice() {
			perTag[t]++
		}
	}
	out := make([]Count, 0, len(perTag))
	for t, n := range perTag {
		out = append(out, Count{Tag: t, Documents: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		switch {
		case a.Tag < b.Tag:
			return -1
		case a.Tag > b.Tag:
			return 1
		}
		return 0
	})
	return out
}
