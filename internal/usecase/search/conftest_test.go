package search

import (
	"context"

	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

type mockReader struct {
	queryFn func(ctx context.Context, text string, k int) ([]hit.Hit, error)
	scanFn  func(ctx context.Context) ([]hit.Hit, error)
}

func (m *mockReader) Query(ctx context.Context, text string, k int, _ filter.Expression) ([]hit.Hit, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, text, k)
	}
	return nil, nil
}

func (m *mockReader) Scan(ctx context.Context, _ filter.Expression, _ int) ([]hit.Hit, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx)
	}
	return nil, nil
}

func stored(id, src string, index int, text string, tags ...string) hit.Hit {
	return hit.Unranked(chunk.Reconstruct(id, text, src, index, 1, tagset.Of(tags...), nil))
}

func ranked(id, src string, distance float64, tags ...string) hit.Hit {
	return hit.New(chunk.Reconstruct(id, "text "+id, src, 0, 1, tagset.Of(tags...), nil), distance)
}
