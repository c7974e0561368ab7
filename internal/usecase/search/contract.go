package search

import (
	"context"

	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
)

// ChunkReader reads chunks for both search branches.
type ChunkReader interface {
	Query(ctx context.Context, text string, k int, where filter.Expression) ([]hit.Hit, error)
	Scan(ctx context.Context, where filter.Expression, limit int) ([]hit.Hit, error)
}
