package document

import (
	"context"

	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
)

// ChunkRepository is the chunk store consumed by document operations.
type ChunkRepository interface {
	Scan(ctx context.Context, where filter.Expression, limit int) ([]hit.Hit, error)
	ByIDs(ctx context.Context, ids []string) ([]chunk.Chunk, error)
	Delete(ctx context.Context, ids []string) (int, error)
	UpdateMetadata(ctx context.Context, chunks []chunk.Chunk) error
}
