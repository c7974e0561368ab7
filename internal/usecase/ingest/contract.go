package ingest

import (
	"context"

	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
)

// ChunkWriter persists a batch of chunks in one call and removes the
// chunks of a previous ingestion of the same source.
type ChunkWriter interface {
	Save(ctx context.Context, chunks []chunk.Chunk) error
	Scan(ctx context.Context, where filter.Expression, limit int) ([]hit.Hit, error)
	Delete(ctx context.Context, ids []string) (int, error)
}

// Extractor turns uploaded bytes into text.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}
