// Package document exposes document-level views and maintenance over stored
// chunks: listing, chunk lookup, deletion and re-tagging.
package document

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	"github.com/kailas-cloud/ragstore/internal/logger"
	"github.com/kailas-cloud/ragstore/internal/usecase/retrieval"
)

// Service implements document operations.
type Service struct {
	repo ChunkRepository
}

// New creates a document service.
func New(repo ChunkRepository) *Service {
	return &Service{repo: repo}
}

// List returns aggregated documents whose chunks pass the tag predicate.
// limit applies to documents, after aggregation; limit <= 0 returns all.
func (s *Service) List(ctx context.Context, tags tagset.Set, includeUntagged bool, limit int) ([]source.Document, error) {
	all, err := s.repo.Scan(ctx, filter.Expression{}, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := source.Aggregate(retrieval.FilterByTags(all, tags, includeUntagged, 0))
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// GetChunk returns one stored chunk.
func (s *Service) GetChunk(ctx context.Context, id string) (chunk.Chunk, error) {
	if strings.TrimSpace(id) == "" {
		return chunk.Chunk{}, domain.NewValidation("id", "chunk id is required")
	}
	found, err := s.repo.ByIDs(ctx, []string{id})
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("get chunk %s: %w", id, err)
	}
	if len(found) == 0 {
		return chunk.Chunk{}, domain.NewNotFound("chunk", id)
	}
	return found[0], nil
}

// DeleteChunk removes one chunk by id.
func (s *Service) DeleteChunk(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.NewValidation("id", "chunk id is required")
	}
	n, err := s.repo.Delete(ctx, []string{id})
	if err != nil {
		return fmt.Errorf("delete chunk %s: %w", id, err)
	}
	if n == 0 {
		return domain.NewNotFound("chunk", id)
	}
	return nil
}

// DeleteSource removes every chunk of a source and returns how many were
// removed. Stored temp-path sources match on their trailing components.
// A source with no chunks yields a NotFoundError.
func (s *Service) DeleteSource(ctx context.Context, src string) (int, error) {
	matched, err := s.chunksOf(ctx, src)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(matched))
	for i := range matched {
		ids[i] = matched[i].ID()
	}

	n, err := s.repo.Delete(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete source %s: %w", src, err)
	}
	logger.FromContext(ctx).Info("source deleted",
		zap.String("source", src),
		zap.Int("chunks", n),
	)
	return n, nil
}

// Retag replaces the tag set on every chunk of a source and returns the
// number of chunks updated. Updates are per chunk, not atomic across them.
func (s *Service) Retag(ctx context.Context, src string, tags tagset.Set) (int, error) {
	matched, err := s.chunksOf(ctx, src)
	if err != nil {
		return 0, err
	}
	updated := make([]chunk.Chunk, len(matched))
	for i := range matched {
		updated[i] = matched[i].WithTags(tags)
	}
	if err := s.repo.UpdateMetadata(ctx, updated); err != nil {
		return 0, fmt.Errorf("retag source %s: %w", src, err)
	}
	logger.FromContext(ctx).Info("source retagged",
		zap.String("source", src),
		zap.Strings("tags", tags.Slice()),
		zap.Int("chunks", len(updated)),
	)
	return len(updated), nil
}

// UpdateChunkMetadata merges patch into a chunk's extra metadata. A nil value
// removes the key. Text, source, position and tags stay unchanged.
func (s *Service) UpdateChunkMetadata(ctx context.Context, id string, patch map[string]any) (chunk.Chunk, error) {
	for k := range patch {
		if chunk.IsReserved(k) {
			return chunk.Chunk{}, domain.NewValidation("metadata", fmt.Sprintf("key %q is reserved", k))
		}
	}
	c, err := s.GetChunk(ctx, id)
	if err != nil {
		return chunk.Chunk{}, err
	}
	updated, err := c.WithExtra(patch)
	if err != nil {
		return chunk.Chunk{}, err
	}
	if err := s.repo.UpdateMetadata(ctx, []chunk.Chunk{updated}); err != nil {
		return chunk.Chunk{}, fmt.Errorf("update chunk %s: %w", id, err)
	}
	return updated, nil
}

func (s *Service) chunksOf(ctx context.Context, src string) ([]chunk.Chunk, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, domain.NewValidation("source", "source is required")
	}
	all, err := s.repo.Scan(ctx, filter.Expression{}, 0)
	if err != nil {
		return nil, fmt.Errorf("scan source %s: %w", src, err)
	}
	var out []chunk.Chunk
	for i := range all {
		c := all[i].Chunk()
		if source.Matches(c.Source(), src) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, domain.NewNotFound("source", src)
	}
	return out, nil
}
