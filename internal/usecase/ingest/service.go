// Package ingest turns text and uploaded files into tagged, stored chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/deadline"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	"github.com/kailas-cloud/ragstore/internal/logger"
	"github.com/kailas-cloud/ragstore/internal/metrics"
)

// Default size limits.
const (
	DefaultMaxFileBytes = 30 << 20
	DefaultMaxTextBytes = 1 << 20
)

// Config controls chunking and input limits.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	MaxFileBytes int64
	MaxTextBytes int64
}

// TextInput is direct text ingestion. An empty Source becomes
// source.DirectInput.
type TextInput struct {
	Text     string
	Source   string
	Tags     tagset.Set
	Metadata map[string]any
}

// FileInput is an upload. DeclaredSize is what the client announced
// (negative when unknown).
type FileInput struct {
	Filename     string
	DeclaredSize int64
	Body         io.Reader
	Tags         tagset.Set
	Metadata     map[string]any
}

// Result describes one stored ingestion. Replaced counts the chunks of an
// earlier ingestion of the same source that were removed.
type Result struct {
	Source   string
	ChunkIDs []string
	Tags     tagset.Set
	Replaced int
}

// Service coordinates extraction, chunking, tagging and storage.
type Service struct {
	repo      ChunkWriter
	extractor Extractor
	pool      *deadline.Pool
	cfg       Config
	newID     func() string
}

// New creates an ingest service. Zero config fields take defaults.
func New(repo ChunkWriter, extractor Extractor, pool *deadline.Pool, cfg Config) *Service {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunk.DefaultSize
		if cfg.ChunkOverlap == 0 {
			cfg.ChunkOverlap = chunk.DefaultOverlap
		}
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = DefaultMaxTextBytes
	}
	return &Service{repo: repo, extractor: extractor, pool: pool, cfg: cfg, newID: uuid.NewString}
}

// IngestText chunks and stores caller-supplied text.
func (s *Service) IngestText(ctx context.Context, in TextInput) (Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Result{}, s.reject("empty", domain.NewValidation("text", "text is required"))
	}
	src := strings.TrimSpace(in.Source)
	if src == "" {
		src = source.DirectInput
	}
	if n := int64(len(in.Text)); n > s.cfg.MaxTextBytes {
		return Result{}, s.reject("size", &domain.SizeLimitError{Source: src, Limit: s.cfg.MaxTextBytes, Actual: n})
	}
	extra, err := chunk.SanitizeExtra(in.Metadata)
	if err != nil {
		return Result{}, s.reject("validation", err)
	}

	chunks, err := deadline.Run(ctx, s.pool, "process "+src, func(ctx context.Context) ([]chunk.Chunk, error) {
		return s.prepare(in.Text, src, in.Tags, extra)
	})
	if err != nil {
		return Result{}, s.reject(reason(err), err)
	}
	return s.store(ctx, "text", src, in.Tags, chunks)
}

// IngestFile enforces size limits on both the declared and the read size,
// then extracts, chunks and stores the file within the processing deadline.
// Nothing is written unless processing finishes in time.
func (s *Service) IngestFile(ctx context.Context, in FileInput) (Result, error) {
	src := source.Base(strings.TrimSpace(in.Filename))
	if src == "" || src == "." || src == "/" {
		return Result{}, s.reject("validation", domain.NewValidation("filename", "filename is required"))
	}
	if in.Body == nil {
		return Result{}, s.reject("validation", domain.NewValidation("file", "file content is required"))
	}
	limit := s.cfg.MaxFileBytes
	if in.DeclaredSize > limit {
		return Result{}, s.reject("size", &domain.SizeLimitError{
			Source: src, Limit: limit, Actual: in.DeclaredSize, Declared: true,
		})
	}
	extra, err := chunk.SanitizeExtra(in.Metadata)
	if err != nil {
		return Result{}, s.reject("validation", err)
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		return Result{}, s.reject("read", domain.NewValidation("file", fmt.Sprintf("read %s: %v", src, err)))
	}
	if int64(len(data)) > limit {
		return Result{}, s.reject("size", &domain.SizeLimitError{Source: src, Limit: limit, Actual: int64(len(data))})
	}

	chunks, err := deadline.Run(ctx, s.pool, "process "+src, func(ctx context.Context) ([]chunk.Chunk, error) {
		text, err := s.extractor.Extract(ctx, src, data)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedFormat) {
				return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
			}
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.prepare(text, src, in.Tags, extra)
	})
	if err != nil {
		return Result{}, s.reject(reason(err), err)
	}
	return s.store(ctx, "file", src, in.Tags, chunks)
}

func (s *Service) prepare(text, src string, tags tagset.Set, extra map[string]any) ([]chunk.Chunk, error) {
	pieces, err := chunk.Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(pieces) == 0 || strings.TrimSpace(text) == "" {
		return nil, domain.NewValidation("content", fmt.Sprintf("%s: no retrievable content", src))
	}
	return Tag(pieces, src, tags, extra, s.newID)
}

// store writes chunks and then removes whatever an earlier ingestion of src
// left behind, so (source, index) stays unique. When the old chunks cannot
// be removed the new ones are rolled back and the previous version stays.
func (s *Service) store(ctx context.Context, kind, src string, tags tagset.Set, chunks []chunk.Chunk) (Result, error) {
	log := logger.FromContext(ctx).With(zap.String("source", src))

	previous, err := s.previousIDs(ctx, src)
	if err != nil {
		return Result{}, s.reject("backend", err)
	}
	if err := s.repo.Save(ctx, chunks); err != nil {
		log.Error("ingest write failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return Result{}, s.reject("backend", fmt.Errorf("store %s: %w", src, err))
	}

	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].ID()
	}

	replaced := 0
	if len(previous) > 0 {
		replaced, err = s.repo.Delete(ctx, previous)
		if err != nil {
			log.Error("replace failed, rolling back", zap.Int("previous", len(previous)), zap.Error(err))
			if _, rbErr := s.repo.Delete(ctx, ids); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return Result{}, s.reject("rollback", fmt.Errorf("replace %s: %w", src, err))
		}
	}

	metrics.IngestedChunksTotal.WithLabelValues(kind).Add(float64(len(chunks)))
	log.Info("ingested",
		zap.String("kind", kind),
		zap.Int("chunks", len(chunks)),
		zap.Int("replaced", replaced),
		zap.Strings("tags", tags.Slice()),
	)
	return Result{Source: src, ChunkIDs: ids, Tags: tags, Replaced: replaced}, nil
}

// previousIDs lists the stored chunk ids that belong to src.
func (s *Service) previousIDs(ctx context.Context, src string) ([]string, error) {
	stored, err := s.repo.Scan(ctx, filter.Expression{}, 0)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", src, err)
	}
	var ids []string
	for i := range stored {
		if source.Matches(stored[i].Source(), src) {
			c := stored[i].Chunk()
			ids = append(ids, c.ID())
		}
	}
	return ids, nil
}

func (s *Service) reject(why string, err error) error {
	metrics.IngestFailuresTotal.WithLabelValues(why).Inc()
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	default:
		return "processing"
	}
}
