// Package search implements hybrid filename and content search over ingested
// documents, plus related-document suggestions.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/search/match"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/search/result"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	"github.com/kailas-cloud/ragstore/internal/logger"
	"github.com/kailas-cloud/ragstore/internal/metrics"
	"github.com/kailas-cloud/ragstore/internal/usecase/retrieval"
)

// Defaults for the content branch.
const (
	DefaultCeiling         = 50
	DefaultContentDiscount = 0.95
)

// Config tunes the content branch.
type Config struct {
	// Ceiling caps the content-branch query size.
	Ceiling int
	// ContentDiscount scales content scores so equal raw similarity ranks
	// below a filename match.
	ContentDiscount float64
}

// Service runs hybrid searches.
type Service struct {
	chunks ChunkReader
	cfg    Config
}

// New creates a search service.
func New(chunks ChunkReader, cfg Config) *Service {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.ContentDiscount <= 0 || cfg.ContentDiscount > 1 {
		cfg.ContentDiscount = DefaultContentDiscount
	}
	return &Service{chunks: chunks, cfg: cfg}
}

// Search runs the filename and content branches concurrently and fuses them.
// A content-branch failure degrades to filename-only results.
func (s *Service) Search(ctx context.Context, req *request.Search) ([]result.Result, error) {
	var (
		byName, byContent []result.Result
		contentErr        error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byName, err = s.filenameBranch(gctx, req)
		return err
	})
	g.Go(func() error {
		byContent, contentErr = s.contentBranch(gctx, req)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("filename search: %w", err)
	}

	if contentErr != nil {
		metrics.SearchDegradedTotal.WithLabelValues("content_branch").Inc()
		logger.FromContext(ctx).Warn("content search failed, returning filename matches only",
			zap.String("query", req.Query()),
			zap.Error(contentErr),
		)
		byContent = nil
	}
	return Fuse(byName, byContent, req.Limit()), nil
}

func (s *Service) filenameBranch(ctx context.Context, req *request.Search) ([]result.Result, error) {
	all, err := s.chunks.Scan(ctx, filter.Expression{}, 0)
	if err != nil {
		return nil, err
	}
	kept := retrieval.FilterByTags(all, req.Tags(), req.IncludeUntagged(), 0)

	var out []result.Result
	for _, d := range source.Aggregate(kept) {
		score, ok := FilenameScore(d.Source(), req.Query())
		if !ok {
			continue
		}
		out = append(out, result.New(d.Source(), match.Filename, score, d.Preview(), nil))
	}
	return out, nil
}

func (s *Service) contentBranch(ctx context.Context, req *request.Search) ([]result.Result, error) {
	k := min(2*req.Limit(), s.cfg.Ceiling)
	raw, err := s.chunks.Query(ctx, req.Query(), k, filter.Expression{})
	if err != nil {
		return nil, err
	}
	kept := retrieval.FilterByTags(raw, req.Tags(), req.IncludeUntagged(), 0)
	return bestPerSource(kept, s.cfg.ContentDiscount, "", 0), nil
}

// bestPerSource keeps the highest scoring hit per normalized source, skipping
// sources that match exclude. Ties keep the first seen hit. limit <= 0 keeps
// every source.
func bestPerSource(hits []hit.Hit, discount float64, exclude string, limit int) []result.Result {
	out := make([]result.Result, 0)
	pos := make(map[string]int)
	for i := range hits {
		h := &hits[i]
		src := source.Normalize(h.Source())
		if exclude != "" && source.Matches(h.Source(), exclude) {
			continue
		}
		r := contentResult(h, src, h.Similarity()*discount)
		if j, ok := pos[src]; ok {
			if r.Score() > out[j].Score() {
				out[j] = r
			}
			continue
		}
		if limit > 0 && len(out) == limit {
			continue
		}
		pos[src] = len(out)
		out = append(out, r)
	}
	return out
}

func contentResult(h *hit.Hit, src string, score float64) result.Result {
	c := h.Chunk()
	return result.New(src, match.Content, score, result.Preview(c.Text()), &result.Chunk{
		ID:    c.ID(),
		Index: c.Index(),
		Text:  c.Text(),
	})
}

// Similar suggests documents related to an existing source. The source's
// first chunk is used as the query and the source itself is excluded.
func (s *Service) Similar(ctx context.Context, req *request.Similar) ([]result.Result, error) {
	all, err := s.chunks.Scan(ctx, filter.Expression{}, 0)
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}

	var (
		anchor hit.Hit
		found  bool
	)
	for i := range all {
		c := all[i].Chunk()
		if !source.Matches(c.Source(), req.Source()) {
			continue
		}
		if !found || c.Index() < anchorIndex(&anchor) {
			anchor, found = all[i], true
		}
	}
	if !found {
		return nil, domain.NewNotFound("source", req.Source())
	}

	a := anchor.Chunk()
	k := min(retrieval.OverFetch(req.Limit()+1, retrieval.DefaultOverFetchFactor), s.cfg.Ceiling*2)
	raw, err := s.chunks.Query(ctx, a.Text(), k, filter.Expression{})
	if err != nil {
		return nil, fmt.Errorf("similar documents: %w", err)
	}
	return bestPerSource(raw, 1, req.Source(), req.Limit()), nil
}

func anchorIndex(h *hit.Hit) int {
	c := h.Chunk()
	return c.Index()
}
