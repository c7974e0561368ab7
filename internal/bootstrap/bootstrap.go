// Package bootstrap is the composition root shared by the API server and the
// CLI: it turns a config.Config into a backend, an embedder chain and the use
// case services.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/backend"
	"github.com/kailas-cloud/ragstore/internal/backend/memory"
	"github.com/kailas-cloud/ragstore/internal/backend/sqlite"
	valkeybackend "github.com/kailas-cloud/ragstore/internal/backend/valkey"
	"github.com/kailas-cloud/ragstore/internal/config"
	dbValkey "github.com/kailas-cloud/ragstore/internal/db/valkey"
	"github.com/kailas-cloud/ragstore/internal/deadline"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/embedding/hashing"
	"github.com/kailas-cloud/ragstore/internal/extract"
	"github.com/kailas-cloud/ragstore/internal/metrics"
	chunkrepo "github.com/kailas-cloud/ragstore/internal/repository/chunk"
	"github.com/kailas-cloud/ragstore/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/ragstore/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/ragstore/internal/transport/openai"
	documentuc "github.com/kailas-cloud/ragstore/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/ragstore/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragstore/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/ragstore/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/ragstore/internal/usecase/search"
	tagsuc "github.com/kailas-cloud/ragstore/internal/usecase/tags"
)

// App holds the wired services. Close releases the backend.
type App struct {
	Backend   backend.Backend
	Embedder  domain.Split
	Ingest    *ingestuc.Service
	Retrieval *retrievaluc.Service
	Search    *searchuc.Service
	Documents *documentuc.Service
	Tags      *tagsuc.Service
	Health    *healthuc.Service

	limits chiTransport.Limits
}

// New wires every component described by cfg and makes sure the collection
// exists. For valkey and redis it waits for the store to answer first.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	return NewWithEmbedder(ctx, cfg, nil, logger)
}

// NewWithEmbedder is New with a caller-supplied base embedder in place of
// the configured provider. The cache, metrics and instructions still wrap it.
// A nil base falls back to cfg.Embedding.Provider.
func NewWithEmbedder(ctx context.Context, cfg *config.Config, base domain.Embedder, logger *zap.Logger) (*App, error) {
	var kv *dbValkey.Store
	if cfg.UsesKV() {
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Backend.Addrs,
			Password: cfg.Backend.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Backend.Driver, err)
		}
		timeout := time.Duration(cfg.Backend.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", cfg.Backend.Driver, err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Backend.Addrs))
		kv = store
	}

	checker, split := buildEmbedders(&cfg.Embedding, base, kv, logger)

	be, err := openBackend(cfg, kv, split)
	if err != nil {
		if kv != nil {
			kv.Close()
		}
		return nil, err
	}
	if err := be.EnsureCollection(ctx, cfg.Backend.Collection); err != nil {
		_ = be.Close()
		return nil, fmt.Errorf("ensure collection %s: %w", cfg.Backend.Collection, err)
	}

	repo := chunkrepo.New(be, cfg.Backend.Collection)
	limits := chiTransport.Limits{
		MaxUploadBytes: int64(cfg.Ingest.MaxFileSizeMB) << 20,
		MaxTextBytes:   int64(cfg.Ingest.MaxTextKB) << 10,
	}
	pool := deadline.NewPool(cfg.Ingest.MaxConcurrent, time.Duration(cfg.Ingest.ProcessingTimeoutSec)*time.Second)

	app := &App{
		Backend:  be,
		Embedder: split,
		Ingest: ingestuc.New(repo, extract.New(), pool, ingestuc.Config{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
			MaxFileBytes: limits.MaxUploadBytes,
			MaxTextBytes: limits.MaxTextBytes,
		}),
		Retrieval: retrievaluc.New(retrievaluc.NewTagFilteringQuerier(repo, cfg.Retrieval.OverFetchFactor)),
		Search: searchuc.New(repo, searchuc.Config{
			Ceiling:         cfg.Retrieval.SearchCeiling,
			ContentDiscount: cfg.Retrieval.ContentDiscount,
		}),
		Documents: documentuc.New(repo),
		Tags:      tagsuc.New(repo),
		Health:    healthuc.New(be, checker),
		limits:    limits,
	}

	logger.Info("Backend ready",
		zap.String("driver", cfg.Backend.Driver),
		zap.String("collection", cfg.Backend.Collection),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)
	return app, nil
}

// Server builds the HTTP API over the wired services.
func (a *App) Server(logger *zap.Logger) *chiTransport.Server {
	return chiTransport.NewServer(chiTransport.Services{
		Ingest:    a.Ingest,
		Retrieval: a.Retrieval,
		Search:    a.Search,
		Documents: a.Documents,
		Tags:      a.Tags,
		Health:    a.Health,
	}, a.limits, logger)
}

// Close releases the backend and its connections.
func (a *App) Close() error {
	if err := a.Backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}
	return nil
}

func openBackend(cfg *config.Config, kv *dbValkey.Store, split domain.Split) (backend.Backend, error) {
	switch cfg.Backend.Driver {
	case config.DriverMemory:
		be, err := memory.New(split)
		if err != nil {
			return nil, fmt.Errorf("memory backend: %w", err)
		}
		return be, nil
	case config.DriverSQLite:
		be, err := sqlite.Open(cfg.Backend.SQLitePath, split)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Backend.SQLitePath, err)
		}
		return be, nil
	case config.DriverValkey, config.DriverRedis:
		if kv == nil {
			return nil, errors.New("kv store is not connected")
		}
		be, err := valkeybackend.New(kv, split, valkeybackend.Config{
			Prefix:      cfg.Backend.KeyPrefix,
			Dimensions:  cfg.Embedding.Dimensions,
			HNSWM:       cfg.Backend.HNSWM,
			EFConstruct: cfg.Backend.HNSWEFConstruct,
		})
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", cfg.Backend.Driver, err)
		}
		return be, nil
	default:
		return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
	}
}

// buildEmbedders assembles the decorator chain
// provider -> cache -> instrumented -> instruction and returns the
// instrumented layer for health probes plus the document/query pair.
// The instruction sits outermost so cache keys include it.
func buildEmbedders(
	cfg *config.EmbeddingConfig,
	base domain.Embedder,
	kv *dbValkey.Store,
	logger *zap.Logger,
) (healthuc.EmbedderChecker, domain.Split) {
	var model string
	switch {
	case base != nil:
		model = cfg.Model
		if model == "" {
			model = "custom"
		}
	case cfg.Provider == config.ProviderOpenAI:
		base = openaiEmb.New(openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
		})
		model = cfg.Model
	default:
		base = hashing.New(cfg.Dimensions)
		model = fmt.Sprintf("hashing-%d", cfg.Dimensions)
	}

	embedder := base
	if cfg.Cache.Enabled && kv != nil {
		embedder = embcache.New(base, kv, embcache.Options{
			Namespace:  fmt.Sprintf("%s:%s:%d", cfg.Provider, model, cfg.Dimensions),
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     logger,
		})
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, model, cfg.MaxBatchSize, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Bool("cache", cfg.Cache.Enabled && kv != nil),
	)

	return instrumented, domain.Split{
		Document: withInstruction(instrumented, cfg.DocumentInstruction),
		Query:    withInstruction(instrumented, cfg.QueryInstruction),
	}
}

func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
