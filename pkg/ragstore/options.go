package ragstore

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/ragstore/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg      config.Config
	embedder Embedder

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps everything in process memory. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverMemory
	})
}

// WithSQLite stores chunks and vectors in a SQLite file.
// An empty path or ":memory:" opens an in-memory database.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverSQLite
		c.cfg.Backend.SQLitePath = path
	})
}

// WithValkey connects to Valkey with the search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverValkey
		c.cfg.Backend.Addrs = []string{addr}
		c.cfg.Backend.Password = password
	})
}

// WithRedis connects to Redis Stack.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Driver = config.DriverRedis
		c.cfg.Backend.Addrs = []string{addr}
		c.cfg.Backend.Password = password
	})
}

// WithCollection names the collection. Default: "documents".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Collection = name
	})
}

// WithHNSW configures the Valkey/Redis vector index. Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.HNSWM = m
		c.cfg.Backend.HNSWEFConstruct = efConstruct
	})
}

// WithHashingEmbedder uses the offline feature-hashing embedder. This is the
// default with 256 dimensions.
func WithHashingEmbedder(dims int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Provider = config.ProviderHashing
		c.cfg.Embedding.Dimensions = dims
		c.embedder = nil
	})
}

// WithOpenAI uses an OpenAI-compatible embeddings API.
// An empty baseURL targets api.openai.com.
func WithOpenAI(apiKey, baseURL, model string, dims int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Provider = config.ProviderOpenAI
		c.cfg.Embedding.APIKey = apiKey
		c.cfg.Embedding.BaseURL = baseURL
		c.cfg.Embedding.Model = model
		c.cfg.Embedding.Dimensions = dims
		c.embedder = nil
	})
}

// WithEmbedder sets a custom embedding provider producing dims-sized vectors.
func WithEmbedder(e Embedder, dims int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.cfg.Embedding.Provider = "custom"
		c.cfg.Embedding.Dimensions = dims
	})
}

// WithInstructions prefixes document and query texts before embedding,
// for models trained with asymmetric prompts.
func WithInstructions(document, query string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.DocumentInstruction = document
		c.cfg.Embedding.QueryInstruction = query
	})
}

// WithEmbeddingCache caches vectors in Valkey/Redis. ttlSec 0 keeps them forever.
// Ignored for other backends.
func WithEmbeddingCache(ttlSec int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Cache = config.CacheConfig{Enabled: true, TTLSec: ttlSec}
	})
}

// WithChunking sets chunk size and overlap in characters. Defaults: 1000 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Ingest.ChunkSize = size
		c.cfg.Ingest.ChunkOverlap = overlap
	})
}

// WithLimits bounds file uploads (MB), direct text (KB) and per-ingest
// processing time (seconds). Zero keeps a default.
func WithLimits(maxFileMB, maxTextKB, timeoutSec int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Ingest.MaxFileSizeMB = maxFileMB
		c.cfg.Ingest.MaxTextKB = maxTextKB
		c.cfg.Ingest.ProcessingTimeoutSec = timeoutSec
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// IngestOption configures one IngestText or IngestFile call.
type IngestOption func(*ingestConfig)

type ingestConfig struct {
	source   string
	tags     []string
	metadata map[string]any
}

// WithSource names the text's source. Default: "direct_input".
func WithSource(src string) IngestOption {
	return func(c *ingestConfig) { c.source = src }
}

// WithTags tags every stored chunk.
func WithTags(tags ...string) IngestOption {
	return func(c *ingestConfig) { c.tags = append(c.tags, tags...) }
}

// WithMetadata attaches scalar metadata to every stored chunk.
func WithMetadata(m map[string]any) IngestOption {
	return func(c *ingestConfig) { c.metadata = m }
}
