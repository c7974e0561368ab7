// Package config loads per-environment YAML configuration. Values may
// reference the environment as ${VAR} or ${VAR:-default}.
package config

import (
	"errors"
	"fmt"
	"slices"
)

// Backend drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverValkey = "valkey"
	DriverRedis  = "redis"
)

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// Config is the root of a config/<env>.yaml file.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // overrides the environment default
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig selects and configures the similarity backend.
type BackendConfig struct {
	Driver           string   `yaml:"driver"` // memory, sqlite, valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	SQLitePath       string   `yaml:"sqlite_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	Collection       string   `yaml:"collection"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig selects the provider. The instructions are prepended to
// stored chunks and to query text respectively.
type EmbeddingConfig struct {
	Provider            string      `yaml:"provider"` // openai, hashing (default: hashing)
	APIKey              string      `yaml:"api_key"`
	BaseURL             string      `yaml:"base_url"`
	Model               string      `yaml:"model"`
	Dimensions          int         `yaml:"dimensions"`
	DocumentInstruction string      `yaml:"document_instruction"`
	QueryInstruction    string      `yaml:"query_instruction"`
	MaxBatchSize        int         `yaml:"max_batch_size"`
	Cache               CacheConfig `yaml:"cache"`
}

// CacheConfig holds the embedding cache settings. The cache needs a
// valkey or redis backend.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// IngestConfig holds chunking and upload limits.
type IngestConfig struct {
	ChunkSize            int `yaml:"chunk_size"`
	ChunkOverlap         int `yaml:"chunk_overlap"`
	MaxFileSizeMB        int `yaml:"max_file_size_mb"`
	MaxTextKB            int `yaml:"max_text_kb"`
	ProcessingTimeoutSec int `yaml:"processing_timeout_sec"`
	MaxConcurrent        int `yaml:"max_concurrent"`
}

// RetrievalConfig holds query and hybrid search tuning.
type RetrievalConfig struct {
	OverFetchFactor int     `yaml:"over_fetch_factor"`
	SearchCeiling   int     `yaml:"search_ceiling"`
	ContentDiscount float64 `yaml:"content_discount"`
}

// ApplyDefaults fills unset fields. An explicit chunk_size keeps a zero
// chunk_overlap.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverValkey
	}
	if c.Backend.ReadinessTimeout <= 0 {
		c.Backend.ReadinessTimeout = 10
	}
	if c.Backend.Collection == "" {
		c.Backend.Collection = "documents"
	}
	if c.Backend.KeyPrefix == "" {
		c.Backend.KeyPrefix = "ragstore:"
	}
	if c.Backend.SQLitePath == "" {
		c.Backend.SQLitePath = "ragstore.db"
	}
	if c.Backend.HNSWM <= 0 {
		c.Backend.HNSWM = 16
	}
	if c.Backend.HNSWEFConstruct <= 0 {
		c.Backend.HNSWEFConstruct = 200
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderHashing
	}
	if c.Embedding.Dimensions <= 0 && c.Embedding.Provider == ProviderHashing {
		c.Embedding.Dimensions = 256
	}

	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 1000
		if c.Ingest.ChunkOverlap == 0 {
			c.Ingest.ChunkOverlap = 200
		}
	}
	if c.Ingest.MaxFileSizeMB <= 0 {
		c.Ingest.MaxFileSizeMB = 30
	}
	if c.Ingest.MaxTextKB <= 0 {
		c.Ingest.MaxTextKB = 1024
	}
	if c.Ingest.ProcessingTimeoutSec <= 0 {
		c.Ingest.ProcessingTimeoutSec = 60
	}
	if c.Ingest.MaxConcurrent <= 0 {
		c.Ingest.MaxConcurrent = 4
	}

	if c.Retrieval.OverFetchFactor <= 0 {
		c.Retrieval.OverFetchFactor = 3
	}
	if c.Retrieval.SearchCeiling <= 0 {
		c.Retrieval.SearchCeiling = 50
	}
	if c.Retrieval.ContentDiscount <= 0 {
		c.Retrieval.ContentDiscount = 0.95
	}
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		bad("http.port: %d is not a TCP port", c.HTTP.Port)
	}

	drivers := []string{DriverMemory, DriverSQLite, DriverValkey, DriverRedis}
	switch {
	case !slices.Contains(drivers, c.Backend.Driver):
		bad("backend.driver: %q is not one of %v", c.Backend.Driver, drivers)
	case c.UsesKV() && len(c.Backend.Addrs) == 0:
		bad("backend.addrs: required for driver %q", c.Backend.Driver)
	}
	// The vector index is created with a fixed width.
	if c.UsesKV() && c.Embedding.Dimensions <= 0 {
		bad("embedding.dimensions: required for driver %q", c.Backend.Driver)
	}

	switch c.Embedding.Provider {
	case ProviderHashing:
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			bad("embedding.model: required for provider %q", ProviderOpenAI)
		}
	default:
		bad("embedding.provider: %q is neither %q nor %q", c.Embedding.Provider, ProviderOpenAI, ProviderHashing)
	}
	if c.Embedding.Cache.Enabled && !c.UsesKV() {
		bad("embedding.cache: needs a valkey or redis backend, driver is %q", c.Backend.Driver)
	}

	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		bad("ingest.chunk_overlap: %d is outside [0, %d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Retrieval.ContentDiscount > 1 {
		bad("retrieval.content_discount: %v is outside (0, 1]", c.Retrieval.ContentDiscount)
	}
	return errors.Join(errs...)
}

// UsesKV reports whether the backend is a Valkey/Redis store.
func (c *Config) UsesKV() bool {
	return c.Backend.Driver == DriverValkey || c.Backend.Driver == DriverRedis
}
