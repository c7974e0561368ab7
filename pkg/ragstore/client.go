package ragstore

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/bootstrap"
	"github.com/kailas-cloud/ragstore/internal/config"
	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
)

// Client is the embedded ragstore entry point. It is safe for concurrent use.
type Client struct {
	app *bootstrap.App
	obs *observer
}

// New builds a Client. Without options it keeps chunks in memory and embeds
// them with the offline hashing embedder. For Valkey and Redis, ctx bounds
// the initial readiness wait.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	cc.cfg.Backend.Driver = config.DriverMemory
	for _, o := range opts {
		o.apply(cc)
	}
	if cc.cfg.Backend.Driver == config.DriverSQLite && cc.cfg.Backend.SQLitePath == "" {
		cc.cfg.Backend.SQLitePath = ":memory:"
	}
	cc.cfg.ApplyDefaults()

	if err := chunk.ValidateParams(cc.cfg.Ingest.ChunkSize, cc.cfg.Ingest.ChunkOverlap); err != nil {
		return nil, fmt.Errorf("ragstore: %w", err)
	}
	if cc.embedder != nil && cc.cfg.Embedding.Dimensions <= 0 {
		return nil, fmt.Errorf("ragstore: custom embedder needs positive dimensions: %w", ErrValidation)
	}
	if cc.cfg.Embedding.Cache.Enabled && !cc.cfg.UsesKV() {
		cc.cfg.Embedding.Cache.Enabled = false
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	var base domain.Embedder
	if cc.embedder != nil {
		base = guardEmbedder(cc.embedder)
	}
	app, err := bootstrap.NewWithEmbedder(ctx, &cc.cfg, base, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("ragstore: %w", err)
	}
	return &Client{app: app, obs: obs}, nil
}

// Close releases the backend connection.
func (c *Client) Close() error {
	return c.app.Close()
}

// IngestText chunks, embeds and stores text.
func (c *Client) IngestText(ctx context.Context, text string, opts ...IngestOption) (res IngestResult, err error) {
	defer c.obs.track("ingest_text")(&err)

	ic := applyIngest(opts)
	out, err := c.app.Ingest.IngestText(ctx, ingestuc.TextInput{
		Text:     text,
		Source:   ic.source,
		Tags:     tagset.Canonicalize(ic.tags),
		Metadata: ic.metadata,
	})
	if err != nil {
		return IngestResult{}, err
	}
	return ingestFromDomain(out), nil
}

// IngestFile extracts text from r by the extension of name (PDF, DOCX, CSV
// or plain text) and stores it under the base name of name.
// WithSource is ignored.
func (c *Client) IngestFile(ctx context.Context, name string, r io.Reader, opts ...IngestOption) (res IngestResult, err error) {
	defer c.obs.track("ingest_file")(&err)

	ic := applyIngest(opts)
	out, err := c.app.Ingest.IngestFile(ctx, ingestuc.FileInput{
		Filename:     name,
		DeclaredSize: -1,
		Body:         r,
		Tags:         tagset.Canonicalize(ic.tags),
		Metadata:     ic.metadata,
	})
	if err != nil {
		return IngestResult{}, err
	}
	return ingestFromDomain(out), nil
}

// Query returns the chunks nearest to text whose tags intersect opts.Tags.
func (c *Client) Query(ctx context.Context, text string, opts QueryOptions) (chunks []ScoredChunk, err error) {
	defer c.obs.track("query")(&err)

	where, err := filter.AllOf(opts.Where)
	if err != nil {
		return nil, domain.NewValidation("where", err.Error())
	}
	req, err := request.NewQuery(text, tagset.Canonicalize(opts.Tags), opts.IncludeUntagged, opts.Limit, where)
	if err != nil {
		return nil, err
	}
	hits, err := c.app.Retrieval.Query(ctx, &req)
	if err != nil {
		return nil, err
	}
	chunks = make([]ScoredChunk, len(hits))
	for i := range hits {
		chunks[i] = scoredFromDomain(&hits[i])
	}
	return chunks, nil
}

// Search matches query against source names and chunk content and returns
// one result per document.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (results []SearchResult, err error) {
	defer c.obs.track("search")(&err)

	req, err := request.NewSearch(query, tagset.Canonicalize(opts.Tags), opts.IncludeUntagged, opts.Limit)
	if err != nil {
		return nil, err
	}
	out, err := c.app.Search.Search(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resultsFromDomain(out), nil
}

// Similar returns documents whose content is close to the given source.
// The source itself is excluded.
func (c *Client) Similar(ctx context.Context, src string, limit int) (results []SearchResult, err error) {
	defer c.obs.track("similar")(&err)

	req, err := request.NewSimilar(src, limit)
	if err != nil {
		return nil, err
	}
	out, err := c.app.Search.Similar(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resultsFromDomain(out), nil
}

// Documents lists stored documents, one per source.
func (c *Client) Documents(ctx context.Context, opts ListOptions) (docs []Document, err error) {
	defer c.obs.track("documents")(&err)

	out, err := c.app.Documents.List(ctx, tagset.Canonicalize(opts.Tags), opts.IncludeUntagged, opts.Limit)
	if err != nil {
		return nil, err
	}
	docs = make([]Document, len(out))
	for i := range out {
		docs[i] = documentFromDomain(&out[i])
	}
	return docs, nil
}

// Chunk returns one stored chunk by id.
func (c *Client) Chunk(ctx context.Context, id string) (ch Chunk, err error) {
	defer c.obs.track("get_chunk")(&err)

	out, err := c.app.Documents.GetChunk(ctx, id)
	if err != nil {
		return Chunk{}, err
	}
	return chunkFromDomain(&out), nil
}

// UpdateChunkMetadata merges patch into a chunk's metadata. A nil value
// removes the key. Reserved keys are rejected.
func (c *Client) UpdateChunkMetadata(ctx context.Context, id string, patch map[string]any) (ch Chunk, err error) {
	defer c.obs.track("update_chunk")(&err)

	out, err := c.app.Documents.UpdateChunkMetadata(ctx, id, patch)
	if err != nil {
		return Chunk{}, err
	}
	return chunkFromDomain(&out), nil
}

// DeleteChunk removes one chunk.
func (c *Client) DeleteChunk(ctx context.Context, id string) (err error) {
	defer c.obs.track("delete_chunk")(&err)

	return c.app.Documents.DeleteChunk(ctx, id)
}

// DeleteSource removes every chunk of a source and returns how many went.
func (c *Client) DeleteSource(ctx context.Context, src string) (n int, err error) {
	defer c.obs.track("delete_source")(&err)

	return c.app.Documents.DeleteSource(ctx, src)
}

// Retag replaces the tags on every chunk of a source. No tags clears them.
func (c *Client) Retag(ctx context.Context, src string, tags ...string) (n int, err error) {
	defer c.obs.track("retag")(&err)

	return c.app.Documents.Retag(ctx, src, tagset.Canonicalize(tags))
}

// Tags returns the tag inventory. It does not fail: a backend error yields
// an empty, Partial inventory.
func (c *Client) Tags(ctx context.Context) TagInventory {
	var err error
	defer c.obs.track("tags")(&err)
	inv := c.app.Tags.Inventory(ctx)
	if inv.Partial {
		err = ErrBackendUnavailable
	}
	return inventoryFromDomain(inv)
}

// Health probes the backend and the embedder.
func (c *Client) Health(ctx context.Context) HealthStatus {
	rep := c.app.Health.Check(ctx)
	out := HealthStatus{Status: string(rep.Status), Checks: make(map[string]string, len(rep.Checks))}
	for k, v := range rep.Checks {
		out.Checks[k] = string(v)
	}
	return out
}

func applyIngest(opts []IngestOption) ingestConfig {
	var ic ingestConfig
	for _, o := range opts {
		o(&ic)
	}
	return ic
}
