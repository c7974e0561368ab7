package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/config"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	healthuc "github.com/kailas-cloud/ragstore/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
)

func testConfig(driver string) config.Config {
	cfg := config.Config{
		HTTP:    config.HTTPConfig{Port: 8080},
		Backend: config.BackendConfig{Driver: driver},
		Ingest:  config.IngestConfig{ChunkSize: 32, ChunkOverlap: 4},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestNew_Drivers(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		path   string
	}{
		{"memory", config.DriverMemory, ""},
		{"sqlite file", config.DriverSQLite, filepath.Join(t.TempDir(), "ragstore.db")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.driver)
			if tt.path != "" {
				cfg.Backend.SQLitePath = tt.path
			}
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()

			app, err := New(ctx, &cfg, zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer func() { _ = app.Close() }()

			res, err := app.Ingest.IngestText(ctx, ingestuc.TextInput{
				Text:   "release checklist for the storage tier and its backups",
				Source: "checklist.md",
				Tags:   tagset.Of("ops"),
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(res.ChunkIDs) < 2 {
				t.Fatalf("expected several chunks, got %d", len(res.ChunkIDs))
			}

			q, err := request.NewQuery("storage backups", tagset.Of("ops"), false, 3, filter.Expression{})
			if err != nil {
				t.Fatal(err)
			}
			hits, err := app.Retrieval.Query(ctx, &q)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) == 0 || hits[0].Source() != "checklist.md" {
				t.Fatalf("unexpected hits: %d", len(hits))
			}

			if report := app.Health.Check(ctx); report.Status != healthuc.Healthy {
				t.Errorf("health = %s", report.Status)
			}
			if app.Server(zap.NewNop()) == nil {
				t.Error("nil server")
			}
		})
	}
}

func TestBuildEmbedders_Instructions(t *testing.T) {
	cfg := config.EmbeddingConfig{
		Provider:         config.ProviderHashing,
		Dimensions:       64,
		QueryInstruction: "query: ",
	}
	checker, split := buildEmbedders(&cfg, nil, nil, zap.NewNop())
	if checker == nil || !split.Valid() {
		t.Fatal("embedders not wired")
	}

	ctx := context.Background()
	doc, err := split.Document.Embed(ctx, "text")
	if err != nil {
		t.Fatal(err)
	}
	query, err := split.Query.Embed(ctx, "text")
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range doc.Embedding {
		if doc.Embedding[i] != query.Embedding[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("query instruction did not change the query embedding")
	}
}
