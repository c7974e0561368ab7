// Package openai embeds text through any OpenAI-compatible embeddings API.
package openai

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/metrics"
)

// DefaultProvider is the metrics label used when Config.Provider is empty.
const DefaultProvider = "openai"

var (
	_ domain.Embedder      = (*Embedder)(nil)
	_ domain.BatchEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Config selects the endpoint and model. BaseURL defaults to api.openai.com;
// Dimensions <= 0 leaves the model's native size.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
}

// Embedder is a domain.Embedder over the embeddings endpoint.
type Embedder struct {
	api        *openai.Client
	model      string
	dimensions int
	user       string
	provider   string
}

// New builds an Embedder; no request is made until the first call.
func New(cfg Config) *Embedder {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Embedder{
		api:        openai.NewClientWithConfig(conf),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   cmp.Or(cfg.Provider, DefaultProvider),
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	batch, err := e.request(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    batch.Embeddings[0],
		PromptTokens: batch.PromptTokens,
		TotalTokens:  batch.TotalTokens,
	}, nil
}

// BatchEmbed sends all texts in one request. The result follows input order
// whatever order the server lists the vectors in.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.request(ctx, texts)
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", providerError(err))
	}
	return nil
}

func (e *Embedder) request(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	began := time.Now()
	resp, err := e.api.CreateEmbeddings(ctx, req)
	if err != nil {
		e.countFailure("api_error")
		return domain.BatchEmbeddingResult{}, providerError(err)
	}
	if len(resp.Data) != len(texts) {
		e.countFailure("short_response")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %d embeddings for %d inputs",
			domain.ErrEmbeddingProviderError, len(resp.Data), len(texts))
	}
	e.countSuccess(time.Since(began), resp.Usage)

	data := slices.SortedStableFunc(slices.Values(resp.Data), func(a, b openai.Embedding) int {
		return cmp.Compare(a.Index, b.Index)
	})
	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, 0, len(data)),
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	for _, d := range data {
		out.Embeddings = append(out.Embeddings, d.Embedding)
	}
	return out, nil
}

func (e *Embedder) countSuccess(took time.Duration, usage openai.Usage) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(took.Seconds())
	if usage.TotalTokens == 0 {
		return
	}
	metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.model, "prompt").Add(float64(usage.PromptTokens))
	metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.model, "total").Add(float64(usage.TotalTokens))
}

func (e *Embedder) countFailure(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, kind).Inc()
}

// providerError marks err with domain.ErrEmbeddingProviderError and keeps
// the HTTP status and server message when there are any. Context errors stay
// in the chain so callers can tell a timeout apart.
func providerError(err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: status %d: %s", domain.ErrEmbeddingProviderError, apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		return fmt.Errorf("%w: status %d: %s", domain.ErrEmbeddingProviderError, reqErr.HTTPStatusCode, bodyMessage(reqErr.Body))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbeddingProviderError, err)
}

// bodyMessage pulls the message out of non-OpenAI error bodies such as
// {"detail": "..."} or {"error": "..."}; otherwise it returns the raw body.
func bodyMessage(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  any    `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if s, ok := parsed.Error.(string); ok && s != "" {
			return s
		}
	}
	return strings.TrimSpace(string(body))
}
