package metrics

// Embedding provider metrics. The openai transport records requests, tokens
// and errors; the cache decorator records hits and misses.
var (
	EmbeddingRequestsTotal = counterVec("embedding_requests_total",
		"Embedding API calls by outcome", "provider", "model", "status")

	EmbeddingRequestDuration = histogramVec("embedding_request_duration_seconds",
		"Embedding API call latency", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, "provider", "model")

	EmbeddingTokensTotal = counterVec("embedding_tokens_total",
		"Tokens billed by the embedding provider", "provider", "model", "type") // prompt, total

	EmbeddingErrorsTotal = counterVec("embedding_errors_total",
		"Failed embedding calls by cause", "provider", "model", "error_type")

	EmbeddingCacheTotal = counterVec("embedding_cache_total",
		"Embedding cache lookups", "result") // hit, miss
)
