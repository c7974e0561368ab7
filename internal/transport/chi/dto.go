package chi

// ErrorCode is the machine-readable error kind in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeNotFound           ErrorCode = "not_found"
	CodePayloadTooLarge    ErrorCode = "payload_too_large"
	CodeTimeout            ErrorCode = "processing_timeout"
	CodeBackendUnavailable ErrorCode = "backend_unavailable"
	CodeEmbeddingProvider  ErrorCode = "embedding_provider_error"
	CodeInternal           ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// TextIngestRequest is the body of POST /documents/text.
type TextIngestRequest struct {
	Text     string         `json:"text"`
	Source   string         `json:"source,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestResponse describes a stored ingestion.
type IngestResponse struct {
	Message  string   `json:"message"`
	Source   string   `json:"source"`
	Chunks   int      `json:"chunks"`
	ChunkIDs []string `json:"chunk_ids"`
	Tags     []string `json:"tags"`
	Replaced int      `json:"replaced_chunks,omitempty"`
}

// DocumentItem is one aggregated source document.
type DocumentItem struct {
	Source      string         `json:"source"`
	TotalChunks int            `json:"total_chunks"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	Preview     string         `json:"preview"`
}

// DocumentListResponse is the body of GET /documents.
type DocumentListResponse struct {
	Items []DocumentItem `json:"items"`
	Total int            `json:"total"`
}

// MatchedChunk identifies the chunk behind a content match.
type MatchedChunk struct {
	ID    string `json:"id"`
	Index int    `json:"chunk_index"`
	Text  string `json:"text"`
}

// SearchItem is one document-level search result.
type SearchItem struct {
	Source       string        `json:"source"`
	MatchType    string        `json:"match_type"`
	Score        float64       `json:"score"`
	Preview      string        `json:"preview"`
	MatchedChunk *MatchedChunk `json:"matched_chunk,omitempty"`
}

// SearchResponse is the body of GET /documents/search and /documents/similar.
type SearchResponse struct {
	Query string       `json:"query"`
	Items []SearchItem `json:"items"`
	Total int          `json:"total"`
}

// TagQueryRequest is the body of POST /tags/query.
type TagQueryRequest struct {
	Query           string            `json:"query"`
	Tags            []string          `json:"tags,omitempty"`
	IncludeUntagged bool              `json:"include_untagged,omitempty"`
	Limit           int               `json:"limit,omitempty"`
	Where           map[string]string `json:"where,omitempty"`
}

// ChunkItem is a stored chunk, optionally with its query score.
type ChunkItem struct {
	ID          string         `json:"id"`
	Text        string         `json:"text"`
	Source      string         `json:"source"`
	ChunkIndex  int            `json:"chunk_index"`
	TotalChunks int            `json:"total_chunks"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	Score       *float64       `json:"score,omitempty"`
	Distance    *float64       `json:"distance,omitempty"`
}

// TagQueryResponse is the body of POST /tags/query.
type TagQueryResponse struct {
	Query string      `json:"query"`
	Items []ChunkItem `json:"items"`
	Total int         `json:"total"`
}

// ChunkPatchRequest is the body of PATCH /documents/chunks/{id}.
// A null value removes the key.
type ChunkPatchRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// DeleteSourceResponse is the body of DELETE /documents/sources.
type DeleteSourceResponse struct {
	Source  string `json:"source"`
	Deleted int    `json:"deleted"`
}

// RetagRequest is the body of PUT /documents/sources/tags.
type RetagRequest struct {
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

// RetagResponse reports a re-tag.
type RetagResponse struct {
	Source  string   `json:"source"`
	Updated int      `json:"updated"`
	Tags    []string `json:"tags"`
}

// TagCount is the number of documents carrying a tag.
type TagCount struct {
	Tag       string `json:"tag"`
	Documents int    `json:"documents"`
}

// TagsResponse is the body of GET /tags.
type TagsResponse struct {
	Tags    []string   `json:"tags"`
	Counts  []TagCount `json:"counts"`
	Partial bool       `json:"partial,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version"`
}
