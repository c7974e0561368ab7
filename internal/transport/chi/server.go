package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/domain"
	"github.com/kailas-cloud/ragstore/internal/domain/chunk"
	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/search/result"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	documentuc "github.com/kailas-cloud/ragstore/internal/usecase/document"
	healthuc "github.com/kailas-cloud/ragstore/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/ragstore/internal/usecase/retrieval"
	searchuc "github.com/kailas-cloud/ragstore/internal/usecase/search"
	tagsuc "github.com/kailas-cloud/ragstore/internal/usecase/tags"
	"github.com/kailas-cloud/ragstore/internal/version"
)

const (
	// multipartMemory is kept in RAM by ParseMultipartForm; the rest spills to disk.
	multipartMemory = 8 << 20
	// envelopeSlack covers multipart boundaries and form fields around the file.
	envelopeSlack = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Services are the use cases the API exposes.
type Services struct {
	Ingest    *ingestuc.Service
	Retrieval *retrievaluc.Service
	Search    *searchuc.Service
	Documents *documentuc.Service
	Tags      *tagsuc.Service
	Health    *healthuc.Service
}

// Limits bound request bodies before they reach the use cases.
type Limits struct {
	MaxUploadBytes int64
	MaxTextBytes   int64
}

// Server serves the document API.
type Server struct {
	ingest        *ingestuc.Service
	retrieval     *retrievaluc.Service
	search        *searchuc.Service
	documents     *documentuc.Service
	tags          *tagsuc.Service
	health        *healthuc.Service
	limits        Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. Zero limits take the ingest defaults.
func NewServer(svc Services, limits Limits, logger *zap.Logger) *Server {
	if limits.MaxUploadBytes <= 0 {
		limits.MaxUploadBytes = ingestuc.DefaultMaxFileBytes
	}
	if limits.MaxTextBytes <= 0 {
		limits.MaxTextBytes = ingestuc.DefaultMaxTextBytes
	}
	s := &Server{
		ingest:    svc.Ingest,
		retrieval: svc.Retrieval,
		search:    svc.Search,
		documents: svc.Documents,
		tags:      svc.Tags,
		health:    svc.Health,
		limits:    limits,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrSizeLimit, http.StatusRequestEntityTooLarge, CodePayloadTooLarge),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
	}
	return s
}

// UploadDocument handles POST /documents/upload.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxUploadBytes+envelopeSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.limits.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	metadata, err := metadataFromForm(r.FormValue("additional_metadata"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	res, err := s.ingest.IngestFile(r.Context(), ingestuc.FileInput{
		Filename:     header.Filename,
		DeclaredSize: header.Size,
		Body:         file,
		Tags:         tagsFromValues(r.MultipartForm.Value["tags"]),
		Metadata:     metadata,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestToResponse(res, "file ingested"))
}

// IngestText handles POST /documents/text.
func (s *Server) IngestText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxTextBytes+envelopeSlack)
	var req TextIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("text exceeds %d bytes", s.limits.MaxTextBytes))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.ingest.IngestText(r.Context(), ingestuc.TextInput{
		Text:     req.Text,
		Source:   req.Source,
		Tags:     tagset.Canonicalize(req.Tags),
		Metadata: req.Metadata,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestToResponse(res, "text ingested"))
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	params, err := bindListDocumentsParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	includeUntagged := true
	if params.IncludeUntagged != nil {
		includeUntagged = *params.IncludeUntagged
	}
	docs, err := s.documents.List(r.Context(), tagsFromValues(params.Tags), includeUntagged, derefInt(params.Limit))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]DocumentItem, len(docs))
	for i := range docs {
		items[i] = documentToResponse(&docs[i])
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Items: items, Total: len(items)})
}

// SearchDocuments handles GET /documents/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	req, err := request.NewSearch(params.Q, tagsFromValues(params.Tags),
		derefBool(params.IncludeUntagged), derefInt(params.Limit))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	results, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsToResponse(req.Query(), results))
}

// SimilarDocuments handles GET /documents/similar.
func (s *Server) SimilarDocuments(w http.ResponseWriter, r *http.Request) {
	params, err := bindSimilarParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	req, err := request.NewSimilar(params.Source, derefInt(params.Limit))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	results, err := s.search.Similar(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultsToResponse(req.Source(), results))
}

// GetChunk handles GET /documents/chunks/{id}.
func (s *Server) GetChunk(w http.ResponseWriter, r *http.Request) {
	c, err := s.documents.GetChunk(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chunkToResponse(&c))
}

// DeleteChunk handles DELETE /documents/chunks/{id}.
func (s *Server) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.DeleteChunk(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchChunk handles PATCH /documents/chunks/{id}.
func (s *Server) PatchChunk(w http.ResponseWriter, r *http.Request) {
	var req ChunkPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Metadata) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "metadata must not be empty")
		return
	}

	c, err := s.documents.UpdateChunkMetadata(r.Context(), chi.URLParam(r, "id"), req.Metadata)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chunkToResponse(&c))
}

// DeleteSource handles DELETE /documents/sources.
func (s *Server) DeleteSource(w http.ResponseWriter, r *http.Request) {
	params, err := bindSourceParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	n, err := s.documents.DeleteSource(r.Context(), params.Source)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteSourceResponse{Source: params.Source, Deleted: n})
}

// RetagSource handles PUT /documents/sources/tags.
func (s *Server) RetagSource(w http.ResponseWriter, r *http.Request) {
	var req RetagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tags := tagset.Canonicalize(req.Tags)
	n, err := s.documents.Retag(r.Context(), req.Source, tags)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RetagResponse{Source: req.Source, Updated: n, Tags: tags.Slice()})
}

// QueryByTags handles POST /tags/query.
func (s *Server) QueryByTags(w http.ResponseWriter, r *http.Request) {
	var body TagQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	where, err := whereFromRequest(body.Where)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	req, err := request.NewQuery(body.Query, tagset.Canonicalize(body.Tags), body.IncludeUntagged, body.Limit, where)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	hits, err := s.retrieval.Query(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]ChunkItem, len(hits))
	for i := range hits {
		items[i] = hitToResponse(&hits[i])
	}
	writeJSON(w, http.StatusOK, TagQueryResponse{Query: req.Text(), Items: items, Total: len(items)})
}

// ListTags handles GET /tags. A failed scan still answers 200 with partial set.
func (s *Server) ListTags(w http.ResponseWriter, r *http.Request) {
	inv := s.tags.Inventory(r.Context())
	counts := make([]TagCount, len(inv.Counts))
	for i, c := range inv.Counts {
		counts[i] = TagCount{Tag: c.Tag, Documents: c.Documents}
	}
	tags := inv.Tags
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags, Counts: counts, Partial: inv.Partial})
}

// HealthCheck handles GET /health. Only a backend outage answers 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage keeps the caller-facing part of err. Input errors name
// the offending field, source or id; infrastructure errors collapse to their
// sentinel so backend details stay in the logs.
func safeDomainMessage(err error) string {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		sizeLimit  *domain.SizeLimitError
		timeout    *domain.TimeoutError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.As(err, &sizeLimit):
		return sizeLimit.Error()
	case errors.As(err, &timeout):
		return timeout.Error()
	case errors.Is(err, domain.ErrValidation):
		return err.Error()
	}

	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrSizeLimit,
		domain.ErrTimeout,
		domain.ErrBackendUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

// tagsFromValues accepts repeated values and comma-separated lists alike.
func tagsFromValues(values []string) tagset.Set {
	return tagset.ParseList(strings.Join(values, ","))
}

func metadataFromForm(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("additional_metadata must be a JSON object: %w", err)
	}
	return m, nil
}

func whereFromRequest(where map[string]string) (filter.Expression, error) {
	expr, err := filter.AllOf(where)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("where: %w", err)
	}
	return expr, nil
}

func ingestToResponse(res ingestuc.Result, message string) IngestResponse {
	return IngestResponse{
		Message:  message,
		Source:   res.Source,
		Chunks:   len(res.ChunkIDs),
		ChunkIDs: res.ChunkIDs,
		Tags:     res.Tags.Slice(),
		Replaced: res.Replaced,
	}
}

func documentToResponse(d *source.Document) DocumentItem {
	return DocumentItem{
		Source:      d.Source(),
		TotalChunks: d.TotalChunks(),
		Tags:        d.Tags().Slice(),
		Metadata:    nonNilMap(d.Metadata()),
		Preview:     d.Preview(),
	}
}

func resultsToResponse(query string, results []result.Result) SearchResponse {
	items := make([]SearchItem, len(results))
	for i := range results {
		r := &results[i]
		items[i] = SearchItem{
			Source:    r.Source(),
			MatchType: string(r.MatchType()),
			Score:     r.Score(),
			Preview:   r.Preview(),
		}
		if m := r.MatchedChunk(); m != nil {
			items[i].MatchedChunk = &MatchedChunk{ID: m.ID, Index: m.Index, Text: m.Text}
		}
	}
	return SearchResponse{Query: query, Items: items, Total: len(items)}
}

func chunkToResponse(c *chunk.Chunk) ChunkItem {
	return ChunkItem{
		ID:          c.ID(),
		Text:        c.Text(),
		Source:      c.Source(),
		ChunkIndex:  c.Index(),
		TotalChunks: c.Total(),
		Tags:        c.Tags().Slice(),
		Metadata:    nonNilMap(c.Extra()),
	}
}

func hitToResponse(h *hit.Hit) ChunkItem {
	c := h.Chunk()
	item := chunkToResponse(&c)
	if h.Ranked() {
		score, distance := h.Similarity(), h.Distance()
		item.Score = &score
		item.Distance = &distance
	}
	return item
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
