package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragstore/internal/metrics"
)

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.ListDocuments)
		r.Post("/upload", s.UploadDocument)
		r.Post("/text", s.IngestText)
		r.Get("/search", s.SearchDocuments)
		r.Get("/similar", s.SimilarDocuments)

		r.Get("/chunks/{id}", s.GetChunk)
		r.Patch("/chunks/{id}", s.PatchChunk)
		r.Delete("/chunks/{id}", s.DeleteChunk)

		r.Delete("/sources", s.DeleteSource)
		r.Put("/sources/tags", s.RetagSource)
	})

	r.Get("/tags", s.ListTags)
	r.Post("/tags/query", s.QueryByTags)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// NewRouter builds the full handler: recovery, request id, the per-request
// log line, bearer auth and HTTP metrics around the API routes.
func NewRouter(s *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	s.Routes(r)
	return r
}
