package ragstore

import "github.com/kailas-cloud/ragstore/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrNotFound               = domain.ErrNotFound
	ErrTimeout                = domain.ErrTimeout
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrSizeLimit              = domain.ErrSizeLimit
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrUnsupportedFormat      = domain.ErrUnsupportedFormat
)
