package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation signals malformed input rejected before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrTimeout signals that processing exceeded its deadline.
	ErrTimeout = errors.New("processing timed out")
	// ErrBackendUnavailable signals a similarity backend failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrSizeLimit signals an upload above the configured size limit.
	ErrSizeLimit = errors.New("size limit exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrUnsupportedFormat signals a file type the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a validation error for field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError wraps ErrNotFound with the kind and key of the missing resource.
type NotFoundError struct {
	Kind string // "chunk", "source"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Kind, e.Key, ErrNotFound.Error())
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a not found error.
func NewNotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// SizeLimitError wraps ErrSizeLimit. Declared is true when the limit tripped
// on the size announced by the caller rather than on the bytes actually read.
type SizeLimitError struct {
	Source   string
	Limit    int64
	Actual   int64
	Declared bool
}

func (e *SizeLimitError) Error() string {
	kind := "read"
	if e.Declared {
		kind = "declared"
	}
	return fmt.Sprintf("%s: %s: %s size %d bytes, limit %d bytes",
		ErrSizeLimit.Error(), e.Source, kind, e.Actual, e.Limit)
}

func (e *SizeLimitError) Unwrap() error { return ErrSizeLimit }

// TimeoutError wraps ErrTimeout with the operation that overran.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s exceeded %s", ErrTimeout.Error(), e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// BackendError wraps an adapter error with ErrBackendUnavailable.
func BackendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
}
