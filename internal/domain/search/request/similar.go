package request

import (
	"strings"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// Similar is a validated "documents like this source" query.
type Similar struct {
	source string
	limit  int
}

// NewSimilar validates and normalizes similar request parameters.
func NewSimilar(source string, limit int) (Similar, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Similar{}, domain.NewValidation("source", "source is required")
	}
	return Similar{source: source, limit: clampLimit(limit)}, nil
}

// Source returns the reference source.
func (r *Similar) Source() string { return r.source }

// Limit returns the maximum number of related documents.
func (r *Similar) Limit() int { return r.limit }
