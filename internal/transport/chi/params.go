package chi

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// ListDocumentsParams are the query parameters of GET /documents.
type ListDocumentsParams struct {
	Tags            []string
	IncludeUntagged *bool
	Limit           *int
}

// SearchParams are the query parameters of GET /documents/search.
type SearchParams struct {
	Q               string
	Tags            []string
	IncludeUntagged *bool
	Limit           *int
}

// SimilarParams are the query parameters of GET /documents/similar.
type SimilarParams struct {
	Source string
	Limit  *int
}

// SourceParams are the query parameters of DELETE /documents/sources.
type SourceParams struct {
	Source string
}

func bindListDocumentsParams(r *http.Request) (ListDocumentsParams, error) {
	var p ListDocumentsParams
	q := r.URL.Query()
	if err := bindQuery(q, "tags", false, &p.Tags); err != nil {
		return p, err
	}
	if err := bindQuery(q, "include_untagged", false, &p.IncludeUntagged); err != nil {
		return p, err
	}
	if err := bindQuery(q, "limit", false, &p.Limit); err != nil {
		return p, err
	}
	return p, nil
}

func bindSearchParams(r *http.Request) (SearchParams, error) {
	var p SearchParams
	q := r.URL.Query()
	if err := bindQuery(q, "q", true, &p.Q); err != nil {
		return p, err
	}
	if err := bindQuery(q, "tags", false, &p.Tags); err != nil {
		return p, err
	}
	if err := bindQuery(q, "include_untagged", false, &p.IncludeUntagged); err != nil {
		return p, err
	}
	if err := bindQuery(q, "limit", false, &p.Limit); err != nil {
		return p, err
	}
	return p, nil
}

func bindSimilarParams(r *http.Request) (SimilarParams, error) {
	var p SimilarParams
	q := r.URL.Query()
	if err := bindQuery(q, "source", true, &p.Source); err != nil {
		return p, err
	}
	if err := bindQuery(q, "limit", false, &p.Limit); err != nil {
		return p, err
	}
	return p, nil
}

func bindSourceParams(r *http.Request) (SourceParams, error) {
	var p SourceParams
	if err := bindQuery(r.URL.Query(), "source", true, &p.Source); err != nil {
		return p, err
	}
	return p, nil
}

// bindQuery binds one form-style, exploded query parameter the way
// oapi-codegen wrappers do.
func bindQuery(q map[string][]string, name string, required bool, dest any) error {
	if err := runtime.BindQueryParameter("form", true, required, name, q, dest); err != nil {
		return fmt.Errorf("invalid format for parameter %s: %w", name, err)
	}
	return nil
}
