// Package retrieval answers tag-filtered semantic queries. The backend cannot
// express tag intersection, so queries over-fetch and filter client-side.
package retrieval

import (
	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
)

// DefaultOverFetchFactor multiplies the requested limit for filtered queries.
const DefaultOverFetchFactor = 3

// MaxOverFetch caps a single over-fetched backend query.
const MaxOverFetch = 500

// FilterByTags keeps hits whose tags intersect tags, plus untagged hits when
// includeUntagged is set. An empty tags set keeps everything. Order is
// preserved and truncation to limit happens after filtering; limit <= 0
// disables truncation.
func FilterByTags(hits []hit.Hit, tags tagset.Set, includeUntagged bool, limit int) []hit.Hit {
	out := make([]hit.Hit, 0, min(len(hits), max(limit, 0)))
	for i := range hits {
		if limit > 0 && len(out) == limit {
			break
		}
		if tags.IsEmpty() || keep(&hits[i], tags, includeUntagged) {
			out = append(out, hits[i])
		}
	}
	return out
}

func keep(h *hit.Hit, tags tagset.Set, includeUntagged bool) bool {
	ht := h.Tags()
	if ht.IsEmpty() {
		return includeUntagged
	}
	return ht.Intersects(tags)
}

// OverFetch returns how many raw hits to request for limit filtered ones.
func OverFetch(limit, factor int) int {
	if factor < 1 {
		factor = 1
	}
	return min(limit*factor, MaxOverFetch)
}
