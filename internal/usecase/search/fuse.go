package search

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/ragstore/internal/domain/search/result"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
)

// Filename match scores.
const (
	ScoreExact     = 1.0
	ScorePrefix    = 0.9
	ScoreSubstring = 0.7
)

// FilenameScore scores a case-insensitive match of query against src or its
// base name. ok is false when neither contains the query.
func FilenameScore(src, query string) (score float64, ok bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0, false
	}
	full := strings.ToLower(src)
	base := strings.ToLower(source.Base(src))
	switch {
	case full == q || base == q:
		return ScoreExact, true
	case strings.HasPrefix(full, q) || strings.HasPrefix(base, q):
		return ScorePrefix, true
	case strings.Contains(full, q):
		return ScoreSubstring, true
	}
	return 0, false
}

// Fuse merges both branches into one ranked list. A source present in both
// keeps the higher score; on a tie the filename entry wins. Sorting is stable
// and the result is truncated to limit.
func Fuse(byName, byContent []result.Result, limit int) []result.Result {
	out := make([]result.Result, 0, len(byName)+len(byContent))
	pos := make(map[string]int, len(byName)+len(byContent))

	for _, r := range byName {
		if i, ok := pos[r.Source()]; ok {
			if r.Score() > out[i].Score() {
				out[i] = r
			}
			continue
		}
		pos[r.Source()] = len(out)
		out = append(out, r)
	}
	for _, r := range byContent {
		if i, ok := pos[r.Source()]; ok {
			if r.Score() > out[i].Score() {
				out[i] = r
			}
			continue
		}
		pos[r.Source()] = len(out)
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b result.Result) int {
		switch {
		case a.Score() > b.Score():
			return -1
		case a.Score() < b.Score():
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
