package backend

import (
	"math"
	"sort"
)

// CosineDistance returns 1 - cos(a, b), in [0, 2]. Zero vectors are
// treated as maximally distant from everything.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// TopK sorts hits by ascending distance, keeping insertion order on ties,
// and truncates to k.
func TopK(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
