// Package chunk defines the stored chunk value object and the splitter that
// produces chunk texts from a document.
package chunk

import (
	"fmt"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// Default splitter parameters, in runes.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// ValidateParams checks size > 0 and 0 <= overlap < size.
func ValidateParams(size, overlap int) error {
	if size <= 0 {
		return domain.NewValidation("chunk_size", fmt.Sprintf("must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return domain.NewValidation("chunk_overlap",
			fmt.Sprintf("must be in [0, %d), got %d", size, overlap))
	}
	return nil
}

// Split cuts text into windows of size runes, each starting size-overlap runes
// after the previous one. The last window ends at the end of text.
//
// Dropping the first overlap runes of every chunk after the first and
// concatenating reproduces text exactly. Empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if err := ValidateParams(size, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return []string{}, nil
	}

	step := size - overlap
	out := make([]string, 0, n/step+1)
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		out = append(out, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return out, nil
}
