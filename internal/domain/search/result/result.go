package result

import "github.com/kailas-cloud/ragstore/internal/domain/search/match"

// PreviewRunes caps the preview text carried by results and documents.
const PreviewRunes = 200

// Chunk identifies the chunk that produced a content match.
type Chunk struct {
	ID    string
	Index int
	Text  string
}

// Result is one document-level search hit.
type Result struct {
	source       string
	matchType    match.Type
	score        float64
	preview      string
	matchedChunk *Chunk
}

// New creates a search result. matched is nil for filename matches.
func New(source string, t match.Type, score float64, preview string, matched *Chunk) Result {
	return Result{
		source: source, matchType: t, score: score,
		preview: preview, matchedChunk: matched,
	}
}

// Source returns the display source.
func (r *Result) Source() string { return r.source }

// MatchType returns the branch that produced the result.
func (r *Result) MatchType() match.Type { return r.matchType }

// Score returns the relevance score in [0, 1].
func (r *Result) Score() float64 { return r.score }

// Preview returns a short excerpt of the document.
func (r *Result) Preview() string { return r.preview }

// MatchedChunk returns the best matching chunk for content matches.
func (r *Result) MatchedChunk() *Chunk { return r.matchedChunk }

// Preview truncates text to PreviewRunes runes.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewRunes {
		return text
	}
	return string(runes[:PreviewRunes])
}
