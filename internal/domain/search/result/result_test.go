package result

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/ragstore/internal/domain/search/match"
)

func TestNew(t *testing.T) {
	r := New("report.pdf", match.Content, 0.76, "hello", &Chunk{ID: "c1", Index: 2, Text: "hello world"})

	if r.Source() != "report.pdf" {
		t.Errorf("Source() = %q", r.Source())
	}
	if r.MatchType() != match.Content {
		t.Errorf("MatchType() = %q", r.MatchType())
	}
	if r.Score() != 0.76 {
		t.Errorf("Score() = %f", r.Score())
	}
	if r.Preview() != "hello" {
		t.Errorf("Preview() = %q", r.Preview())
	}
	if r.MatchedChunk() == nil || r.MatchedChunk().Index != 2 {
		t.Errorf("MatchedChunk() = %+v", r.MatchedChunk())
	}
}

func TestNew_FilenameHasNoChunk(t *testing.T) {
	r := New("a.txt", match.Filename, 1, "", nil)
	if r.MatchedChunk() != nil {
		t.Errorf("MatchedChunk() = %+v, want nil", r.MatchedChunk())
	}
}

func TestPreview(t *testing.T) {
	short := "short text"
	if got := Preview(short); got != short {
		t.Errorf("Preview(short) = %q", got)
	}
	long := strings.Repeat("ж", PreviewRunes+50)
	if got := Preview(long); len([]rune(got)) != PreviewRunes {
		t.Errorf("Preview(long) has %d runes", len([]rune(got)))
	}
}
