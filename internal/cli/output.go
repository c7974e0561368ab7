package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstore/internal/domain/search/hit"
	"github.com/kailas-cloud/ragstore/internal/domain/search/result"
	"github.com/kailas-cloud/ragstore/internal/domain/source"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
)

type ingestView struct {
	Source   string   `json:"source"`
	Chunks   int      `json:"chunks"`
	ChunkIDs []string `json:"chunk_ids"`
	Tags     []string `json:"tags"`
	Replaced int      `json:"replaced_chunks,omitempty"`
}

type chunkView struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	ChunkIndex  int            `json:"chunk_index"`
	TotalChunks int            `json:"total_chunks"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Score       float64        `json:"score"`
	Text        string         `json:"text"`
}

type resultView struct {
	Source    string  `json:"source"`
	MatchType string  `json:"match_type"`
	Score     float64 `json:"score"`
	Preview   string  `json:"preview"`
	ChunkID   string  `json:"chunk_id,omitempty"`
}

type documentView struct {
	Source      string         `json:"source"`
	TotalChunks int            `json:"total_chunks"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Preview     string         `json:"preview"`
}

type tagCountView struct {
	Tag       string `json:"tag"`
	Documents int    `json:"documents"`
}

type tagsView struct {
	Tags    []string       `json:"tags"`
	Counts  []tagCountView `json:"counts"`
	Partial bool           `json:"partial,omitempty"`
}

// render prints v as indented JSON under --json, otherwise runs text.
func (s *session) render(cmd *cobra.Command, v any, text func()) error {
	if !s.opts.json {
		text()
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func ingestToView(res ingestuc.Result) ingestView {
	return ingestView{
		Source:   res.Source,
		Chunks:   len(res.ChunkIDs),
		ChunkIDs: res.ChunkIDs,
		Tags:     res.Tags.Slice(),
		Replaced: res.Replaced,
	}
}

func hitToView(h *hit.Hit) chunkView {
	c := h.Chunk()
	return chunkView{
		ID:          c.ID(),
		Source:      c.Source(),
		ChunkIndex:  c.Index(),
		TotalChunks: c.Total(),
		Tags:        c.Tags().Slice(),
		Metadata:    c.Extra(),
		Score:       h.Similarity(),
		Text:        c.Text(),
	}
}

func resultsToView(results []result.Result) []resultView {
	views := make([]resultView, len(results))
	for i := range results {
		r := &results[i]
		views[i] = resultView{
			Source:    r.Source(),
			MatchType: string(r.MatchType()),
			Score:     r.Score(),
			Preview:   r.Preview(),
		}
		if m := r.MatchedChunk(); m != nil {
			views[i].ChunkID = m.ID
		}
	}
	return views
}

func documentToView(d *source.Document) documentView {
	return documentView{
		Source:      d.Source(),
		TotalChunks: d.TotalChunks(),
		Tags:        d.Tags().Slice(),
		Metadata:    d.Metadata(),
		Preview:     d.Preview(),
	}
}

func printChunks(cmd *cobra.Command, views []chunkView) {
	if len(views) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, v := range views {
		cmd.Printf("  [%d] %s #%d/%d (%.2f) %v\n", i+1, v.Source, v.ChunkIndex+1, v.TotalChunks, v.Score, v.Tags)
		cmd.Printf("      %s\n", result.Preview(v.Text))
	}
}

func printResults(cmd *cobra.Command, views []resultView) {
	if len(views) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, v := range views {
		cmd.Printf("  [%d] %s %s (%.2f)\n", i+1, v.Source, v.MatchType, v.Score)
		if v.Preview != "" {
			cmd.Printf("      %s\n", v.Preview)
		}
	}
}
