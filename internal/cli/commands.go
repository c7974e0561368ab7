package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragstore/internal/domain/search/filter"
	"github.com/kailas-cloud/ragstore/internal/domain/search/request"
	"github.com/kailas-cloud/ragstore/internal/domain/tagset"
	ingestuc "github.com/kailas-cloud/ragstore/internal/usecase/ingest"
	"github.com/kailas-cloud/ragstore/internal/version"
)

func newIngestCmd(s *session) *cobra.Command {
	var (
		tags     []string
		metadata string
	)
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract, chunk and store files",
		Long: `Reads each file, extracts its text (PDF, DOCX, CSV or plain text),
splits it into overlapping chunks and stores them with the given tags.
The file's base name becomes its source.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseMetadata(metadata)
			if err != nil {
				return err
			}
			set := tagset.Canonicalize(tags)

			var results []ingestView
			for _, path := range args {
				res, err := ingestFile(s, cmd, path, set, extra)
				if err != nil {
					return err
				}
				results = append(results, ingestToView(res))
			}
			return s.render(cmd, results, func() {
				for _, r := range results {
					cmd.Printf("%s: %d chunks %v\n", r.Source, r.Chunks, r.Tags)
				}
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags applied to every chunk")
	cmd.Flags().StringVar(&metadata, "metadata", "", "additional metadata as a JSON object")
	return cmd
}

func ingestFile(s *session, cmd *cobra.Command, path string, tags tagset.Set, extra map[string]any) (ingestuc.Result, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return ingestuc.Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	res, err := s.app.Ingest.IngestFile(s.ctx(cmd), ingestuc.FileInput{
		Filename:     path,
		DeclaredSize: size,
		Body:         f,
		Tags:         tags,
		Metadata:     extra,
	})
	if err != nil {
		return ingestuc.Result{}, fmt.Errorf("ingest %s: %w", path, err)
	}
	return res, nil
}

func newAddTextCmd(s *session) *cobra.Command {
	var (
		src      string
		tags     []string
		metadata string
	)
	cmd := &cobra.Command{
		Use:   "add-text TEXT",
		Short: "Store a text snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extra, err := parseMetadata(metadata)
			if err != nil {
				return err
			}
			res, err := s.app.Ingest.IngestText(s.ctx(cmd), ingestuc.TextInput{
				Text:     args[0],
				Source:   src,
				Tags:     tagset.Canonicalize(tags),
				Metadata: extra,
			})
			if err != nil {
				return err
			}
			v := ingestToView(res)
			return s.render(cmd, v, func() {
				cmd.Printf("%s: %d chunks %v\n", v.Source, v.Chunks, v.Tags)
			})
		},
	}
	cmd.Flags().StringVarP(&src, "source", "s", "", "source name (default direct_input)")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags applied to every chunk")
	cmd.Flags().StringVar(&metadata, "metadata", "", "additional metadata as a JSON object")
	return cmd
}

func newQueryCmd(s *session) *cobra.Command {
	var (
		tags            []string
		includeUntagged bool
		limit           int
		where           map[string]string
	)
	cmd := &cobra.Command{
		Use:   "query TEXT",
		Short: "Semantic chunk query restricted to tags",
		Long: `Returns the chunks nearest to TEXT whose tags intersect --tags.
Untagged chunks are dropped unless --include-untagged is set.
--where adds exact metadata matches evaluated by the backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := whereExpression(where)
			if err != nil {
				return err
			}
			req, err := request.NewQuery(args[0], tagset.Canonicalize(tags), includeUntagged, limit, expr)
			if err != nil {
				return err
			}
			hits, err := s.app.Retrieval.Query(s.ctx(cmd), &req)
			if err != nil {
				return err
			}
			views := make([]chunkView, len(hits))
			for i := range hits {
				views[i] = hitToView(&hits[i])
			}
			return s.render(cmd, views, func() { printChunks(cmd, views) })
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags to match (any)")
	cmd.Flags().BoolVar(&includeUntagged, "include-untagged", false, "also return chunks without tags")
	cmd.Flags().IntVarP(&limit, "limit", "n", request.DefaultLimit, "maximum number of chunks")
	cmd.Flags().StringToStringVar(&where, "where", nil, "metadata equality filter, key=value")
	return cmd
}

func newSearchCmd(s *session) *cobra.Command {
	var (
		tags            []string
		includeUntagged bool
		limit           int
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Hybrid filename and content search",
		Long: `Matches QUERY against source names and chunk content at once and
returns one result per document, filename matches first on equal score.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := request.NewSearch(args[0], tagset.Canonicalize(tags), includeUntagged, limit)
			if err != nil {
				return err
			}
			results, err := s.app.Search.Search(s.ctx(cmd), &req)
			if err != nil {
				return err
			}
			views := resultsToView(results)
			return s.render(cmd, views, func() { printResults(cmd, views) })
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "tags to match (any)")
	cmd.Flags().BoolVar(&includeUntagged, "include-untagged", false, "also match documents without tags")
	cmd.Flags().IntVarP(&limit, "limit", "n", request.DefaultLimit, "maximum number of documents")
	return cmd
}

func newSimilarCmd(s *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "similar SOURCE",
		Short: "Documents related to a stored source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := request.NewSimilar(args[0], limit)
			if err != nil {
				return err
			}
			results, err := s.app.Search.Similar(s.ctx(cmd), &req)
			if err != nil {
				return err
			}
			views := resultsToView(results)
			return s.render(cmd, views, func() { printResults(cmd, views) })
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", request.DefaultLimit, "maximum number of documents")
	return cmd
}

func newDocumentsCmd(s *session) *cobra.Command {
	var (
		tags            []string
		includeUntagged bool
		limit           int
	)
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"ls"},
		Short:   "List stored documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := s.app.Documents.List(s.ctx(cmd), tagset.Canonicalize(tags), includeUntagged, limit)
			if err != nil {
				return err
			}
			views := make([]documentView, len(docs))
			for i := range docs {
				views[i] = documentToView(&docs[i])
			}
			return s.render(cmd, views, func() {
				if len(views) == 0 {
					cmd.Println("No documents.")
					return
				}
				for _, d := range views {
					cmd.Printf("%s (%d chunks) %v\n", d.Source, d.TotalChunks, d.Tags)
				}
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "only documents carrying any of these tags")
	cmd.Flags().BoolVar(&includeUntagged, "include-untagged", true, "keep untagged documents when --tags is set")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of documents (0 = all)")
	return cmd
}

func newTagsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with their document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inv := s.app.Tags.Inventory(s.ctx(cmd))
			v := tagsView{Tags: inv.Tags, Partial: inv.Partial}
			if v.Tags == nil {
				v.Tags = []string{}
			}
			for _, c := range inv.Counts {
				v.Counts = append(v.Counts, tagCountView{Tag: c.Tag, Documents: c.Documents})
			}
			return s.render(cmd, v, func() {
				if v.Partial {
					cmd.PrintErrln("warning: backend unavailable, tag list is incomplete")
				}
				for _, c := range v.Counts {
					cmd.Printf("%s\t%d\n", c.Tag, c.Documents)
				}
			})
		},
	}
}

func newDeleteSourceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-source SOURCE",
		Short: "Delete every chunk of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := s.app.Documents.DeleteSource(s.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			return s.render(cmd, map[string]any{"source": args[0], "deleted": n}, func() {
				cmd.Printf("deleted %d chunks of %s\n", n, args[0])
			})
		},
	}
}

func newRetagCmd(s *session) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "retag SOURCE",
		Short: "Replace the tags of every chunk of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := tagset.Canonicalize(tags)
			n, err := s.app.Documents.Retag(s.ctx(cmd), args[0], set)
			if err != nil {
				return err
			}
			return s.render(cmd, map[string]any{"source": args[0], "updated": n, "tags": set.Slice()}, func() {
				cmd.Printf("retagged %d chunks of %s %v\n", n, args[0], set.Slice())
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "new tags (empty clears them)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("ragstorectl %s\n", version.String())
		},
	}
}

func parseMetadata(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--metadata must be a JSON object: %w", err)
	}
	return m, nil
}

func whereExpression(where map[string]string) (filter.Expression, error) {
	expr, err := filter.AllOf(where)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("--where: %w", err)
	}
	return expr, nil
}
