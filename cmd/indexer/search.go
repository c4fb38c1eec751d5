package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docindex/mcp-server/internal/config"
	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
	"github.com/docindex/mcp-server/internal/store"
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	var (
		limit    int
		category string
		page     string
		engine   string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search <asset> <query...>",
		Short: "Search the records of a search_index.js asset",
		Long: `Searches an asset with the bleve or scan engine. With --engine sqlite the
first argument is a database written by "docindex export --format sqlite"
and records are matched with a case-insensitive LIKE.`,
		Example: `  docindex search build/search_index.js weighted counts
  docindex search build/search_index.js reset --category section --engine scan
  docindex search docs.db reset --engine sqlite`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(cmd.Context(), engine, args[0])
			if err != nil {
				return err
			}
			defer eng.Close()

			result, err := eng.Search(cmd.Context(), search.Query{
				Text:     strings.Join(args[1:], " "),
				Limit:    limit,
				Category: category,
				Page:     page,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if len(result.Hits) == 0 {
				fmt.Fprintf(out, "No matches for %q\n", result.Query)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCORE\tLOCATION\tTITLE\tPAGE")
			for _, hit := range result.Hits {
				fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n", hit.Score, hit.Record.Location, hit.Record.Title, hit.Record.Page)
			}
			w.Flush()
			fmt.Fprintf(out, "\n%d of %d matches\n", len(result.Hits), result.Total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "Maximum number of results (0 for all)")
	cmd.Flags().StringVar(&category, "category", "", "Only show records of this category")
	cmd.Flags().StringVar(&page, "page", "", "Only show records of this page (location path or title)")
	cmd.Flags().StringVar(&engine, "engine", config.EngineBleve, "Search engine: bleve, scan or sqlite")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// engineSQLite searches a database exported by the export command
const engineSQLite = "sqlite"

// openEngine prepares the named engine over the asset or database at path
func openEngine(ctx context.Context, name, path string) (search.Engine, error) {
	if name == engineSQLite {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open export: %w", err)
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		meta, err := s.Meta(ctx)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Printf("Searching export %s (%d records, exported %s)", meta.BuildID, meta.Records, meta.ExportedAt.Format(time.RFC3339))
		return store.NewLikeEngine(s), nil
	}

	idx, err := searchindex.ParseFile(path)
	if err != nil {
		return nil, err
	}
	switch name {
	case config.EngineScan:
		return search.NewScanner(idx), nil
	case config.EngineBleve:
		engine, err := search.BuildBleve("", idx)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (use bleve, scan or sqlite)", name)
	}
}
