package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docindex/mcp-server/internal/searchindex"
	"github.com/docindex/mcp-server/internal/store"
)

// Export formats
const (
	exportJSONL  = "jsonl"
	exportJSON   = "json"
	exportSQLite = "sqlite"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <asset>",
		Short: "Export search records for grep, jq or SQL",
		Long: `Writes every record, enriched with its ordinal, path, anchor, breadcrumb
and keywords, as JSON Lines (one record per line) or as a JSON array.
The sqlite format writes a database with a records table and an
index_meta table describing the export.`,
		Example: `  docindex export build/search_index.js --output records.jsonl
  grep -i 'weight' records.jsonl | jq -r '.location'

  docindex export build/search_index.js --format sqlite --output docs.db
  sqlite3 docs.db "SELECT location FROM records WHERE title LIKE '%reset%'"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := searchindex.ParseFile(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = defaultExportPath(args[0], format)
			}
			if err := checkDistinct(args[0], output); err != nil {
				return err
			}
			return runExport(cmd.Context(), idx, format, output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&format, "format", exportJSONL, "Output format: jsonl, json or sqlite")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: <asset>.records.jsonl, <asset>.records.json or <asset>.db)")
	return cmd
}

// defaultExportPath derives the output path from the asset path
// Example: "build/search_index.js" -> "build/search_index.records.jsonl"
func defaultExportPath(assetPath, format string) string {
	base := strings.TrimSuffix(assetPath, filepath.Ext(assetPath))
	if format == exportSQLite {
		return base + ".db"
	}
	return base + ".records." + format
}

// checkDistinct refuses to export over the asset being read
func checkDistinct(assetPath, output string) error {
	assetAbs, err := filepath.Abs(assetPath)
	if err != nil {
		return err
	}
	outAbs, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	same := assetAbs == outAbs
	if !same {
		assetInfo, aerr := os.Stat(assetPath)
		outInfo, oerr := os.Stat(output)
		same = aerr == nil && oerr == nil && os.SameFile(assetInfo, outInfo)
	}
	if same {
		return fmt.Errorf("output %s is the asset being exported, choose another --output", output)
	}
	return nil
}

func runExport(ctx context.Context, idx *searchindex.Index, format, output string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch format {
	case exportSQLite:
		buildID, err := store.Export(ctx, output, idx)
		if err != nil {
			return err
		}
		stored, err := store.Load(ctx, output)
		if err != nil {
			return fmt.Errorf("failed to read back export: %w", err)
		}
		if !searchindex.Equivalent(idx, stored) {
			return fmt.Errorf("export %s does not match the asset (%d of %d records read back)", output, stored.Len(), idx.Len())
		}
		fmt.Fprintf(stdout, "Exported %d records to %s (build %s)\n", idx.Len(), output, buildID)
		return nil
	case exportJSON, exportJSONL:
		if err := writeEntries(idx.Entries(), output, format); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Exported %d records to %s\n", idx.Len(), output)
		return nil
	default:
		return fmt.Errorf("unknown export format %q (use jsonl, json or sqlite)", format)
	}
}

// writeEntries writes entries as a JSON array or as JSON Lines
func writeEntries(entries []searchindex.Entry, path, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)

	if format == exportJSON {
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode records: %w", err)
		}
	} else {
		for _, entry := range entries {
			if err := encoder.Encode(entry); err != nil {
				return fmt.Errorf("failed to encode record %s: %w", entry.ID, err)
			}
		}
	}

	return file.Close()
}
