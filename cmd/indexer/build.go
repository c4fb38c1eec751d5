package main

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/docindex/mcp-server/internal/search"
	"github.com/docindex/mcp-server/internal/searchindex"
)

// NewBuildCmd creates the build command
func NewBuildCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build <asset> <index-dir>",
		Short: "Build a bleve search index from a search_index.js asset",
		Long: `Parses and validates the asset, then writes a bleve index to
<index-dir>/index together with <index-dir>/.index_version and
<index-dir>/manifest.json. The server reuses such a directory when it is
placed at ~/.docindex/search next to the same asset.`,
		Example: `  docindex build build/search_index.js ~/.docindex/search`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], args[1], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Build even if the asset has validation errors")
	return cmd
}

func runBuild(cmd *cobra.Command, assetPath, indexDir string, force bool) error {
	start := time.Now()

	log.Printf("Documentation Indexer v%d", searchindex.IndexSchemaVersion)
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Printf("Parsing search index: %s", assetPath)
	idx, err := searchindex.ParseFile(assetPath)
	if err != nil {
		return err
	}

	report := searchindex.Validate(idx, searchindex.ValidateOptions{})
	log.Printf("✓ Parsed %d records across %d pages", report.Records, report.Pages)
	for _, issue := range report.Warnings {
		log.Printf("Warning: %s", issue)
	}
	if !report.Valid {
		for _, issue := range report.Errors {
			log.Printf("Error: %s", issue)
		}
		if !force {
			return fmt.Errorf("%s (use --force to build anyway)", report.Summary)
		}
	}

	log.Printf("Indexing %d records into %s...", idx.Len(), filepath.Join(indexDir, search.IndexDirName))
	engine, manifest, err := search.BuildDir(indexDir, idx)
	if err != nil {
		return err
	}
	defer engine.Close()

	count, err := engine.Count()
	if err != nil {
		return fmt.Errorf("failed to verify index: %w", err)
	}
	if count != uint64(idx.Len()) {
		return fmt.Errorf("index holds %d documents, expected %d", count, idx.Len())
	}

	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✓ Index built successfully in %v", time.Since(start).Round(time.Millisecond))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}
