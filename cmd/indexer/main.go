// Command docindex validates, formats, searches, exports and pre-indexes
// Documenter search_index.js assets.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// errInvalid makes the process exit non-zero after a report was printed
var errInvalid = errors.New("search index failed validation")

// NewRootCmd builds the docindex command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docindex",
		Short:         "Documenter search index toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: fmt.Sprintf(`docindex works with the search_index.js asset written by Documenter:
var documenterSearchIndex = {"docs": [...]}

Index schema version: v%d`, searchindex.IndexSchemaVersion),
	}

	root.AddCommand(
		NewBuildCmd(),
		NewValidateCmd(),
		NewSearchCmd(),
		NewFmtCmd(),
		NewExportCmd(),
	)
	return root
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
