package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docindex/mcp-server/internal/searchindex"
	"github.com/docindex/mcp-server/internal/site"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	var (
		siteDir string
		schema  bool
		strict  bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "validate <asset>",
		Short: "Check a search_index.js asset for structural problems",
		Long: `Reports empty fields, unknown categories, duplicated content blocks,
pages whose records are not contiguous and pages with inconsistent titles.

With --site, every location is resolved against the built site and must
name an existing page and anchor. With --schema, the payload is also checked
against the JSON Schema of the asset.

Exits with status 1 when errors are found.`,
		Example: `  docindex validate build/search_index.js
  docindex validate build/search_index.js --site build --schema`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read asset: %w", err)
			}
			idx, err := searchindex.Parse(data)
			if err != nil {
				return err
			}

			report := searchindex.Validate(idx, searchindex.ValidateOptions{StrictLocation: strict})

			if schema {
				issues, err := searchindex.ValidateSchema(data)
				if err != nil {
					return err
				}
				report.Add(issues...)
			}

			if siteDir != "" {
				issues, err := site.CheckAnchors(os.DirFS(siteDir), idx)
				if err != nil {
					return err
				}
				report.Add(issues...)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				for _, issue := range report.Errors {
					fmt.Fprintln(out, issue)
				}
				for _, issue := range report.Warnings {
					fmt.Fprintln(out, issue)
				}
				fmt.Fprintln(out, report.Summary)
			}

			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&siteDir, "site", "", "Built site directory to resolve locations against")
	cmd.Flags().BoolVar(&schema, "schema", false, "Also validate against the JSON Schema")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject empty locations, including the home page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
