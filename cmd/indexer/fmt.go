package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docindex/mcp-server/internal/searchindex"
)

// NewFmtCmd creates the fmt command
func NewFmtCmd() *cobra.Command {
	var (
		check  bool
		write  bool
		global string
		format string
	)

	cmd := &cobra.Command{
		Use:   "fmt <asset>",
		Short: "Re-encode an asset in the canonical Documenter layout",
		Long: `Prints the asset re-encoded exactly as Documenter writes it. Output is
byte-identical to the input for any unmodified generator output.

With --check nothing is printed and the command fails if re-encoding
would change the file; it cannot be combined with --global or --format.
With --write the file is replaced in place.`,
		Example: `  docindex fmt --check build/search_index.js
  docindex fmt --format json build/search_index.js > docs.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read asset: %w", err)
			}
			if check {
				same, err := searchindex.Regenerates(data)
				if err != nil {
					return err
				}
				if !same {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: not in canonical layout\n", args[0])
					return errInvalid
				}
				return nil
			}

			idx, err := searchindex.Parse(data)
			if err != nil {
				return err
			}

			opts := searchindex.EncodeOptions{Global: global}
			if format != "" {
				if opts.Format, err = searchindex.ParseFormat(format); err != nil {
					return err
				}
			}

			if write {
				return idx.WriteFile(args[0], opts)
			}
			return idx.Encode(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Fail if re-encoding would change the file")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Rewrite the file in place")
	cmd.Flags().StringVar(&global, "global", "", "Variable name of the JS envelope (default: keep the input's)")
	cmd.Flags().StringVar(&format, "format", "", "Output shape: js, json or array (default: keep the input's)")
	cmd.MarkFlagsMutuallyExclusive("check", "write")
	cmd.MarkFlagsMutuallyExclusive("check", "global")
	cmd.MarkFlagsMutuallyExclusive("check", "format")
	return cmd
}
