package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// newDocsCmd writes one markdown page per command, for the project site.
func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "docs <dir>",
		Short:  "Generate markdown documentation for every command",
		Hidden: true,
		Args:   exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create docs directory: %w", err)
			}
			root := cmd.Root()
			root.DisableAutoGenTag = true
			if err := doc.GenMarkdownTree(root, dir); err != nil {
				return fmt.Errorf("generate docs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote command reference to %s\n", dir)
			return nil
		},
	}
}
