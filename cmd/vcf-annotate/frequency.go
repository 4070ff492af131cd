package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inodb/vcf-annotate/internal/datasource/freqdb"
)

func newFrequencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frequency",
		Short: "Manage the local allele frequency table",
	}
	cmd.AddCommand(newFrequencyLoadCmd())
	return cmd
}

func newFrequencyLoadCmd() *cobra.Command {
	var tsvPath, dbPath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load allele frequencies from a TSV into a DuckDB file",
		Long: `Load replaces the contents of the frequency table with a TSV (optionally
gzipped) with the columns chrom, pos, ref, alt, allele_freq and consequences,
where consequences is a comma-separated list. Annotate reads the table with
--frequency duckdb --frequency-db <DB>.`,
		Example: `  vcf-annotate frequency load --tsv exac.sites.tsv.gz --db exac.duckdb`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tsvPath == "" || dbPath == "" {
				return usagef("--tsv and --db are required")
			}

			store, err := freqdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Load(cmd.Context(), tsvPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d allele frequencies into %s\n", n, dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&tsvPath, "tsv", "", "Input TSV (plain or .gz)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Output DuckDB file")
	return cmd
}
