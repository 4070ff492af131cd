package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/grailbio/bio/encoding/fasta"
	"github.com/spf13/cobra"

	"github.com/inodb/vcf-annotate/internal/cache"
	"github.com/inodb/vcf-annotate/internal/hgvs"
)

func newIndexCmd() *cobra.Command {
	var (
		assembly   string
		gtfPath    string
		outputPath string
		genomePath string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the transcript database from a GTF",
		Long: `Index loads transcript models from a RefSeq or GENCODE GTF into a DuckDB
database that annotation workers open read-only. It also writes a .fai index
for the reference genome when one is missing.`,
		Example: `  # Index the files fetched by 'download'
  vcf-annotate index --assembly GRCh37

  # Index a custom GTF
  vcf-annotate index --gtf refGene.gtf.gz --output transcripts.duckdb --genome hg19.fa`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := hgvs.ParseAssembly(assembly)
			if err != nil {
				return &usageError{err: err}
			}
			dir, err := dataDir(string(a))
			if err != nil {
				return err
			}
			if gtfPath == "" {
				var ok bool
				if gtfPath, ok = findRefGeneGTF(dir); !ok {
					return usagef("no GTF found in %s; run 'vcf-annotate download --assembly %s' or pass --gtf", dir, a)
				}
			}
			if outputPath == "" {
				outputPath = filepath.Join(dir, transcriptDBName)
			}
			if genomePath == "" {
				genomePath = filepath.Join(dir, genomeName)
			}
			return runIndex(cmd.Context(), cmd.OutOrStdout(), gtfPath, outputPath, genomePath)
		},
	}

	cmd.Flags().StringVar(&assembly, "assembly", "GRCh37", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&gtfPath, "gtf", "", "GTF file, plain or gzipped (default: downloaded RefSeq GTF)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output DuckDB file (default: ~/.vcf-annotate/<assembly>/transcripts.duckdb)")
	cmd.Flags().StringVar(&genomePath, "genome", "", "Reference FASTA to index (default: ~/.vcf-annotate/<assembly>/genome.fa)")
	return cmd
}

func runIndex(ctx context.Context, out io.Writer, gtfPath, outputPath, genomePath string) error {
	fmt.Fprintf(out, "Loading transcripts from %s...\n", gtfPath)
	c := cache.New()
	stats, err := cache.LoadGTF(gtfPath, c)
	if err != nil {
		return fmt.Errorf("load GTF: %w", err)
	}
	fmt.Fprintf(out, "Loaded %d transcripts on %d chromosomes (%d malformed lines, %d alternate contig lines skipped)\n",
		stats.Transcripts, len(c.Chromosomes()), stats.Malformed, stats.AltContigs)

	// Rebuild from scratch; stale transcripts would otherwise survive.
	for _, p := range []string{outputPath, outputPath + ".wal"} {
		if err := removeIfExists(p); err != nil {
			return fmt.Errorf("remove existing database: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	abs, err := filepath.Abs(gtfPath)
	if err != nil {
		abs = gtfPath
	}
	store, err := cache.CreateTranscriptStore(ctx, outputPath, abs)
	if err != nil {
		return err
	}
	defer store.Close()

	var inserted int
	for _, chrom := range c.Chromosomes() {
		n, err := store.InsertTranscripts(ctx, c.FindTranscriptsByChrom(chrom))
		if err != nil {
			return err
		}
		inserted += n
	}

	count, err := store.TranscriptCount(ctx)
	if err != nil {
		return fmt.Errorf("verify count: %w", err)
	}
	fmt.Fprintf(out, "Wrote %d transcripts (%d in database) to %s\n", inserted, count, outputPath)

	if _, err := os.Stat(genomePath); err == nil {
		if err := ensureFastaIndex(genomePath); err != nil {
			return err
		}
		fmt.Fprintf(out, "Genome index: %s.fai\n", genomePath)
	} else {
		fmt.Fprintf(out, "Warning: genome %s not found; annotation needs it\n", genomePath)
	}
	return nil
}

// ensureFastaIndex writes a samtools-style .fai next to an uncompressed
// FASTA unless one exists.
func ensureFastaIndex(path string) error {
	idxPath := path + ".fai"
	if _, err := os.Stat(idxPath); err == nil {
		return nil
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open genome: %w", err)
	}
	defer in.Close()

	tmp := idxPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create genome index: %w", err)
	}
	err = fasta.GenerateIndex(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index genome: %w", err)
	}
	return os.Rename(tmp, idxPath)
}
