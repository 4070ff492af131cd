package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/datasource/exac"
	"github.com/inodb/vcf-annotate/internal/datasource/freqdb"
	"github.com/inodb/vcf-annotate/internal/duckdb"
	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/output"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// annotateFlags maps config keys to the annotate command's flags.
var annotateFlags = map[string]string{
	"annotate.workers":       "workers",
	"annotate.chunk_size":    "chunk-size",
	"annotate.timeout":       "timeout",
	"annotate.retries":       "retries",
	"annotate.output_format": "output-format",
	"engine.assembly":        "assembly",
	"engine.transcripts":     "transcripts",
	"engine.genome":          "genome",
	"engine.coding_prefixes": "coding-prefixes",
	"frequency.source":       "frequency",
	"frequency.url":          "frequency-url",
	"frequency.db":           "frequency-db",
}

func newAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate [flags] <input-vcf> <output>",
		Short: "Annotate the most deleterious allele of every VCF locus",
		Long: `Annotate reads a VCF (plain or gzipped, '-' for stdin), picks the most
deleterious alternate allele at every locus and writes one row per locus.

Loci that cannot be annotated (no reference reads, a frequency service that
keeps timing out) are skipped and counted. Failures of the transcript data
provider abort the run, and a partially written output file is removed.`,
		Example: `  vcf-annotate annotate input.vcf out.csv
  vcf-annotate annotate --workers 8 --chunk-size 50 -f tab input.vcf.gz out.tsv
  vcf-annotate annotate --frequency duckdb --frequency-db freq.duckdb input.vcf out.csv
  vcf-annotate annotate -f duckdb input.vcf results.duckdb`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			for key, name := range annotateFlags {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return runAnnotate(cmd.Context(), cmd.ErrOrStderr(), s, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.Int("workers", 0, "Number of annotation workers (default: number of CPUs)")
	f.Int("chunk-size", 1, "Loci per work item")
	f.Duration("timeout", 30*time.Second, "Per-locus deadline")
	f.Int("retries", 3, "Retries for loci that time out or hit transport errors")
	f.StringP("output-format", "f", "csv", "Output format: csv, tab or duckdb")
	f.String("assembly", "", "Genome assembly: GRCh37 or GRCh38 (default: from the ##reference header)")
	f.String("transcripts", "", "Transcript database built by 'index' (default: ~/.vcf-annotate/<assembly>/transcripts.duckdb)")
	f.String("genome", "", "Reference FASTA (default: ~/.vcf-annotate/<assembly>/genome.fa)")
	f.StringSlice("coding-prefixes", annotate.DefaultCodingPrefixes, "Transcript accession prefixes considered for coding consequences")
	f.String("frequency", "exac", "Allele frequency source: exac, duckdb or none")
	f.String("frequency-url", exac.DefaultBaseURL, "Base URL of the ExAC REST API")
	f.String("frequency-db", "", "DuckDB file loaded by 'frequency load'")

	return cmd
}

func runAnnotate(ctx context.Context, stderr io.Writer, s *Settings, inputPath, outputPath string) error {
	logger, err := newLogger(s.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	parser, err := vcf.NewParser(inputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return usagef("%v", err)
		}
		return err
	}
	defer parser.Close()

	assembly, err := resolveAssembly(s.Engine.Assembly, parser.Reference())
	if err != nil {
		return err
	}
	opts, err := engineOptions(s, assembly)
	if err != nil {
		return err
	}

	freq, closeFreq, err := openFrequency(s, logger)
	if err != nil {
		return err
	}
	defer closeFreq()

	ann := annotate.NewAnnotator(freq)
	ann.SetCodingPrefixes(s.Engine.CodingPrefixes)
	ann.SetLogger(logger)

	sink, err := openSink(ctx, s.Annotate.OutputFormat, runID, inputPath, outputPath)
	if err != nil {
		return err
	}

	orch := &annotate.Orchestrator{
		Workers:       s.Annotate.Workers,
		ChunkSize:     s.Annotate.ChunkSize,
		Timeout:       s.Annotate.Timeout,
		Retries:       s.Annotate.Retries,
		RetryInterval: s.Annotate.RetryInterval,
		Annotator:     ann,
		Logger:        logger,
		Engine: func(ctx context.Context) (annotate.Engine, error) {
			e, err := hgvs.Open(ctx, opts)
			if err != nil {
				return nil, err
			}
			e.SetLogger(logger)
			return e, nil
		},
	}

	fileformat, _ := parser.Header().Get("fileformat")
	logger.Info("annotating",
		zap.String("input", inputPath),
		zap.String("fileformat", fileformat),
		zap.Int("samples", len(parser.SampleNames())),
		zap.String("output", outputPath),
		zap.String("assembly", string(assembly)),
		zap.String("frequency", s.Frequency.Source))

	stats, runErr := orch.Run(ctx, parser, sink.writer)
	if err := sink.close(ctx, stats, runErr); err != nil {
		if runErr == nil {
			return err
		}
		logger.Warn("closing output after failure", zap.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(stderr, "Annotated %d loci: %d written, %d skipped\n", stats.Loci, stats.Written, stats.Skipped)
	return nil
}

// resolveAssembly prefers an explicit setting over the VCF header.
func resolveAssembly(setting, reference string) (hgvs.Assembly, error) {
	if setting != "" {
		a, err := hgvs.ParseAssembly(setting)
		if err != nil {
			return "", &usageError{err: err}
		}
		return a, nil
	}
	if a, ok := hgvs.AssemblyFromReference(reference); ok {
		return a, nil
	}
	return "", usagef("cannot infer the assembly from ##reference=%q; pass --assembly", reference)
}

// engineOptions fills in default data paths and checks that they exist, so
// a missing index is reported once instead of by every worker.
func engineOptions(s *Settings, assembly hgvs.Assembly) (hgvs.Options, error) {
	opts := hgvs.Options{
		Assembly:     assembly,
		TranscriptDB: s.Engine.Transcripts,
		GenomePath:   s.Engine.Genome,
	}
	if opts.TranscriptDB == "" || opts.GenomePath == "" {
		dir, err := dataDir(string(assembly))
		if err != nil {
			return opts, err
		}
		if opts.TranscriptDB == "" {
			opts.TranscriptDB = filepath.Join(dir, transcriptDBName)
		}
		if opts.GenomePath == "" {
			opts.GenomePath = filepath.Join(dir, genomeName)
		}
	}

	if _, err := os.Stat(opts.TranscriptDB); err != nil {
		return opts, usagef("transcript database %s not found; build it with: vcf-annotate index --assembly %s",
			opts.TranscriptDB, assembly)
	}
	if _, err := os.Stat(opts.GenomePath); err != nil {
		return opts, usagef("reference genome %s not found; fetch it with: vcf-annotate download --assembly %s",
			opts.GenomePath, assembly)
	}
	return opts, nil
}

// openFrequency returns the configured frequency source and its closer.
func openFrequency(s *Settings, logger *zap.Logger) (annotate.FrequencySource, func() error, error) {
	noop := func() error { return nil }
	switch s.Frequency.Source {
	case "exac", "":
		c := exac.NewClient(s.Frequency.URL)
		c.SetLogger(logger)
		return c, noop, nil
	case "duckdb":
		if s.Frequency.DB == "" {
			return nil, nil, usagef("--frequency duckdb needs --frequency-db")
		}
		if _, err := os.Stat(s.Frequency.DB); err != nil {
			return nil, nil, usagef("frequency database %s not found; build it with: vcf-annotate frequency load", s.Frequency.DB)
		}
		store, err := freqdb.Open(s.Frequency.DB)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "none":
		return annotate.NoFrequency{}, noop, nil
	}
	return nil, nil, usagef("unknown frequency source %q (use exac, duckdb or none)", s.Frequency.Source)
}

// sink is an opened output together with the cleanup that depends on how
// the run ended.
type sink struct {
	writer annotate.RecordWriter
	close  func(ctx context.Context, stats annotate.Stats, runErr error) error
}

func openSink(ctx context.Context, format, runID, inputPath, outputPath string) (*sink, error) {
	switch format {
	case "csv", "tab":
		return openFileSink(format, outputPath)
	case "duckdb":
		return openDuckDBSink(ctx, runID, inputPath, outputPath)
	}
	return nil, usagef("unknown output format %q (use csv, tab or duckdb)", format)
}

func openFileSink(format, outputPath string) (*sink, error) {
	var out *os.File
	if outputPath == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		out = f
	}

	var w annotate.RecordWriter
	if format == "tab" {
		w = output.NewTabWriter(out)
	} else {
		w = output.NewCSVWriter(out)
	}

	return &sink{
		writer: w,
		close: func(_ context.Context, _ annotate.Stats, runErr error) error {
			if out == os.Stdout {
				return nil
			}
			err := out.Close()
			if runErr != nil {
				return errors.Join(err, os.Remove(outputPath))
			}
			return err
		},
	}, nil
}

// openDuckDBSink appends to a results database. A failed run keeps its
// runs row without a finish time; the file itself is only removed when
// this run created it.
func openDuckDBSink(ctx context.Context, runID, inputPath, outputPath string) (*sink, error) {
	_, statErr := os.Stat(outputPath)
	created := os.IsNotExist(statErr)

	store, err := duckdb.Open(outputPath)
	if err != nil {
		return nil, err
	}

	fp := duckdb.FileFingerprint{Path: inputPath}
	if inputPath != "-" {
		if fp, err = duckdb.StatFile(inputPath); err != nil {
			store.Close()
			return nil, fmt.Errorf("stat input: %w", err)
		}
	}
	if err := store.StartRun(ctx, runID, fp); err != nil {
		store.Close()
		return nil, err
	}

	w, err := store.NewAnnotationWriter(ctx, runID)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &sink{
		writer: w,
		close: func(ctx context.Context, stats annotate.Stats, runErr error) error {
			err := w.Close()
			if runErr == nil && err == nil {
				err = store.FinishRun(ctx, runID, stats.Loci, stats.Written, stats.Skipped)
			}
			err = errors.Join(err, store.Close())
			if runErr != nil && created {
				err = errors.Join(err, os.Remove(outputPath), removeIfExists(outputPath+".wal"))
			}
			return err
		},
	}, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
