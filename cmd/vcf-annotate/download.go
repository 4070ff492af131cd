package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/inodb/vcf-annotate/internal/hgvs"
)

// UCSC publishes RefSeq (NM_/XM_) transcript models as GTF next to the
// reference genome of each build.
const ucscBaseURL = "https://hgdownload.soe.ucsc.edu/goldenPath"

const (
	transcriptDBName = "transcripts.duckdb"
	genomeName       = "genome.fa"
)

// ucscBuild returns the UCSC name of an assembly.
func ucscBuild(a hgvs.Assembly) string {
	if a == hgvs.GRCh37 {
		return "hg19"
	}
	return "hg38"
}

// refGeneURLs returns the RefSeq GTF and genome FASTA URLs for an assembly.
func refGeneURLs(a hgvs.Assembly) (gtfURL, genomeURL string) {
	build := ucscBuild(a)
	gtfURL = fmt.Sprintf("%s/%s/bigZips/genes/%s.refGene.gtf.gz", ucscBaseURL, build, build)
	genomeURL = fmt.Sprintf("%s/%s/bigZips/%s.fa.gz", ucscBaseURL, build, build)
	return
}

func newDownloadCmd() *cobra.Command {
	var (
		assembly  string
		outputDir string
		gtfOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download RefSeq transcripts and the reference genome",
		Long: `Download the UCSC RefSeq GTF and reference genome for an assembly into
~/.vcf-annotate/<assembly>/. The genome is decompressed and indexed so that
workers can read it on demand. Run 'vcf-annotate index' afterwards.`,
		Example: `  vcf-annotate download --assembly GRCh37
  vcf-annotate download --assembly GRCh38 --output /data/refs/grch38`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := hgvs.ParseAssembly(assembly)
			if err != nil {
				return &usageError{err: err}
			}
			if outputDir == "" {
				if outputDir, err = dataDir(string(a)); err != nil {
					return err
				}
			}
			return runDownload(cmd.Context(), cmd.OutOrStdout(), a, outputDir, gtfOnly)
		},
	}

	cmd.Flags().StringVar(&assembly, "assembly", "GRCh37", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.vcf-annotate/<assembly>/)")
	cmd.Flags().BoolVar(&gtfOnly, "gtf-only", false, "Only download the GTF (skip the genome)")
	return cmd
}

func runDownload(ctx context.Context, out io.Writer, a hgvs.Assembly, destDir string, gtfOnly bool) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", destDir, err)
	}

	gtfURL, genomeURL := refGeneURLs(a)
	fmt.Fprintf(out, "Downloading RefSeq annotations for %s (%s)...\n", a, ucscBuild(a))
	fmt.Fprintf(out, "Destination: %s\n\n", destDir)

	gtfFile := filepath.Join(destDir, filepath.Base(gtfURL))
	if err := downloadFile(ctx, out, gtfURL, gtfFile, false); err != nil {
		return fmt.Errorf("download GTF: %w", err)
	}

	if !gtfOnly {
		genomeFile := filepath.Join(destDir, genomeName)
		if err := downloadFile(ctx, out, genomeURL, genomeFile, true); err != nil {
			return fmt.Errorf("download genome: %w", err)
		}
		if err := ensureFastaIndex(genomeFile); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nDownload complete!\n")
	fmt.Fprintf(out, "Build the transcript database with:\n")
	fmt.Fprintf(out, "  vcf-annotate index --assembly %s\n", a)
	return nil
}

// downloadAttempts bounds retries of a transfer that failed on the network
// or with a 5xx status.
const downloadAttempts = 4

var downloadRetryInterval = 2 * time.Second

// downloadFile fetches url into destPath. The body goes to a temporary file
// that is renamed on success, so an interrupted download never looks
// complete. With gunzip the body is decompressed on the way.
func downloadFile(ctx context.Context, out io.Writer, url, destPath string, gunzip bool) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}
	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(url))

	tmpPath := destPath + ".tmp"
	var written int64
	fetch := func() error {
		n, err := fetchTo(ctx, out, url, tmpPath, gunzip)
		written = n
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = downloadRetryInterval
	notify := func(err error, wait time.Duration) {
		fmt.Fprintf(out, "\n    %v; retrying in %s\n", err, wait.Round(time.Second))
	}
	err := backoff.RetryNotify(fetch, backoff.WithContext(backoff.WithMaxRetries(b, downloadAttempts-1), ctx), notify)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	fmt.Fprintf(out, "\n    Done: %s\n", formatSize(written))
	return nil
}

// fetchTo performs one GET of url into path and returns the bytes received.
// Client errors are wrapped as permanent so they are not retried.
func fetchTo(ctx context.Context, out io.Writer, url, path string, gunzip bool) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("GET %s: %s", url, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return 0, backoff.Permanent(fmt.Errorf("GET %s: %s", url, resp.Status))
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create file: %w", err))
	}
	defer f.Close()

	pw := &progressWriter{out: out, total: resp.ContentLength, lastPrint: time.Now()}
	var body io.Reader = io.TeeReader(resp.Body, pw)
	if gunzip {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return pw.downloaded, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		body = gz
	}
	if _, err := io.Copy(f, body); err != nil {
		return pw.downloaded, fmt.Errorf("download %s: %w", url, err)
	}
	return pw.downloaded, f.Close()
}

// downloadClient allows for multi-gigabyte genome transfers.
var downloadClient = &http.Client{Timeout: 2 * time.Hour}

// progressWriter counts bytes passing through it and prints progress at
// most once a second.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.downloaded += int64(len(p))
	if time.Since(pw.lastPrint) < time.Second {
		return len(p), nil
	}
	pw.lastPrint = time.Now()
	if pw.total <= 0 {
		fmt.Fprintf(pw.out, "\r    %s received  ", formatSize(pw.downloaded))
		return len(p), nil
	}
	fmt.Fprintf(pw.out, "\r    %s of %s (%.0f%%)  ", formatSize(pw.downloaded), formatSize(pw.total),
		100*float64(pw.downloaded)/float64(pw.total))
	return len(p), nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// findRefGeneGTF looks for a downloaded RefSeq GTF in dir.
func findRefGeneGTF(dir string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.refGene.gtf*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if !strings.HasSuffix(m, ".tmp") {
			return m, true
		}
	}
	return "", false
}
