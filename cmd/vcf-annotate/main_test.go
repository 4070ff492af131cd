package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/output"
)

// Contig 1 of the test genome carries one forward-strand gene, GENE1
// (NM_000001.1), with a CDS at 21-35 and 56-70.
var testContig = "GGGGGGGGGG" + "CCCCCCCCCC" + "ATGGCTGAAAAGCTG" +
	"GTAAGT" + strings.Repeat("T", 10) + "TCAG" +
	"GGCAAATCCTGGTAA" + "CCCCCCCCCC" + "GGGGGGGGGG"

const testGTF = `1	refGene	exon	11	35	.	+	.	gene_id "GENE1"; transcript_id "NM_000001.1"; exon_number "1"; gene_name "GENE1";
1	refGene	CDS	21	35	.	+	0	gene_id "GENE1"; transcript_id "NM_000001.1"; exon_number "1"; gene_name "GENE1"; protein_id "NP_000001.1";
1	refGene	start_codon	21	23	.	+	0	gene_id "GENE1"; transcript_id "NM_000001.1"; exon_number "1"; gene_name "GENE1";
1	refGene	exon	56	80	.	+	.	gene_id "GENE1"; transcript_id "NM_000001.1"; exon_number "2"; gene_name "GENE1";
1	refGene	CDS	56	67	.	+	0	gene_id "GENE1"; transcript_id "NM_000001.1"; exon_number "2"; gene_name "GENE1"; protein_id "NP_000001.1";
1	refGene	stop_codon	68	70	.	+	0	gene_id "GENE1"; transcript_id "NM_000001.1"; exon_number "2"; gene_name "GENE1";
`

const testVCF = `##fileformat=VCFv4.1
##reference=file:///refs/human_g1k_v37.fasta
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
1	5	.	G	T	.	PASS	DP=8	GT:DPR	0/1:4,4	0/0:6,0
1	27	.	G	C,GA	.	PASS	DP=50	GT:DPR	0/2:30,0,20	0/1:0,10,0
1	30	.	A	G	.	PASS	DP=12	GT:DPR	0/0:0,0	0/0:0,0
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// indexTestData builds the transcript database and genome index that
// annotate reads.
func indexTestData(t *testing.T) (transcripts, genome string) {
	t.Helper()
	dir := t.TempDir()
	gtf := writeFile(t, filepath.Join(dir, "test.refGene.gtf"), testGTF)
	genome = writeFile(t, filepath.Join(dir, genomeName), ">1\n"+testContig+"\n")
	transcripts = filepath.Join(dir, transcriptDBName)

	var out bytes.Buffer
	require.NoError(t, runIndex(context.Background(), &out, gtf, transcripts, genome))
	assert.Contains(t, out.String(), "Wrote 1 transcripts")
	assert.FileExists(t, genome+".fai")
	return transcripts, genome
}

func testSettings(transcripts, genome string) *Settings {
	s := &Settings{}
	s.Annotate.Workers = 2
	s.Annotate.ChunkSize = 1
	s.Annotate.Timeout = 10 * time.Second
	s.Annotate.OutputFormat = "csv"
	s.Engine.Transcripts = transcripts
	s.Engine.Genome = genome
	s.Engine.CodingPrefixes = annotate.DefaultCodingPrefixes
	s.Frequency.Source = "none"
	s.Log.Level = "error"
	return s
}

func TestRunAnnotate_EndToEnd(t *testing.T) {
	transcripts, genome := indexTestData(t)
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "in.vcf"), testVCF)
	outPath := filepath.Join(dir, "out.csv")

	var stderr bytes.Buffer
	err := runAnnotate(context.Background(), &stderr, testSettings(transcripts, genome), input, outPath)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "Annotated 3 loci: 2 written, 1 skipped")

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "one header and one row per annotated locus")
	assert.Equal(t, output.Columns, records[0])

	intergenic := records[1]
	assert.Equal(t, []string{"1", "5", "G", "T", "1", "8", "4", "0.40", "S1"}, intergenic[:9])
	assert.Equal(t, "substitution", intergenic[9])
	assert.Equal(t, "intron_variant", intergenic[10])
	assert.Equal(t, "NC_000001.10:g.5G>T", intergenic[11])
	assert.Empty(t, intergenic[14])

	frameshift := records[2]
	assert.Equal(t, []string{"1", "27", "G", "GA", "2", "50", "20", "0.67", "S1"}, frameshift[:9])
	assert.Equal(t, []string{
		"duplication", "frameshift_variant",
		"NC_000001.10:g.31dup", "NM_000001.1:c.11dup", "NP_000001.1:p.(Leu5AlafsTer?)",
		"GENE1", "", "",
	}, frameshift[9:])
}

func TestRunAnnotate_DuckDBOutput(t *testing.T) {
	transcripts, genome := indexTestData(t)
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "in.vcf"), testVCF)
	outPath := filepath.Join(dir, "results.duckdb")

	s := testSettings(transcripts, genome)
	s.Annotate.OutputFormat = "duckdb"
	require.NoError(t, runAnnotate(context.Background(), &bytes.Buffer{}, s, input, outPath))
	assert.FileExists(t, outPath)
}

func TestRunAnnotate_MissingIndex(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "in.vcf"), testVCF)
	s := testSettings(filepath.Join(dir, "none.duckdb"), filepath.Join(dir, "none.fa"))

	err := runAnnotate(context.Background(), &bytes.Buffer{}, s, input, filepath.Join(dir, "out.csv"))
	var ue *usageError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, err.Error(), "vcf-annotate index")
	assert.NoFileExists(t, filepath.Join(dir, "out.csv"))
}

func TestRunAnnotate_FailureRemovesOutput(t *testing.T) {
	transcripts, genome := indexTestData(t)
	dir := t.TempDir()
	bad := strings.Replace(testVCF, "1\t30\t.", "1\tthirty\t.", 1)
	input := writeFile(t, filepath.Join(dir, "in.vcf"), bad)
	outPath := filepath.Join(dir, "out.csv")

	err := runAnnotate(context.Background(), &bytes.Buffer{}, testSettings(transcripts, genome), input, outPath)
	require.Error(t, err)
	assert.NoFileExists(t, outPath, "partial output is removed")
}

func TestResolveAssembly(t *testing.T) {
	a, err := resolveAssembly("", "file:///data/human_g1k_v37.fasta")
	require.NoError(t, err)
	assert.Equal(t, hgvs.GRCh37, a)

	a, err = resolveAssembly("GRCh38", "file:///data/human_g1k_v37.fasta")
	require.NoError(t, err)
	assert.Equal(t, hgvs.GRCh38, a, "setting wins over the header")

	_, err = resolveAssembly("", "")
	var ue *usageError
	assert.True(t, errors.As(err, &ue))

	_, err = resolveAssembly("mm10", "")
	assert.True(t, errors.As(err, &ue))
}

func TestLoadSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, ".vcf-annotate.yaml"), `annotate:
  workers: 4
engine:
  coding_prefixes: NM_,NR_
`)
	t.Setenv("VCF_ANNOTATE_ANNOTATE_TIMEOUT", "5s")

	require.NoError(t, initConfig("", false))
	s, err := loadSettings()
	require.NoError(t, err)

	assert.Equal(t, 4, s.Annotate.Workers)
	assert.Equal(t, 1, s.Annotate.ChunkSize)
	assert.Equal(t, 5*time.Second, s.Annotate.Timeout)
	assert.Equal(t, 200*time.Millisecond, s.Annotate.RetryInterval)
	assert.Equal(t, []string{"NM_", "NR_"}, s.Engine.CodingPrefixes)
	assert.Equal(t, "exac", s.Frequency.Source)
	assert.Equal(t, "info", s.Log.Level)
}

func TestInitConfig_Verbose(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, initConfig("", true))
	assert.Equal(t, "debug", viper.GetString("log.level"))
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	err := initConfig(filepath.Join(t.TempDir(), "nope.yaml"), false)
	assert.Error(t, err)
}

func TestParseConfigValue(t *testing.T) {
	assert.Equal(t, true, parseConfigValue("yes"))
	assert.Equal(t, false, parseConfigValue("off"))
	assert.Equal(t, 8, parseConfigValue("8"))
	assert.Equal(t, "duckdb", parseConfigValue("duckdb"))
}

func TestConfigSet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "set", "Annotate.Workers", "6"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Set annotate.workers = 6")

	data, err := os.ReadFile(filepath.Join(home, ".vcf-annotate.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "workers: 6")

	var ue *usageError
	root = newRootCmd()
	root.SetArgs([]string{"config", "set", "annotate.wrokers", "6"})
	err = root.Execute()
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, err.Error(), "unknown config key")

	root = newRootCmd()
	root.SetArgs([]string{"config", "set", "annotate.timeout", "soon"})
	assert.True(t, errors.As(root.Execute(), &ue))
}

func TestRootCmd_ExitClasses(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "vcf-annotate version dev")

	var ue *usageError
	root = newRootCmd()
	root.SetArgs([]string{"annotate", "only-one-arg"})
	assert.True(t, errors.As(root.Execute(), &ue))

	root = newRootCmd()
	root.SetArgs([]string{"annotate", "--no-such-flag", "a", "b"})
	assert.True(t, errors.As(root.Execute(), &ue))
}

func TestDocsCmd(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	dir := filepath.Join(t.TempDir(), "docs")
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"docs", dir})
	require.NoError(t, root.Execute())
	assert.FileExists(t, filepath.Join(dir, "vcf-annotate.md"))
	assert.FileExists(t, filepath.Join(dir, "vcf-annotate_annotate.md"))
	assert.FileExists(t, filepath.Join(dir, "vcf-annotate_frequency_load.md"))
}

func TestRefGeneURLs(t *testing.T) {
	gtf, genome := refGeneURLs(hgvs.GRCh37)
	assert.Equal(t, "https://hgdownload.soe.ucsc.edu/goldenPath/hg19/bigZips/genes/hg19.refGene.gtf.gz", gtf)
	assert.Equal(t, "https://hgdownload.soe.ucsc.edu/goldenPath/hg19/bigZips/hg19.fa.gz", genome)

	gtf, _ = refGeneURLs(hgvs.GRCh38)
	assert.Contains(t, gtf, "/hg38/")
}

func TestDownloadFile_RetriesServerErrors(t *testing.T) {
	defer func(d time.Duration) { downloadRetryInterval = d }(downloadRetryInterval)
	downloadRetryInterval = time.Millisecond

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(">1\nACGT\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.fa.gz":
			http.NotFound(w, r)
		default:
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write(gz.Bytes())
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, genomeName)
	var out bytes.Buffer
	require.NoError(t, downloadFile(context.Background(), &out, srv.URL+"/hg19.fa.gz", dest, true))
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, out.String(), "503 Service Unavailable; retrying")
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, ">1\nACGT\n", string(got))
	assert.NoFileExists(t, dest+".tmp")

	// An existing file is left alone.
	require.NoError(t, downloadFile(context.Background(), &out, srv.URL+"/hg19.fa.gz", dest, true))
	assert.Equal(t, int32(2), calls.Load())

	err = downloadFile(context.Background(), &out, srv.URL+"/missing.fa.gz", filepath.Join(dir, "x.fa"), true)
	assert.ErrorContains(t, err, "404 Not Found")
	assert.NoFileExists(t, filepath.Join(dir, "x.fa"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
