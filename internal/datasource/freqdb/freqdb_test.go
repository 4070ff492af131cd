package freqdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-annotate/internal/vcf"
)

const testTSV = `chrom	pos	ref	alt	allele_freq	consequences
1	100000	C	G	0.0123	missense_variant,splice_region_variant,missense_variant
chr12	25245350	C	A	0.00001	missense_variant
17	7674220	C	T
1	28	A	AA	0.5	frameshift_variant
`

func writeTSV(t *testing.T, name string, gz bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if !gz {
		_, err = f.WriteString(testTSV)
		require.NoError(t, err)
		return path
	}
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(testTSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func loadedStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	n, err := store.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	return store
}

func TestLoadAndLookup(t *testing.T) {
	store := loadedStore(t, writeTSV(t, "af.tsv", false))
	ctx := context.Background()

	got, err := store.Lookup(ctx, vcf.Variant{Chrom: "chr1", Pos: 100000, Ref: "C", Alt: "G"})
	require.NoError(t, err)
	require.NotNil(t, got.AlleleFrequency)
	assert.InDelta(t, 0.0123, *got.AlleleFrequency, 1e-9)
	assert.Equal(t, []string{"missense_variant", "splice_region_variant"}, got.Consequences)

	got, err = store.Lookup(ctx, vcf.Variant{Chrom: "12", Pos: 25245350, Ref: "C", Alt: "A"})
	require.NoError(t, err)
	require.NotNil(t, got.AlleleFrequency)

	got, err = store.Lookup(ctx, vcf.Variant{Chrom: "17", Pos: 7674220, Ref: "C", Alt: "T"})
	require.NoError(t, err)
	assert.Nil(t, got.AlleleFrequency, "present row without a frequency")
	assert.Empty(t, got.Consequences)

	got, err = store.Lookup(ctx, vcf.Variant{Chrom: "1", Pos: 28, Ref: "A", Alt: "AA"})
	require.NoError(t, err)
	assert.Equal(t, []string{"frameshift_variant"}, got.Consequences)
}

func TestLookupNotFound(t *testing.T) {
	store := loadedStore(t, writeTSV(t, "af.tsv", false))

	got, err := store.Lookup(context.Background(), vcf.Variant{Chrom: "1", Pos: 100000, Ref: "C", Alt: "T"})
	require.NoError(t, err)
	assert.Nil(t, got.AlleleFrequency)
	assert.Nil(t, got.Consequences)
}

func TestLoadGzipReplaces(t *testing.T) {
	ctx := context.Background()
	store := loadedStore(t, writeTSV(t, "af.tsv.gz", true))

	n, err := store.Load(ctx, writeTSV(t, "again.tsv.gz", true))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count, "reload replaces rows")
}

func TestLoadMissingFile(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Load(context.Background(), filepath.Join(t.TempDir(), "missing.tsv"))
	assert.Error(t, err)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "af.duckdb")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.FileExists(t, path)
}

func TestSplitTerms(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitTerms("b, a,,b"))
	assert.Nil(t, splitTerms(""))
}
