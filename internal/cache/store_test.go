package cache

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func krasTranscript() *Transcript {
	return &Transcript{
		ID:        "NM_004985.5",
		GeneID:    "3845",
		GeneName:  "KRAS",
		ProteinID: "NP_004976.2",
		Chrom:     "12",
		Start:     25205246,
		End:       25250929,
		Strand:    -1,
		Biotype:   "mRNA",
		CDSStart:  25209798,
		CDSEnd:    25245384,
		Exons: []Exon{
			{Number: 6, Start: 25205246, End: 25205332, Frame: -1},
			{Number: 5, Start: 25209798, End: 25209911, CDSStart: 25209798, CDSEnd: 25209911, Frame: 0},
			{Number: 4, Start: 25225614, End: 25225773, CDSStart: 25225614, CDSEnd: 25225773, Frame: 1},
			{Number: 3, Start: 25227234, End: 25227412, CDSStart: 25227234, CDSEnd: 25227412, Frame: 2},
			{Number: 2, Start: 25245274, End: 25245395, CDSStart: 25245274, CDSEnd: 25245384, Frame: 0},
			{Number: 1, Start: 25250751, End: 25250929, Frame: -1},
		},
	}
}

func writeTestDB(t *testing.T, transcripts ...*Transcript) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transcripts.duckdb")

	s, err := CreateTranscriptStore(ctx, path, "test.gtf")
	require.NoError(t, err)
	n, err := s.InsertTranscripts(ctx, transcripts)
	require.NoError(t, err)
	require.Equal(t, len(transcripts), n)
	require.NoError(t, s.Close())
	return path
}

func openTestDB(t *testing.T, path string) *TranscriptStore {
	t.Helper()
	s, err := OpenTranscriptStore(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTranscriptStore_GetTranscript(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t, writeTestDB(t, krasTranscript()))

	n, err := s.TranscriptCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	src, err := s.Source(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test.gtf", src)

	got, err := s.GetTranscript(ctx, "NM_004985.5")
	require.NoError(t, err)
	require.NotNil(t, got)

	want := krasTranscript()
	// Exons are stored unordered and come back by genomic start.
	assert.Equal(t, want.Exons, got.Exons)
	got.Exons, want.Exons = nil, nil
	assert.Equal(t, want, got)

	got, err = s.GetTranscript(ctx, "NM_999999.1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTranscriptStore_FindTranscripts(t *testing.T) {
	ctx := context.Background()
	lnc := &Transcript{ID: "NR_000001.1", GeneName: "LNC1", Chrom: "12", Start: 1000, End: 2000, Strand: 1,
		Exons: []Exon{{Number: 1, Start: 1000, End: 2000, Frame: -1}}}
	bare := &Transcript{ID: "NR_000002.1", Chrom: "12", Start: 1500, End: 1600, Strand: -1}
	s := openTestDB(t, writeTestDB(t, krasTranscript(), lnc, bare))

	tests := []struct {
		name       string
		chrom      string
		start, end int64
		want       []string
	}{
		{"inside KRAS exon 2", "12", 25245351, 25245351, []string{"NM_004985.5"}},
		{"ordered by start", "12", 1500, 25205246, []string{"NR_000001.1", "NR_000002.1", "NM_004985.5"}},
		{"between transcripts", "12", 2001, 25205245, []string{}},
		{"other chromosome", "7", 1500, 1500, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := s.FindTranscripts(ctx, tt.chrom, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, txIDs(found))
		})
	}

	found, err := s.FindTranscripts(ctx, "12", 1000, 1000)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Len(t, found[0].Exons, 1)

	found, err = s.FindTranscripts(ctx, "12", 1550, 1550)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Empty(t, found[1].Exons, "a transcript without exons still joins")
}

func TestTranscriptStore_InsertSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s, err := CreateTranscriptStore(ctx, filepath.Join(t.TempDir(), "dup.duckdb"), "a.gtf")
	require.NoError(t, err)
	defer s.Close()

	n, err := s.InsertTranscripts(ctx, []*Transcript{krasTranscript()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.InsertTranscripts(ctx, []*Transcript{krasTranscript()})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	chroms, err := s.Chromosomes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"12"}, chroms)
}

func TestOpenTranscriptStore_SchemaMismatch(t *testing.T) {
	path := writeTestDB(t, krasTranscript())
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE store_meta SET value = '1' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenTranscriptStore(context.Background(), path)
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

func TestOpenTranscriptStore_Missing(t *testing.T) {
	_, err := OpenTranscriptStore(context.Background(), filepath.Join(t.TempDir(), "nope.duckdb"))
	assert.Error(t, err)
}
