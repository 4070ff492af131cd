package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txIDs(ts []*Transcript) []string {
	ids := make([]string, 0, len(ts))
	for _, tx := range ts {
		ids = append(ids, tx.ID)
	}
	return ids
}

func TestIntervalTree_FindRange(t *testing.T) {
	// Deliberately unsorted; NM_3 is only reachable through the running
	// maximum of ends once NM_2 has ended.
	tree := BuildIntervalTree([]*Transcript{
		{ID: "NM_4", Start: 9000, End: 10000},
		{ID: "NM_1", Start: 1000, End: 1100},
		{ID: "NM_3", Start: 1050, End: 8000},
		{ID: "NM_2", Start: 1060, End: 1200},
		{ID: "NM_5", Start: 9000, End: 9500},
	})

	tests := []struct {
		name       string
		start, end int64
		want       []string
	}{
		{"before all", 1, 999, []string{}},
		{"first base inclusive", 1000, 1000, []string{"NM_1"}},
		{"last base inclusive", 1100, 1100, []string{"NM_1", "NM_3", "NM_2"}},
		{"long transcript alone", 5000, 5000, []string{"NM_3"}},
		{"range spans gap", 7999, 9000, []string{"NM_3", "NM_4", "NM_5"}},
		{"gap", 8001, 8999, []string{}},
		{"equal starts keep input order", 9200, 9300, []string{"NM_4", "NM_5"}},
		{"after all", 10001, 20000, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, txIDs(tree.FindRange(tt.start, tt.end)))
		})
	}
}

func TestIntervalTree_Empty(t *testing.T) {
	assert.Empty(t, BuildIntervalTree(nil).FindOverlaps(1))
}

func TestIntervalTree_AgreesWithContains(t *testing.T) {
	transcripts := []*Transcript{
		{ID: "a", Start: 10, End: 50},
		{ID: "b", Start: 20, End: 30},
		{ID: "c", Start: 40, End: 80},
		{ID: "d", Start: 60, End: 70},
		{ID: "e", Start: 90, End: 100},
	}
	tree := BuildIntervalTree(transcripts)

	for pos := int64(0); pos <= 110; pos++ {
		want := []string{}
		for _, tx := range transcripts {
			if tx.Contains(pos) {
				want = append(want, tx.ID)
			}
		}
		assert.Equal(t, want, txIDs(tree.FindOverlaps(pos)), "pos %d", pos)
	}
}

func TestCache_FindTranscriptsRebuildsAfterAdd(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.AddTranscript(&Transcript{ID: "NM_1", Chrom: "7", Start: 100, End: 200})

	got, err := c.FindTranscripts(ctx, "7", 150, 150)
	require.NoError(t, err)
	assert.Equal(t, []string{"NM_1"}, txIDs(got))

	c.AddTranscript(&Transcript{ID: "NM_2", Chrom: "7", Start: 140, End: 160})
	got, err = c.FindTranscripts(ctx, "7", 150, 150)
	require.NoError(t, err)
	assert.Equal(t, []string{"NM_1", "NM_2"}, txIDs(got))

	got, err = c.FindTranscripts(ctx, "X", 150, 150)
	require.NoError(t, err)
	assert.Empty(t, got)

	tx, err := c.GetTranscript(ctx, "NM_2")
	require.NoError(t, err)
	assert.Equal(t, int64(140), tx.Start)
	assert.Equal(t, 2, c.TranscriptCount())
	assert.Equal(t, []string{"7"}, c.Chromosomes())
}
