package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func krasAnnotation(pos int64, af *float64) *annotate.VariantAnnotation {
	return &annotate.VariantAnnotation{
		Variant: vcf.Variant{Chrom: "12", Pos: pos, Ref: "C", Alt: "A", AlleleIndex: 1},
		Support: annotate.DepthAnnotation{SiteDepth: 40, AlleleDepth: 10, AlleleFraction: 0.33, Samples: []string{"T1"}},
		Consequence: annotate.ConsequenceAnnotation{
			Genomic: &hgvs.GenomicVariant{
				Accession: "NC_000012.11", Contig: "12", Start: pos, End: pos,
				Edit: hgvs.Edit{Type: hgvs.EditSub, Ref: "C", Alt: "A"},
			},
			Alteration: annotate.AlterationSubstitution,
			Feature:    annotate.FeatureMissense,
			Coding: &hgvs.CodingVariant{
				Transcript: "NM_004985.5",
				Start:      hgvs.CodingPos{Base: 35}, End: hgvs.CodingPos{Base: 35},
				Edit: hgvs.Edit{Type: hgvs.EditSub, Ref: "G", Alt: "T"},
			},
			Protein: &hgvs.ProteinVariant{
				Accession: "NP_004976.2",
				Edit:      hgvs.ProteinEdit{Type: hgvs.EditSub, Text: "Gly12Val"},
			},
			Gene: "KRAS",
		},
		Frequency: annotate.FrequencyAnnotation{AlleleFrequency: af},
	}
}

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())
}

func TestRunLifecycle(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "in.vcf")
	require.NoError(t, os.WriteFile(path, []byte("##fileformat=VCFv4.1\n"), 0644))
	fp, err := StatFile(path)
	require.NoError(t, err)

	id := uuid.NewString()
	require.NoError(t, s.StartRun(ctx, id, fp))
	assert.Error(t, s.StartRun(ctx, id, fp), "duplicate run ID")

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, path, run.Input.Path)
	assert.Equal(t, int64(21), run.Input.Size)
	assert.WithinDuration(t, fp.ModTime, run.Input.ModTime, time.Millisecond)
	assert.True(t, run.FinishedAt.IsZero(), "still running")

	require.NoError(t, s.FinishRun(ctx, id, 10, 8, 2))
	run, err = s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.False(t, run.FinishedAt.IsZero())
	assert.Equal(t, int64(10), run.Loci)
	assert.Equal(t, int64(8), run.Written)
	assert.Equal(t, int64(2), run.Skipped)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun(ctx, "missing", 0, 0, 0), ErrRunNotFound)
}

func TestStatFileMissing(t *testing.T) {
	_, err := StatFile(filepath.Join(t.TempDir(), "nope.vcf"))
	assert.Error(t, err)
}

func TestAnnotationWriter(t *testing.T) {
	s := openInMemory(t)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, s.StartRun(ctx, id, FileFingerprint{Path: "in.vcf"}))

	w, err := s.NewAnnotationWriter(ctx, id)
	require.NoError(t, err)

	af := 0.25
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(krasAnnotation(25398284, &af)))
	require.NoError(t, w.Write(krasAnnotation(25398285, nil)))
	intergenic := &annotate.VariantAnnotation{
		Variant: vcf.Variant{Chrom: "1", Pos: 5, Ref: "A", Alt: "<DEL>", AlleleIndex: 1},
		Consequence: annotate.ConsequenceAnnotation{
			Alteration: annotate.AlterationStructural,
			Feature:    annotate.FeatureIntronic,
		},
	}
	require.NoError(t, w.Write(intergenic))
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())

	n, err := s.CountAnnotations(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rows, err := s.SearchByGene(ctx, "KRAS")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(25398284), rows[0].Pos)
	assert.Equal(t, "missense_variant", rows[0].Feature)
	assert.Equal(t, "NM_004985.5:c.35G>T", rows[0].HGVSc)
	assert.Equal(t, "NP_004976.2:p.(Gly12Val)", rows[0].HGVSp)
	require.NotNil(t, rows[0].AlleleFreq)
	assert.InDelta(t, 0.25, *rows[0].AlleleFreq, 1e-9)
	assert.Nil(t, rows[1].AlleleFreq)
	assert.InDelta(t, 0.33, rows[1].AlleleRatio, 1e-9)

	var gene, hgvsG any
	require.NoError(t, s.DB().QueryRow(
		`SELECT gene, hgvs_g FROM locus_annotations WHERE run_id = ? AND row_num = 2`, id).Scan(&gene, &hgvsG))
	assert.Nil(t, gene)
	assert.Nil(t, hgvsG)
}

func TestSearchByGeneEmpty(t *testing.T) {
	s := openInMemory(t)
	rows, err := s.SearchByGene(context.Background(), "NOTEXIST")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.duckdb")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening keeps the schema.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.CountAnnotations(context.Background(), "any")
	assert.NoError(t, err)
}
