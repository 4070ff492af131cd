package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := strings.TrimSuffix(buf.String(), "\n")
	assert.True(t, strings.HasPrefix(header, "#var_contig\t"))
	assert.Len(t, strings.Split(header, "\t"), len(Columns))
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.Write(fullAnnotation()))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, len(Columns))
	assert.Equal(t, "NM_000001.1:c.35G>T", fields[12])
	assert.Equal(t, "GENE1", fields[14])
}

func TestTabWriter_EmptyFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	a := &annotate.VariantAnnotation{
		Variant:     vcf.Variant{Chrom: "1", Pos: 1, Ref: "A", Alt: "T", AlleleIndex: 1},
		Consequence: annotate.ConsequenceAnnotation{Alteration: annotate.AlterationSubstitution},
	}
	require.NoError(t, w.Write(a))
	require.NoError(t, w.Flush())

	fields := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\t")
	require.Len(t, fields, len(Columns))
	assert.Empty(t, fields[10], "feature")
	assert.Empty(t, fields[15], "allele frequency")
	assert.Equal(t, "substitution", fields[9])
}
