package vcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlleles(t *testing.T) {
	l := &Locus{Chrom: "1", Pos: 200000, Ref: "G", Alts: []string{"A", "GA"}}

	var idx []int
	var got []Variant
	for i, v := range Alleles(l) {
		idx = append(idx, i)
		got = append(got, v)
	}

	assert.Equal(t, []int{1, 2}, idx)
	assert.Equal(t, []Variant{
		{Chrom: "1", Pos: 200000, Ref: "G", Alt: "A", AlleleIndex: 1},
		{Chrom: "1", Pos: 200000, Ref: "G", Alt: "GA", AlleleIndex: 2},
	}, got)

	// Restartable: a second pass yields the same sequence.
	var again []Variant
	for _, v := range Alleles(l) {
		again = append(again, v)
	}
	assert.Equal(t, got, again)
}

func TestAlleles_EarlyStop(t *testing.T) {
	l := &Locus{Chrom: "1", Pos: 1, Ref: "A", Alts: []string{"C", "G", "T"}}
	n := 0
	for range Alleles(l) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestAlleles_NoAlternates(t *testing.T) {
	l := &Locus{Chrom: "1", Pos: 1, Ref: "A"}
	for range Alleles(l) {
		t.Fatal("expected no alleles")
	}
}
