package vcf

import "iter"

// Alleles yields one (allele index, Variant) pair per alternate allele of l,
// in ALT order. Indices start at 1; index 0 is the reference allele.
// Each call returns a fresh sequence.
func Alleles(l *Locus) iter.Seq2[int, Variant] {
	return func(yield func(int, Variant) bool) {
		for i, alt := range l.Alts {
			idx := i + 1
			v := Variant{
				Chrom:       l.Chrom,
				Pos:         l.Pos,
				Ref:         l.Ref,
				Alt:         alt,
				AlleleIndex: idx,
			}
			if !yield(idx, v) {
				return
			}
		}
	}
}
