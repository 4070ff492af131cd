// Package vcf provides VCF file parsing functionality.
package vcf

import "fmt"

// Variant is a single allele at a single locus in flat, assembly-relative
// coordinates. It is a value type; two variants are equal when all fields are.
type Variant struct {
	Chrom       string // Chromosome name (e.g., "12", "chr12")
	Pos         int64  // 1-based genomic position
	Ref         string // Reference allele
	Alt         string // Alternate allele
	AlleleIndex int    // 1-based index into the locus ALT list, 0 if unset
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant is a deletion.
func (v Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v Variant) NormalizeChrom() string {
	return NormalizeChrom(v.Chrom)
}

// Key returns the chrom-pos-ref-alt form used by population frequency services.
func (v Variant) Key() string {
	return fmt.Sprintf("%s-%d-%s-%s", v.Chrom, v.Pos, v.Ref, v.Alt)
}

// NormalizeChrom strips a leading "chr" from a chromosome name.
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}
