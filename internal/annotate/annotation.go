// Package annotate selects the most deleterious allele at each VCF locus
// and annotates it with read support, HGVS consequence and population
// frequency.
package annotate

import (
	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// VariantAnnotation is the per-locus result written as one output row.
type VariantAnnotation struct {
	Variant     vcf.Variant
	Support     DepthAnnotation
	Consequence ConsequenceAnnotation
	Frequency   FrequencyAnnotation
}

// DepthAnnotation holds read support for the selected allele.
type DepthAnnotation struct {
	// SiteDepth is INFO DP. A missing or non-integer DP reads as 0, the
	// same as a reported depth of zero.
	SiteDepth      int
	AlleleDepth    int
	AlleleFraction float64
	Samples        []string // samples whose genotype carries the allele
}

// ConsequenceAnnotation is the most severe transcript-level effect of an
// allele, along with its genomic description.
type ConsequenceAnnotation struct {
	Genomic    *hgvs.GenomicVariant
	Alteration SequenceAlteration
	Feature    *FeatureKind
	Coding     *hgvs.CodingVariant
	Protein    *hgvs.ProteinVariant
	Gene       string
}

// FrequencyAnnotation is what a population database knows about an allele.
// A nil AlleleFrequency means the allele was not observed.
type FrequencyAnnotation struct {
	AlleleFrequency *float64
	Consequences    []string
}

// TranscriptAnnotation is the effect of an allele on one transcript. Later
// levels are only set when the earlier ones are.
type TranscriptAnnotation struct {
	Transcript string
	Coding     *hgvs.CodingVariant
	Protein    *hgvs.ProteinVariant
	Feature    *FeatureKind
}

// Candidate pairs an alternate allele with its consequence for selection.
type Candidate struct {
	Index       int
	Variant     vcf.Variant
	Consequence ConsequenceAnnotation
}
