package annotate

import (
	"errors"
	"fmt"

	"github.com/inodb/vcf-annotate/internal/vcf"
)

// ErrZeroReferenceDepth is returned when no sample has reads supporting the
// reference allele, so the allele fraction is undefined.
var ErrZeroReferenceDepth = errors.New("zero reference read depth")

// Per-allele read depth FORMAT keys, in order of preference.
var alleleDepthKeys = []string{"DPR", "AD"}

// ExtractDepth summarizes read support for allele (1-based ALT index) across
// all samples of the locus.
func ExtractDepth(l *vcf.Locus, allele int) (DepthAnnotation, error) {
	var d DepthAnnotation
	d.SiteDepth, _ = l.Depth()

	refDepth := 0
	for _, s := range l.Samples {
		depths := sampleDepths(s)
		if len(depths) > 0 {
			refDepth += depths[0]
		}
		if allele < len(depths) {
			d.AlleleDepth += depths[allele]
		}
		if s.HasAllele(allele) {
			d.Samples = append(d.Samples, s.Name)
		}
	}

	if refDepth == 0 {
		return d, fmt.Errorf("%w at %s:%d allele %d", ErrZeroReferenceDepth, l.Chrom, l.Pos, allele)
	}
	d.AlleleFraction = float64(d.AlleleDepth) / float64(refDepth)
	return d, nil
}

func sampleDepths(s vcf.Sample) []int {
	for _, key := range alleleDepthKeys {
		if depths, ok := s.AlleleDepths(key); ok {
			return depths
		}
	}
	return nil
}
