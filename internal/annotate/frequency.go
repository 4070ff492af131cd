package annotate

import (
	"context"

	"github.com/inodb/vcf-annotate/internal/vcf"
)

// FrequencySource looks up population frequency data for an allele given
// in left-shifted VCF form. An allele the source has never observed is not
// an error: it yields a FrequencyAnnotation with a nil AlleleFrequency.
type FrequencySource interface {
	Lookup(ctx context.Context, v vcf.Variant) (FrequencyAnnotation, error)
}

// NoFrequency is a FrequencySource that knows no alleles.
type NoFrequency struct{}

func (NoFrequency) Lookup(context.Context, vcf.Variant) (FrequencyAnnotation, error) {
	return FrequencyAnnotation{}, nil
}
