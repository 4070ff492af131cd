package annotate

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/inodb/vcf-annotate/internal/vcf"
)

// ErrNoAlternates is returned for a locus without alternate alleles.
var ErrNoAlternates = errors.New("locus has no alternate alleles")

// Annotator turns a locus into the annotation of its most severe allele.
type Annotator struct {
	classifier *Classifier
	frequency  FrequencySource
	logger     *zap.Logger
}

// NewAnnotator creates an annotator that looks up population frequencies in
// freq. A nil freq disables frequency annotation.
func NewAnnotator(freq FrequencySource) *Annotator {
	if freq == nil {
		freq = NoFrequency{}
	}
	return &Annotator{
		classifier: NewClassifier(),
		frequency:  freq,
		logger:     zap.NewNop(),
	}
}

// SetCodingPrefixes configures which transcript accessions are mapped to
// coding and protein coordinates.
func (a *Annotator) SetCodingPrefixes(prefixes []string) {
	a.classifier.SetCodingPrefixes(prefixes)
}

// SetLogger sets the logger for warning and debug messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
	a.classifier.SetLogger(l)
}

// Classifier returns the classifier used for each allele.
func (a *Annotator) Classifier() *Classifier {
	return a.classifier
}

// AnnotateLocus classifies every alternate allele of l, selects the most
// severe one and annotates it with read support and population frequency.
func (a *Annotator) AnnotateLocus(ctx context.Context, engine Engine, l *vcf.Locus) (*VariantAnnotation, error) {
	var classifyErr error
	best, ok := SelectAllele(a.candidates(ctx, engine, l, &classifyErr))
	if classifyErr != nil {
		return nil, classifyErr
	}
	if !ok {
		return nil, fmt.Errorf("%w at %s:%d", ErrNoAlternates, l.Chrom, l.Pos)
	}

	support, err := ExtractDepth(l, best.Index)
	if err != nil {
		return nil, err
	}
	if _, ok := l.Depth(); !ok {
		a.logger.Debug("no usable INFO DP, site depth reported as 0",
			zap.String("chrom", l.Chrom),
			zap.Int64("pos", l.Pos),
			zap.String("dp", l.Info["DP"]))
	}

	key := NormalizeForLookup(engine, best.Variant)
	freq, err := a.frequency.Lookup(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("frequency lookup %s: %w", key.Key(), err)
	}

	return &VariantAnnotation{
		Variant:     best.Variant,
		Support:     support,
		Consequence: best.Consequence,
		Frequency:   freq,
	}, nil
}

// candidates classifies the alternate alleles of l as they are pulled. The
// sequence ends at the first classification failure, which is stored in
// *errp.
func (a *Annotator) candidates(ctx context.Context, engine Engine, l *vcf.Locus, errp *error) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for idx, v := range vcf.Alleles(l) {
			cons, err := a.classifier.Classify(ctx, engine, v)
			if err != nil {
				*errp = &ClassificationError{Variant: v, Err: err}
				return
			}
			if !yield(Candidate{Index: idx, Variant: v, Consequence: cons}) {
				return
			}
		}
	}
}

// RecordWriter receives annotations in input order.
type RecordWriter interface {
	WriteHeader() error
	Write(a *VariantAnnotation) error
	Flush() error
}
