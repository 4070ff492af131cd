package annotate

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/inodb/vcf-annotate/internal/cache"
	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// DefaultCodingPrefixes identify protein-coding RefSeq transcripts.
var DefaultCodingPrefixes = []string{"NM_", "XM_"}

// Classifier derives the consequence of single alleles through an engine.
type Classifier struct {
	codingPrefixes []string
	logger         *zap.Logger
}

// NewClassifier creates a classifier using the default coding prefixes.
func NewClassifier() *Classifier {
	return &Classifier{codingPrefixes: DefaultCodingPrefixes, logger: zap.NewNop()}
}

// SetCodingPrefixes sets the accession prefixes of transcripts that are
// mapped to coding and protein coordinates.
func (c *Classifier) SetCodingPrefixes(prefixes []string) {
	c.codingPrefixes = prefixes
}

// SetLogger sets the logger for ambiguity warnings and per-call failures.
func (c *Classifier) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Classify returns the most severe transcript consequence of v. Mapping
// failures for a single transcript only degrade that transcript; the
// returned error is non-nil only when the data provider itself failed or
// the context expired.
func (c *Classifier) Classify(ctx context.Context, engine Engine, v vcf.Variant) (ConsequenceAnnotation, error) {
	g, err := engine.GenomicVariant(v)
	if err == nil {
		g, err = engine.Normalize(g, hgvs.ThreePrime)
	}
	if err != nil {
		if fatal(ctx, err) {
			return ConsequenceAnnotation{}, err
		}
		c.logger.Debug("cannot describe allele",
			zap.String("variant", v.Key()), zap.Error(err))
		return ConsequenceAnnotation{Alteration: AlterationStructural, Feature: FeatureIntronic}, nil
	}

	ann := ConsequenceAnnotation{Genomic: g, Alteration: AlterationFor(g.Edit.Type)}

	txs, err := engine.RelevantTranscripts(ctx, g)
	if err != nil {
		if fatal(ctx, err) {
			return ConsequenceAnnotation{}, err
		}
		c.logger.Debug("transcript lookup failed", zap.String("variant", g.String()), zap.Error(err))
	}

	if ann.Gene, err = c.gene(ctx, engine, g, txs); err != nil {
		return ConsequenceAnnotation{}, err
	}

	var best TranscriptAnnotation
	for _, tx := range txs {
		if !cache.HasCodingPrefix(tx, c.codingPrefixes) {
			continue
		}
		ta, err := c.classifyTranscript(ctx, engine, g, tx)
		if err != nil {
			return ConsequenceAnnotation{}, err
		}
		if rank(ta.Feature) > rank(best.Feature) {
			best = ta
		}
	}

	if best.Feature == nil {
		ann.Feature = FeatureIntronic
		if ann.Gene != "" {
			ann.Feature = FeatureIntergenic
		}
		return ann, nil
	}
	ann.Feature, ann.Coding, ann.Protein = best.Feature, best.Coding, best.Protein
	return ann, nil
}

// gene picks one symbol for the transcripts. When they disagree the
// lexicographically smallest symbol is used and the ambiguity is logged.
func (c *Classifier) gene(ctx context.Context, engine Engine, g *hgvs.GenomicVariant, txs []string) (string, error) {
	var symbols []string
	for _, tx := range txs {
		sym, err := engine.GeneSymbol(ctx, tx)
		if err != nil {
			if fatal(ctx, err) {
				return "", err
			}
			continue
		}
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)
	if len(symbols) == 0 {
		return "", nil
	}
	if len(symbols) > 1 {
		c.logger.Warn("picking gene from many candidates",
			zap.String("variant", g.String()),
			zap.String("gene", symbols[0]),
			zap.Strings("candidates", symbols))
	}
	return symbols[0], nil
}

// classifyTranscript maps g onto one transcript. Only fatal errors are
// returned; anything else leaves the later levels unset.
func (c *Classifier) classifyTranscript(ctx context.Context, engine Engine, g *hgvs.GenomicVariant, tx string) (TranscriptAnnotation, error) {
	ta := TranscriptAnnotation{Transcript: tx}

	coding, err := engine.GenomicToCoding(ctx, g, tx)
	if err != nil {
		if fatal(ctx, err) {
			return ta, err
		}
		c.logger.Debug("g. to c. mapping failed", zap.String("transcript", tx), zap.Error(err))
		return ta, nil
	}
	ta.Coding = coding
	ta.Feature = FeatureExonic
	if coding.Start.IsIntronic() && coding.End.IsIntronic() {
		ta.Feature = FeatureIntronic
	}

	protein, err := engine.CodingToProtein(ctx, coding)
	if err != nil {
		if fatal(ctx, err) {
			return ta, err
		}
		c.logger.Debug("c. to p. mapping failed", zap.String("coding", coding.String()), zap.Error(err))
		return ta, nil
	}
	ta.Protein = protein
	ta.Feature = proteinFeature(protein, coding)
	return ta, nil
}

func proteinFeature(p *hgvs.ProteinVariant, c *hgvs.CodingVariant) *FeatureKind {
	switch p.Edit.Type {
	case hgvs.EditIdentity:
		return FeatureSynonymous
	case hgvs.EditExt:
		return FeatureTerminator
	}
	if c.Edit.LengthChange()%3 == 0 {
		return FeatureMissense
	}
	return FeatureFrameshift
}

// fatal reports whether err must stop classification: a provider failure
// or an expired context (which the orchestrator retries).
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, hgvs.ErrDataProvider) || ctx.Err() != nil ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// ClassificationError wraps a classification failure with the allele.
type ClassificationError struct {
	Variant vcf.Variant
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Variant.Key(), e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
