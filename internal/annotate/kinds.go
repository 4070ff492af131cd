package annotate

import "github.com/inodb/vcf-annotate/internal/hgvs"

// Severity ranks how disruptive a feature-level effect is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityModerate
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityModerate:
		return "MODERATE"
	case SeverityHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// SequenceAlteration is the Sequence Ontology term for the shape of a change.
type SequenceAlteration struct {
	SO   string
	Slug string
}

var (
	AlterationDeletion     = SequenceAlteration{"SO:0000159", "deletion"}
	AlterationDelins       = SequenceAlteration{"SO:1000032", "delins"}
	AlterationDuplication  = SequenceAlteration{"SO:1000035", "duplication"}
	AlterationInsertion    = SequenceAlteration{"SO:0000667", "insertion"}
	AlterationInversion    = SequenceAlteration{"SO:1000036", "inversion"}
	AlterationStructural   = SequenceAlteration{"SO:0001785", "structural_alteration"}
	AlterationSubstitution = SequenceAlteration{"SO:1000002", "substitution"}
)

// AlterationFor maps a genomic edit type to its sequence alteration.
func AlterationFor(t hgvs.EditType) SequenceAlteration {
	switch t {
	case hgvs.EditDel:
		return AlterationDeletion
	case hgvs.EditDelIns:
		return AlterationDelins
	case hgvs.EditDup:
		return AlterationDuplication
	case hgvs.EditIns:
		return AlterationInsertion
	case hgvs.EditInv:
		return AlterationInversion
	case hgvs.EditSub:
		return AlterationSubstitution
	}
	return AlterationStructural
}

// FeatureKind is the Sequence Ontology term for the effect of a change on a
// transcript feature. Each kind has exactly one severity.
type FeatureKind struct {
	SO       string
	Slug     string
	Severity Severity
}

var (
	FeatureFrameshift = &FeatureKind{"SO:0001589", "frameshift_variant", SeverityHigh}
	FeatureTerminator = &FeatureKind{"SO:0001590", "terminator_codon_variant", SeverityHigh}
	FeatureSynonymous = &FeatureKind{"SO:0001819", "synonymous_variant", SeverityLow}
	FeatureMissense   = &FeatureKind{"SO:0001583", "missense_variant", SeverityModerate}
	FeatureIntronic   = &FeatureKind{"SO:0001627", "intron_variant", SeverityModerate}
	FeatureExonic     = &FeatureKind{"SO:0001791", "exon_variant", SeverityModerate}
	FeatureIntergenic = &FeatureKind{"SO:0001628", "intergenic_variant", SeverityModerate}
)

// rank orders feature kinds by severity, with a missing kind below LOW.
func rank(k *FeatureKind) int {
	if k == nil {
		return -1
	}
	return int(k.Severity)
}
