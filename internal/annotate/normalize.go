package annotate

import (
	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// NormalizeForLookup rewrites the selected allele into the left-shifted,
// VCF-style form used as the key of population frequency databases. When
// the allele cannot be described or shifted, v itself is the key.
func NormalizeForLookup(engine Engine, v vcf.Variant) vcf.Variant {
	g, err := engine.GenomicVariant(v)
	if err == nil {
		g, err = engine.Normalize(g, hgvs.FivePrime)
	}
	if err != nil {
		return v
	}
	key, ok := lookupVariant(g)
	if !ok {
		return v
	}
	key.Chrom = v.Chrom
	key.AlleleIndex = v.AlleleIndex
	return key
}

func lookupVariant(g *hgvs.GenomicVariant) (vcf.Variant, bool) {
	e := g.Edit
	anchor := string(g.Anchor)
	switch e.Type {
	case hgvs.EditDup:
		return vcf.Variant{Pos: g.Start, Ref: e.Ref, Alt: e.Ref + e.Ref}, true
	case hgvs.EditInv:
		return vcf.Variant{Pos: g.Start, Ref: e.Ref, Alt: hgvs.ReverseComplement(e.Ref)}, true
	case hgvs.EditIns:
		if g.Anchor == 0 {
			return vcf.Variant{}, false
		}
		return vcf.Variant{Pos: g.Start, Ref: anchor, Alt: anchor + e.Alt}, true
	case hgvs.EditDel:
		if g.Anchor == 0 {
			return vcf.Variant{}, false
		}
		return vcf.Variant{Pos: g.Start - 1, Ref: anchor + e.Ref, Alt: anchor}, true
	}
	return vcf.Variant{Pos: g.Start, Ref: e.Ref, Alt: e.Alt}, true
}
