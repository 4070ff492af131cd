// Package hgvs maps flat VCF alleles onto HGVS genomic, coding and protein
// descriptions using a transcript store and a reference genome.
package hgvs

import (
	"fmt"
	"strconv"
)

// EditType names the kind of sequence change an HGVS edit describes.
type EditType string

const (
	EditSub        EditType = "sub"
	EditDel        EditType = "del"
	EditIns        EditType = "ins"
	EditDup        EditType = "dup"
	EditInv        EditType = "inv"
	EditDelIns     EditType = "delins"
	EditIdentity   EditType = "identity"
	EditExt        EditType = "ext"
	EditFrameshift EditType = "fs"
	EditUnknown    EditType = "unknown"
)

// Direction selects which way indels are shuffled through repeats.
type Direction int

const (
	ThreePrime Direction = iota
	FivePrime
)

// Edit is a nucleotide-level change. Ref and Alt are given in the
// orientation of the coordinate system the edit belongs to.
type Edit struct {
	Type EditType
	Ref  string
	Alt  string
}

// LengthChange returns the net number of bases the edit adds (positive) or
// removes (negative).
func (e Edit) LengthChange() int64 {
	switch e.Type {
	case EditDel:
		return -int64(len(e.Ref))
	case EditIns:
		return int64(len(e.Alt))
	case EditDup:
		return int64(len(e.Ref))
	case EditDelIns:
		return int64(len(e.Alt) - len(e.Ref))
	default:
		return 0
	}
}

// String renders the edit part of a description, e.g. "C>G" or "delinsTT".
func (e Edit) String() string {
	switch e.Type {
	case EditSub:
		return e.Ref + ">" + e.Alt
	case EditDel:
		return "del"
	case EditIns:
		return "ins" + e.Alt
	case EditDup:
		return "dup"
	case EditInv:
		return "inv"
	case EditDelIns:
		return "delins" + e.Alt
	case EditIdentity:
		return "="
	default:
		return "?"
	}
}

// GenomicVariant is an edit on a reference contig. Start and End are 1-based
// and inclusive; for insertions they are the two flanking bases.
type GenomicVariant struct {
	Accession string // RefSeq contig accession, e.g. NC_000001.10
	Contig    string // Contig name without "chr"
	Start     int64
	End       int64
	Edit      Edit

	// Anchor is the reference base preceding the event (the base at Start
	// for insertions). Zero when unknown.
	Anchor byte
}

func (g *GenomicVariant) String() string {
	acc := g.Accession
	if acc == "" {
		acc = g.Contig
	}
	return acc + ":g." + formatRange(g.Start, g.End, g.Edit.Type) + g.Edit.String()
}

func formatRange(start, end int64, t EditType) string {
	if start == end && t != EditIns {
		return strconv.FormatInt(start, 10)
	}
	return strconv.FormatInt(start, 10) + "_" + strconv.FormatInt(end, 10)
}

// CodingPos is a position in c. coordinates. Base counts from the A of the
// start codon (c.1); 5' UTR positions are negative. When UTR3 is set, Base
// counts past the stop codon (c.*1). Offset is the distance into an intron
// from the nearest exon boundary.
type CodingPos struct {
	Base   int64
	Offset int64
	UTR3   bool
}

func (p CodingPos) String() string {
	s := strconv.FormatInt(p.Base, 10)
	if p.UTR3 {
		s = "*" + s
	}
	switch {
	case p.Offset > 0:
		s += "+" + strconv.FormatInt(p.Offset, 10)
	case p.Offset < 0:
		s += strconv.FormatInt(p.Offset, 10)
	}
	return s
}

// IsIntronic reports whether the position lies outside the exons.
func (p CodingPos) IsIntronic() bool {
	return p.Offset != 0
}

// InCDS reports whether the position is an exonic base of the coding sequence.
func (p CodingPos) InCDS() bool {
	return p.Offset == 0 && !p.UTR3 && p.Base >= 1
}

// CodingVariant is an edit in transcript c. coordinates.
type CodingVariant struct {
	Transcript string
	Start      CodingPos
	End        CodingPos
	Edit       Edit
}

func (c *CodingVariant) String() string {
	pos := c.Start.String()
	if c.Start != c.End || c.Edit.Type == EditIns {
		pos += "_" + c.End.String()
	}
	return c.Transcript + ":c." + pos + c.Edit.String()
}

// ProteinEdit is a predicted protein change. Text is the HGVS body without
// the surrounding parentheses, e.g. "Gly12Val".
type ProteinEdit struct {
	Type EditType
	Text string
}

// ProteinVariant is a predicted consequence on a protein product.
type ProteinVariant struct {
	Accession string
	Edit      ProteinEdit
}

func (p *ProteinVariant) String() string {
	return fmt.Sprintf("%s:p.(%s)", p.Accession, p.Edit.Text)
}
