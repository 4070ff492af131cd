package hgvs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vcf-annotate/internal/cache"
)

// loadSequences fills the CDS and 3' UTR sequence of t from the genome, in
// transcript orientation.
func loadSequences(genome *Genome, t *cache.Transcript) error {
	if t.CDSSequence != "" {
		return nil
	}
	var cds, utr3 strings.Builder
	for _, e := range t.TranscriptOrder() {
		if e.IsCoding() {
			seq, err := genome.Sequence(t.Chrom, e.CDSStart, e.CDSEnd)
			if err != nil {
				return fmt.Errorf("CDS of %s: %w", t.ID, err)
			}
			cds.WriteString(orient(t, seq))
		}

		// The part of the exon past the CDS, in transcript direction.
		lo, hi := e.Start, e.End
		if t.IsForwardStrand() {
			lo = max(lo, t.CDSEnd+1)
		} else {
			hi = min(hi, t.CDSStart-1)
		}
		if lo <= hi {
			seq, err := genome.Sequence(t.Chrom, lo, hi)
			if err != nil {
				return fmt.Errorf("3' UTR of %s: %w", t.ID, err)
			}
			utr3.WriteString(orient(t, seq))
		}
	}
	t.CDSSequence = cds.String()
	t.UTR3Sequence = utr3.String()
	return nil
}

func orient(t *cache.Transcript, seq string) string {
	if t.IsForwardStrand() {
		return seq
	}
	return ReverseComplement(seq)
}

// applyEdit returns the CDS with the coding edit applied.
func applyEdit(cds string, c *CodingVariant) (string, error) {
	s, e := c.Start.Base, c.End.Base
	if s < 1 || e < s || e > int64(len(cds)) {
		return "", fmt.Errorf("%w: %s outside CDS of length %d", ErrNotTranslatable, c, len(cds))
	}
	switch c.Edit.Type {
	case EditIdentity:
		return cds, nil
	case EditIns:
		return cds[:s] + c.Edit.Alt + cds[s:], nil
	case EditDup:
		return cds[:e] + cds[s-1:e] + cds[e:], nil
	case EditDel:
		return cds[:s-1] + cds[e:], nil
	case EditInv:
		return cds[:s-1] + ReverseComplement(cds[s-1:e]) + cds[e:], nil
	case EditSub, EditDelIns:
		return cds[:s-1] + c.Edit.Alt + cds[e:], nil
	}
	return "", fmt.Errorf("%w: edit type %s", ErrNotTranslatable, c.Edit.Type)
}

// predictProtein compares the translation of the reference and edited
// coding sequences and describes the first difference.
func predictProtein(t *cache.Transcript, c *CodingVariant) (ProteinEdit, error) {
	if !c.Start.InCDS() || !c.End.InCDS() {
		return ProteinEdit{}, fmt.Errorf("%w: %s is not within the CDS", ErrNotTranslatable, c)
	}
	mut, err := applyEdit(t.CDSSequence, c)
	if err != nil {
		return ProteinEdit{}, err
	}
	ref, _ := translateToStop(t.CDSSequence + t.UTR3Sequence)
	alt, altStop := translateToStop(mut + t.UTR3Sequence)

	i := 0
	for i < len(ref) && i < len(alt) && ref[i] == alt[i] {
		i++
	}

	switch {
	case i == len(ref) && i == len(alt):
		codon := (c.Start.Base-1)/3 + 1
		if codon > int64(len(ref)) {
			return ProteinEdit{Type: EditUnknown, Text: "?"}, nil
		}
		return ProteinEdit{Type: EditIdentity, Text: aaThree(ref[codon-1]) + itoa(codon) + "="}, nil

	case i >= len(ref) || i >= len(alt):
		return ProteinEdit{Type: EditUnknown, Text: "?"}, nil

	case i == 0 && ref[0] == 'M':
		return ProteinEdit{Type: EditUnknown, Text: "Met1?"}, nil

	case ref[i] == '*':
		// The stop codon is lost; the protein runs on into the 3' UTR.
		text := "Ter" + itoa(int64(i+1)) + aaThree(alt[i]) + "extTer"
		if altStop {
			text += itoa(int64(len(alt) - 1 - i))
		} else {
			text += "?"
		}
		return ProteinEdit{Type: EditExt, Text: text}, nil

	case alt[i] == '*':
		return ProteinEdit{Type: EditSub, Text: aaThree(ref[i]) + itoa(int64(i+1)) + "Ter"}, nil

	case c.Edit.LengthChange()%3 != 0:
		text := aaThree(ref[i]) + itoa(int64(i+1)) + aaThree(alt[i]) + "fsTer"
		if altStop {
			text += itoa(int64(len(alt) - i))
		} else {
			text += "?"
		}
		return ProteinEdit{Type: EditFrameshift, Text: text}, nil
	}

	return inFrameEdit(ref, alt, i), nil
}

// inFrameEdit describes an in-frame change between two protein sequences
// sharing a prefix of length p.
func inFrameEdit(ref, alt string, p int) ProteinEdit {
	q := 0
	for q < len(ref)-p && q < len(alt)-p && ref[len(ref)-1-q] == alt[len(alt)-1-q] {
		q++
	}
	refMid := ref[p : len(ref)-q]
	altMid := alt[p : len(alt)-q]

	first := aaThree(ref[p]) + itoa(int64(p+1))
	span := func(from, to int) string {
		if from == to {
			return aaThree(ref[from]) + itoa(int64(from+1))
		}
		return aaThree(ref[from]) + itoa(int64(from+1)) + "_" + aaThree(ref[to]) + itoa(int64(to+1))
	}

	switch {
	case len(refMid) == 1 && len(altMid) == 1:
		return ProteinEdit{Type: EditSub, Text: first + aaThree(altMid[0])}

	case altMid == "":
		return ProteinEdit{Type: EditDel, Text: span(p, p+len(refMid)-1) + "del"}

	case refMid == "":
		n := len(altMid)
		if p >= n && ref[p-n:p] == altMid {
			return ProteinEdit{Type: EditDup, Text: span(p-n, p-1) + "dup"}
		}
		if p == 0 {
			return ProteinEdit{Type: EditUnknown, Text: "?"}
		}
		return ProteinEdit{Type: EditIns, Text: span(p-1, p) + "ins" + aaThreeSeq(altMid)}
	}
	return ProteinEdit{Type: EditDelIns, Text: span(p, p+len(refMid)-1) + "delins" + aaThreeSeq(altMid)}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
