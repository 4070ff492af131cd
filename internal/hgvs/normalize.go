package hgvs

import (
	"fmt"
	"strings"
)

// NewGenomicVariant builds a genomic variant from VCF-style coordinates.
// Bases shared by ref and alt are trimmed (suffix first, then prefix) and
// the remaining change is typed. Symbolic alleles are rejected.
func NewGenomicVariant(assembly Assembly, chrom string, pos int64, ref, alt string) (*GenomicVariant, error) {
	ref, alt = strings.ToUpper(ref), strings.ToUpper(alt)
	if !isBases(ref) || !isBases(alt) || alt == "" {
		return nil, fmt.Errorf("%w: %s>%s", ErrUnsupportedAllele, ref, alt)
	}
	acc, ok := assembly.Accession(chrom)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrUnknownContig, chrom, assembly)
	}
	g := &GenomicVariant{Accession: acc, Contig: NormalizeContig(chrom)}

	if ref == alt {
		g.Start, g.End = pos, pos+int64(len(ref))-1
		g.Edit = Edit{Type: EditIdentity, Ref: ref, Alt: alt}
		return g, nil
	}

	for len(ref) > 0 && len(alt) > 0 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref, alt = ref[:len(ref)-1], alt[:len(alt)-1]
	}
	prefix := 0
	for prefix < len(ref) && prefix < len(alt) && ref[prefix] == alt[prefix] {
		prefix++
	}
	if prefix > 0 {
		g.Anchor = ref[prefix-1]
	}
	ref, alt = ref[prefix:], alt[prefix:]
	pos += int64(prefix)

	switch {
	case ref == "":
		g.Start, g.End = pos-1, pos
		g.Edit = Edit{Type: EditIns, Alt: alt}
	case alt == "":
		g.Start, g.End = pos, pos+int64(len(ref))-1
		g.Edit = Edit{Type: EditDel, Ref: ref}
	default:
		g.Start, g.End = pos, pos+int64(len(ref))-1
		switch {
		case len(ref) == 1 && len(alt) == 1:
			g.Edit = Edit{Type: EditSub, Ref: ref, Alt: alt}
		case len(ref) > 1 && alt == ReverseComplement(ref):
			g.Edit = Edit{Type: EditInv, Ref: ref, Alt: alt}
		default:
			g.Edit = Edit{Type: EditDelIns, Ref: ref, Alt: alt}
		}
	}
	return g, nil
}

func isBases(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return false
		}
	}
	return true
}

// normalize shuffles insertions, deletions and duplications to their
// 3'-most or 5'-most equivalent position, turns insertions of a copy of the
// adjacent sequence into duplications, and records the anchor base.
func normalize(genome *Genome, g *GenomicVariant, dir Direction) (*GenomicVariant, error) {
	out := *g
	w := &window{genome: genome, contig: g.Contig}

	var err error
	switch g.Edit.Type {
	case EditIns:
		err = shuffleInsertion(w, &out, g.Start, g.Edit.Alt, dir)
	case EditDup:
		// A duplication is an insertion of its own sequence after End.
		err = shuffleInsertion(w, &out, g.End, g.Edit.Ref, dir)
	case EditDel:
		err = shuffleDeletion(w, &out, dir)
	}
	if err != nil {
		return nil, err
	}

	anchorPos := out.Start - 1
	if out.Edit.Type == EditIns {
		anchorPos = out.Start
	}
	anchor, err := w.base(anchorPos)
	if err != nil {
		return nil, err
	}
	out.Anchor = anchor
	return &out, nil
}

// shuffleInsertion moves the insertion of seq after position left.
func shuffleInsertion(w *window, g *GenomicVariant, left int64, seq string, dir Direction) error {
	n := int64(len(seq))
	if dir == ThreePrime {
		for {
			b, err := w.base(left + 1)
			if err != nil {
				return err
			}
			if b == 0 || b != seq[0] {
				break
			}
			seq = seq[1:] + seq[:1]
			left++
		}
		prev, err := w.sequence(left-n+1, left)
		if err == nil && prev == seq {
			g.Start, g.End = left-n+1, left
			g.Edit = Edit{Type: EditDup, Ref: seq}
			return nil
		}
	} else {
		for {
			b, err := w.base(left)
			if err != nil {
				return err
			}
			if b == 0 || b != seq[n-1] {
				break
			}
			seq = seq[n-1:] + seq[:n-1]
			left--
		}
		next, err := w.sequence(left+1, left+n)
		if err == nil && next == seq {
			g.Start, g.End = left+1, left+n
			g.Edit = Edit{Type: EditDup, Ref: seq}
			return nil
		}
	}
	g.Start, g.End = left, left+1
	g.Edit = Edit{Type: EditIns, Alt: seq}
	return nil
}

func shuffleDeletion(w *window, g *GenomicVariant, dir Direction) error {
	start, end := g.Start, g.End
	for {
		var next, first byte
		var err error
		if dir == ThreePrime {
			if next, err = w.base(end + 1); err == nil {
				first, err = w.base(start)
			}
		} else {
			if next, err = w.base(start - 1); err == nil {
				first, err = w.base(end)
			}
		}
		if err != nil {
			return err
		}
		if next == 0 || next != first {
			break
		}
		if dir == ThreePrime {
			start, end = start+1, end+1
		} else {
			start, end = start-1, end-1
		}
	}
	ref, err := w.sequence(start, end)
	if err != nil {
		return err
	}
	g.Start, g.End = start, end
	g.Edit = Edit{Type: EditDel, Ref: ref}
	return nil
}
