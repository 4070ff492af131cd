package hgvs

import (
	"fmt"

	"github.com/inodb/vcf-annotate/internal/cache"
)

// txMapper converts genomic positions to c. positions for one transcript.
type txMapper struct {
	t     *cache.Transcript
	exons []cache.Exon // transcript order, 5' to 3'

	cdsStart int64 // cDNA coordinate of c.1
	cdsEnd   int64 // cDNA coordinate of the last CDS base
}

func newTxMapper(t *cache.Transcript) (*txMapper, error) {
	if !t.IsProteinCoding() {
		return nil, fmt.Errorf("%w: %s", ErrNotCoding, t.ID)
	}
	m := &txMapper{t: t, exons: t.TranscriptOrder()}

	first, last := t.CDSStart, t.CDSEnd
	if !t.IsForwardStrand() {
		first, last = last, first
	}
	var ok bool
	if m.cdsStart, ok = m.cdna(first); !ok {
		return nil, fmt.Errorf("%w: CDS start of %s is not exonic", ErrNotCoding, t.ID)
	}
	if m.cdsEnd, ok = m.cdna(last); !ok {
		return nil, fmt.Errorf("%w: CDS end of %s is not exonic", ErrNotCoding, t.ID)
	}
	return m, nil
}

// cdna returns the 1-based transcript coordinate of an exonic position.
func (m *txMapper) cdna(pos int64) (int64, bool) {
	var offset int64
	for _, e := range m.exons {
		if pos >= e.Start && pos <= e.End {
			if m.t.IsForwardStrand() {
				return offset + pos - e.Start + 1, true
			}
			return offset + e.End - pos + 1, true
		}
		offset += e.End - e.Start + 1
	}
	return 0, false
}

// position maps a genomic position to c. coordinates. Intronic positions
// are expressed relative to the nearest exon boundary; a position exactly
// midway is counted from the upstream exon.
func (m *txMapper) position(pos int64) (CodingPos, error) {
	t := m.t
	if pos < t.Start || pos > t.End {
		return CodingPos{}, fmt.Errorf("%w: %d not in %s:%d-%d", ErrOutOfBounds, pos, t.ID, t.Start, t.End)
	}
	if c, ok := m.cdna(pos); ok {
		return m.coding(c, 0), nil
	}

	// Exons are in genomic order on t; find the intron holding pos.
	for i := 0; i+1 < len(t.Exons); i++ {
		left, right := t.Exons[i], t.Exons[i+1]
		if pos <= left.End || pos >= right.Start {
			continue
		}
		dLeft, dRight := pos-left.End, right.Start-pos
		if t.IsForwardStrand() {
			if dLeft <= dRight {
				c, _ := m.cdna(left.End)
				return m.coding(c, dLeft), nil
			}
			c, _ := m.cdna(right.Start)
			return m.coding(c, -dRight), nil
		}
		if dRight <= dLeft {
			c, _ := m.cdna(right.Start)
			return m.coding(c, dRight), nil
		}
		c, _ := m.cdna(left.End)
		return m.coding(c, -dLeft), nil
	}
	return CodingPos{}, fmt.Errorf("%w: %d not in an exon or intron of %s", ErrOutOfBounds, pos, t.ID)
}

func (m *txMapper) coding(cdna, offset int64) CodingPos {
	switch {
	case cdna < m.cdsStart:
		return CodingPos{Base: cdna - m.cdsStart, Offset: offset}
	case cdna > m.cdsEnd:
		return CodingPos{Base: cdna - m.cdsEnd, Offset: offset, UTR3: true}
	default:
		return CodingPos{Base: cdna - m.cdsStart + 1, Offset: offset}
	}
}

// toCoding maps a genomic variant onto the transcript. On the reverse
// strand the ends swap and the edit sequences are reverse complemented.
func (m *txMapper) toCoding(g *GenomicVariant) (*CodingVariant, error) {
	if NormalizeContig(m.t.Chrom) != g.Contig {
		return nil, fmt.Errorf("%w: %s is on %s, variant on %s", ErrOutOfBounds, m.t.ID, m.t.Chrom, g.Contig)
	}
	start, err := m.position(g.Start)
	if err != nil {
		return nil, err
	}
	end, err := m.position(g.End)
	if err != nil {
		return nil, err
	}

	edit := g.Edit
	if !m.t.IsForwardStrand() {
		start, end = end, start
		edit.Ref = ReverseComplement(edit.Ref)
		edit.Alt = ReverseComplement(edit.Alt)
	}
	return &CodingVariant{Transcript: m.t.ID, Start: start, End: end, Edit: edit}, nil
}
