// Package cache provides transcript models and the stores the mapping engine
// reads them from.
package cache

import "strings"

// Transcript represents a specific gene isoform.
type Transcript struct {
	ID        string // Transcript accession (e.g., NM_004985.5)
	GeneID    string // Parent gene ID
	GeneName  string // Parent gene symbol
	ProteinID string // Protein accession from the CDS features, if any
	Chrom     string // Chromosome, without "chr"
	Start     int64  // Transcript start (1-based)
	End       int64  // Transcript end (1-based, inclusive)
	Strand    int8   // +1 or -1
	Biotype   string // Transcript biotype
	Exons     []Exon // Exons sorted by genomic start
	CDSStart  int64  // CDS start (genomic, 1-based), 0 if non-coding
	CDSEnd    int64  // CDS end (genomic, 1-based), 0 if non-coding

	// Filled lazily from the reference genome by the mapping engine.
	CDSSequence  string
	UTR3Sequence string
}

// Exon represents a single exon within a transcript.
type Exon struct {
	Number   int   // Exon number (1-based)
	Start    int64 // Genomic start (1-based)
	End      int64 // Genomic end (1-based, inclusive)
	CDSStart int64 // CDS portion start, 0 if entirely non-coding
	CDSEnd   int64 // CDS portion end, 0 if entirely non-coding
	Frame    int   // Reading frame (0, 1, or 2), -1 if non-coding
}

// IsProteinCoding returns true if the transcript has a coding sequence.
func (t *Transcript) IsProteinCoding() bool {
	return t.CDSStart > 0 && t.CDSEnd > 0
}

// IsForwardStrand returns true if the transcript is on the forward strand.
func (t *Transcript) IsForwardStrand() bool {
	return t.Strand == 1
}

// Contains returns true if the given position is within the transcript boundaries.
func (t *Transcript) Contains(pos int64) bool {
	return pos >= t.Start && pos <= t.End
}

// Overlaps returns true if [start, end] intersects the transcript span.
func (t *Transcript) Overlaps(start, end int64) bool {
	return start <= t.End && end >= t.Start
}

// ContainsCDS returns true if the given position is within the CDS boundaries.
func (t *Transcript) ContainsCDS(pos int64) bool {
	if !t.IsProteinCoding() {
		return false
	}
	return pos >= t.CDSStart && pos <= t.CDSEnd
}

// FindExon returns the exon containing the given genomic position, or nil if
// not in an exon. Exons must be sorted by ascending start.
func (t *Transcript) FindExon(pos int64) *Exon {
	lo, hi := 0, len(t.Exons)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		e := &t.Exons[mid]
		switch {
		case pos < e.Start:
			hi = mid - 1
		case pos > e.End:
			lo = mid + 1
		default:
			return e
		}
	}
	return nil
}

// TranscriptOrder returns the exons ordered 5' to 3' along the transcript.
func (t *Transcript) TranscriptOrder() []Exon {
	out := make([]Exon, len(t.Exons))
	copy(out, t.Exons)
	if !t.IsForwardStrand() {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// IsCoding returns true if the exon contains coding sequence.
func (e *Exon) IsCoding() bool {
	return e.CDSStart > 0 && e.CDSEnd > 0
}

// HasCodingPrefix reports whether an accession starts with one of the given
// prefixes (e.g. "NM_", "XM_"). It is the accession-based protein-coding check.
func HasCodingPrefix(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}
