package hgvs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/bio/encoding/fasta"
	"github.com/klauspost/compress/gzip"
)

// Genome gives 1-based access to reference sequence by contig name. Lookups
// tolerate a "chr" prefix mismatch between callers and the FASTA.
type Genome struct {
	fa     fasta.Fasta
	names  map[string]string // normalized contig -> FASTA sequence name
	closer io.Closer
}

// NewGenome wraps an already opened FASTA.
func NewGenome(fa fasta.Fasta) *Genome {
	g := &Genome{fa: fa, names: make(map[string]string)}
	for _, name := range fa.SeqNames() {
		g.names[NormalizeContig(name)] = name
	}
	return g
}

// OpenGenome opens a FASTA file. With a samtools-style index next to it
// (path + ".fai") sequence is read on demand; otherwise the whole file is
// loaded into memory, which is only practical for small references.
func OpenGenome(path string) (*Genome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genome: %w", err)
	}

	if idx, err := os.Open(path + ".fai"); err == nil {
		defer idx.Close()
		fa, err := fasta.NewIndexed(f, idx)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read genome index: %w", err)
		}
		g := NewGenome(fa)
		g.closer = f
		return g, nil
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	fa, err := fasta.New(r)
	if err != nil {
		return nil, fmt.Errorf("read genome: %w", err)
	}
	return NewGenome(fa), nil
}

// Close releases the underlying file, if any.
func (g *Genome) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer.Close()
}

// HasContig reports whether the genome holds the named contig.
func (g *Genome) HasContig(contig string) bool {
	_, ok := g.names[NormalizeContig(contig)]
	return ok
}

// Len returns the length of a contig.
func (g *Genome) Len(contig string) (int64, error) {
	name, ok := g.names[NormalizeContig(contig)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownContig, contig)
	}
	n, err := g.fa.Len(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDataProvider, err)
	}
	return int64(n), nil
}

// Sequence returns the uppercase bases in [start, end], 1-based inclusive.
func (g *Genome) Sequence(contig string, start, end int64) (string, error) {
	if end < start {
		return "", nil
	}
	n, err := g.Len(contig)
	if err != nil {
		return "", err
	}
	if start < 1 || end > n {
		return "", fmt.Errorf("%w: %s:%d-%d", ErrOutOfBounds, contig, start, end)
	}
	seq, err := g.fa.Get(g.names[NormalizeContig(contig)], uint64(start-1), uint64(end))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDataProvider, err)
	}
	return strings.ToUpper(seq), nil
}

// Base returns the base at a 1-based position.
func (g *Genome) Base(contig string, pos int64) (byte, error) {
	s, err := g.Sequence(contig, pos, pos)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// window caches a stretch of one contig so that base-by-base walks
// (repeat shuffling) do not go back to the FASTA for every step.
type window struct {
	genome *Genome
	contig string
	start  int64
	seq    string
}

const windowSize = 256

// base returns the base at pos, or 0 when pos is off the contig.
func (w *window) base(pos int64) (byte, error) {
	if pos >= w.start && pos < w.start+int64(len(w.seq)) {
		return w.seq[pos-w.start], nil
	}
	if pos < 1 {
		return 0, nil
	}
	n, err := w.genome.Len(w.contig)
	if err != nil {
		return 0, err
	}
	if pos > n {
		return 0, nil
	}
	start := max(1, pos-windowSize/2)
	end := min(n, start+windowSize-1)
	seq, err := w.genome.Sequence(w.contig, start, end)
	if err != nil {
		return 0, err
	}
	w.start, w.seq = start, seq
	return w.seq[pos-w.start], nil
}

func (w *window) sequence(start, end int64) (string, error) {
	if end < start {
		return "", nil
	}
	if start >= w.start && end < w.start+int64(len(w.seq)) {
		return w.seq[start-w.start : end-w.start+1], nil
	}
	return w.genome.Sequence(w.contig, start, end)
}
