package hgvs

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/inodb/vcf-annotate/internal/cache"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// TranscriptStore is the source of transcript models.
type TranscriptStore interface {
	FindTranscripts(ctx context.Context, chrom string, start, end int64) ([]*cache.Transcript, error)
	GetTranscript(ctx context.Context, id string) (*cache.Transcript, error)
}

// maxCachedTranscripts bounds the per-engine transcript copies, which carry
// their CDS sequence once a protein has been predicted.
const maxCachedTranscripts = 4096

// Engine maps variants between genomic, coding and protein coordinates.
// An Engine is not safe for concurrent use; each worker owns one.
type Engine struct {
	assembly    Assembly
	store       TranscriptStore
	genome      *Genome
	transcripts map[string]*cache.Transcript
	closers     []func() error
	logger      *zap.Logger
}

// New creates an engine over an existing store and genome.
func New(assembly Assembly, store TranscriptStore, genome *Genome) *Engine {
	return &Engine{
		assembly:    assembly,
		store:       store,
		genome:      genome,
		transcripts: make(map[string]*cache.Transcript),
		logger:      zap.NewNop(),
	}
}

// Options locate the data an engine opened with Open reads from.
type Options struct {
	Assembly     Assembly
	TranscriptDB string // DuckDB file written by the index command
	GenomePath   string // FASTA, ideally with a .fai index
}

// Open opens the transcript database read-only and the reference genome.
// The returned engine owns both and releases them on Close.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	store, err := cache.OpenTranscriptStore(ctx, opts.TranscriptDB)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataProvider, err)
	}
	genome, err := OpenGenome(opts.GenomePath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: %v", ErrDataProvider, err)
	}
	e := New(opts.Assembly, store, genome)
	e.closers = append(e.closers, store.Close, genome.Close)
	return e, nil
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger *zap.Logger) {
	e.logger = logger
}

// Assembly returns the build the engine maps against.
func (e *Engine) Assembly() Assembly {
	return e.assembly
}

// Close releases resources opened by Open.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// GenomicVariant builds the genomic description of a VCF allele and checks
// its reference bases against the genome.
func (e *Engine) GenomicVariant(v vcf.Variant) (*GenomicVariant, error) {
	g, err := NewGenomicVariant(e.assembly, v.Chrom, v.Pos, v.Ref, v.Alt)
	if err != nil {
		return nil, err
	}
	if e.genome != nil && g.Edit.Ref != "" {
		ref, err := e.genome.Sequence(g.Contig, g.Start, g.End)
		if err != nil {
			return nil, err
		}
		if ref != g.Edit.Ref {
			return nil, fmt.Errorf("%w: %s has %s, genome has %s", ErrReferenceMismatch, g, g.Edit.Ref, ref)
		}
	}
	return g, nil
}

// Normalize shuffles g to its 3'-most or 5'-most equivalent description.
func (e *Engine) Normalize(g *GenomicVariant, dir Direction) (*GenomicVariant, error) {
	if e.genome == nil {
		return nil, fmt.Errorf("%w: no reference genome", ErrDataProvider)
	}
	return normalize(e.genome, g, dir)
}

// RelevantTranscripts returns the accessions of transcripts overlapping g,
// sorted.
func (e *Engine) RelevantTranscripts(ctx context.Context, g *GenomicVariant) ([]string, error) {
	found, err := e.store.FindTranscripts(ctx, g.Contig, g.Start, g.End)
	if err != nil {
		return nil, providerError(ctx, "find transcripts", err)
	}
	ids := make([]string, 0, len(found))
	for _, t := range found {
		ids = append(ids, t.ID)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

// GeneSymbol returns the gene symbol of a transcript, or "" if it has none.
func (e *Engine) GeneSymbol(ctx context.Context, tx string) (string, error) {
	t, err := e.transcript(ctx, tx)
	if err != nil {
		return "", err
	}
	return t.GeneName, nil
}

// GenomicToCoding projects g onto transcript tx.
func (e *Engine) GenomicToCoding(ctx context.Context, g *GenomicVariant, tx string) (*CodingVariant, error) {
	t, err := e.transcript(ctx, tx)
	if err != nil {
		return nil, err
	}
	m, err := newTxMapper(t)
	if err != nil {
		return nil, err
	}

	// c. descriptions follow the 3' rule in transcript orientation, which on
	// the reverse strand is the genomic 5' end.
	if !t.IsForwardStrand() && e.genome != nil {
		switch g.Edit.Type {
		case EditIns, EditDel, EditDup:
			if g, err = e.Normalize(g, FivePrime); err != nil {
				return nil, err
			}
		}
	}
	return m.toCoding(g)
}

// CodingToProtein predicts the protein consequence of a coding variant.
func (e *Engine) CodingToProtein(ctx context.Context, c *CodingVariant) (*ProteinVariant, error) {
	t, err := e.transcript(ctx, c.Transcript)
	if err != nil {
		return nil, err
	}
	if !t.IsProteinCoding() {
		return nil, fmt.Errorf("%w: %s", ErrNotCoding, t.ID)
	}
	if !c.Start.InCDS() || !c.End.InCDS() {
		return nil, fmt.Errorf("%w: %s is not within the CDS", ErrNotTranslatable, c)
	}
	if e.genome == nil {
		return nil, fmt.Errorf("%w: no reference genome", ErrDataProvider)
	}
	if err := loadSequences(e.genome, t); err != nil {
		return nil, err
	}

	edit, err := predictProtein(t, c)
	if err != nil {
		return nil, err
	}
	acc := t.ProteinID
	if acc == "" {
		acc = t.ID
	}
	e.logger.Debug("predicted protein change",
		zap.String("coding", c.String()),
		zap.String("protein", edit.Text))
	return &ProteinVariant{Accession: acc, Edit: edit}, nil
}

// transcript returns the engine's private copy of a transcript, fetching it
// from the store on first use. Sequences are filled into the copy so that
// a shared in-memory store is never written to.
func (e *Engine) transcript(ctx context.Context, id string) (*cache.Transcript, error) {
	if t, ok := e.transcripts[id]; ok {
		return t, nil
	}
	t, err := e.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, providerError(ctx, "get transcript "+id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTranscript, id)
	}

	cp := *t
	cp.Exons = slices.Clone(t.Exons)
	if len(e.transcripts) >= maxCachedTranscripts {
		clear(e.transcripts)
	}
	e.transcripts[id] = &cp
	return &cp, nil
}
