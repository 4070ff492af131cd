package annotate

import (
	"context"

	"github.com/inodb/vcf-annotate/internal/hgvs"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// Engine is the transcript-mapping collaborator used for classification.
// *hgvs.Engine implements it. Implementations need not be safe for
// concurrent use; the orchestrator gives each worker its own.
type Engine interface {
	GenomicVariant(v vcf.Variant) (*hgvs.GenomicVariant, error)
	Normalize(g *hgvs.GenomicVariant, dir hgvs.Direction) (*hgvs.GenomicVariant, error)
	RelevantTranscripts(ctx context.Context, g *hgvs.GenomicVariant) ([]string, error)
	GeneSymbol(ctx context.Context, tx string) (string, error)
	GenomicToCoding(ctx context.Context, g *hgvs.GenomicVariant, tx string) (*hgvs.CodingVariant, error)
	CodingToProtein(ctx context.Context, c *hgvs.CodingVariant) (*hgvs.ProteinVariant, error)
	Close() error
}

// EngineFactory opens a new engine. It is called once per worker.
type EngineFactory func(ctx context.Context) (Engine, error)

var _ Engine = (*hgvs.Engine)(nil)
