package vcf

// LocusSource is a once-through reader of VCF loci.
type LocusSource interface {
	// Next reads the next locus.
	// Returns nil, nil when there are no more loci.
	Next() (*Locus, error)

	// Close closes the source and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}
