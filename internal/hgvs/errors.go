package hgvs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDataProvider marks failures of the transcript store or genome
	// themselves, as opposed to problems with a particular variant.
	ErrDataProvider = errors.New("data provider unavailable")

	ErrOutOfBounds       = errors.New("position outside transcript bounds")
	ErrNotCoding         = errors.New("transcript has no coding sequence")
	ErrNotTranslatable   = errors.New("variant cannot be translated")
	ErrUnknownContig     = errors.New("unknown contig")
	ErrUnsupportedAllele = errors.New("unsupported allele")
	ErrUnknownTranscript = errors.New("unknown transcript")
	ErrReferenceMismatch = errors.New("reference allele does not match genome")
)

// providerError classifies a store or genome failure. Context expiry is
// passed through so that callers can retry; everything else is a provider
// fault.
func providerError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrDataProvider, err)
}
