package output

import (
	"encoding/csv"
	"io"

	"github.com/inodb/vcf-annotate/internal/annotate"
)

// CSVWriter writes one comma-separated row per annotation.
type CSVWriter struct {
	w *csv.Writer
}

var _ annotate.RecordWriter = (*CSVWriter)(nil)

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the header line.
func (cw *CSVWriter) WriteHeader() error {
	return cw.w.Write(Columns)
}

// Write writes a single annotation.
func (cw *CSVWriter) Write(a *annotate.VariantAnnotation) error {
	return cw.w.Write(Fields(a))
}

// Flush flushes any buffered data to the underlying writer.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}
