package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/vcf-annotate/internal/annotate"
)

// TabWriter writes annotations in tab-delimited format. Fields are the same
// as the CSV writer's, so an unknown value stays an empty field.
type TabWriter struct {
	w *bufio.Writer
}

var _ annotate.RecordWriter = (*TabWriter)(nil)

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString("#" + strings.Join(Columns, "\t") + "\n")
	return err
}

// Write writes a single annotation.
func (tw *TabWriter) Write(a *annotate.VariantAnnotation) error {
	_, err := tw.w.WriteString(strings.Join(Fields(a), "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
