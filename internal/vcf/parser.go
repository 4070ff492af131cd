package vcf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single VCF line. Cohort VCFs with thousands of sample
// columns easily exceed bufio.Scanner's 64 KiB default.
const maxLineSize = 16 << 20

// fixedColumns is the number of mandatory columns before FORMAT.
const fixedColumns = 8

// Header is the meta-information of a VCF file.
type Header struct {
	// Meta maps a ##key to its values in file order. Structured lines such
	// as ##INFO=<...> keep their raw "<...>" text.
	Meta    map[string][]string
	Samples []string
	// Lines holds every header line verbatim, #CHROM included.
	Lines []string
}

// Get returns the first value of a ##key=value meta line.
func (h *Header) Get(key string) (string, bool) {
	v := h.Meta[key]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// Parser reads loci from a VCF stream. It is not safe for concurrent use.
type Parser struct {
	scanner *bufio.Scanner
	closers []io.Closer
	header  Header
	line    int
}

// NewParser opens a plain or bgzip/gzip-compressed VCF. The path "-" reads
// standard input.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	r, closers, err := decompress(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	p := newParser(r)
	p.closers = append(closers, f)
	if err := p.readHeader(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader parses an uncompressed VCF stream. The caller keeps
// ownership of r.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := newParser(r)
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func newParser(r io.Reader) *Parser {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	return &Parser{
		scanner: s,
		header:  Header{Meta: make(map[string][]string)},
	}
}

// decompress sniffs the gzip magic bytes and wraps f accordingly.
func decompress(f *os.File) (io.Reader, []io.Closer, error) {
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("read vcf header: %w", err)
	}
	if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, nil, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("create gzip reader: %w", err)
	}
	return zr, []io.Closer{zr}, nil
}

// scan advances to the next line, returning false at end of input.
func (p *Parser) scan() (string, bool, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", false, fmt.Errorf("read vcf line %d: %w", p.line+1, err)
		}
		return "", false, nil
	}
	p.line++
	return strings.TrimSuffix(p.scanner.Text(), "\r"), true, nil
}

// readHeader consumes ## meta lines up to and including #CHROM.
func (p *Parser) readHeader() error {
	for {
		line, ok, err := p.scan()
		if err != nil {
			return err
		}
		if !ok {
			return p.errorf("no #CHROM header line found")
		}

		switch {
		case strings.HasPrefix(line, "##"):
			p.header.Lines = append(p.header.Lines, line)
			key, value, _ := strings.Cut(line[2:], "=")
			p.header.Meta[key] = append(p.header.Meta[key], value)
		case strings.HasPrefix(line, "#CHROM"):
			p.header.Lines = append(p.header.Lines, line)
			cols := strings.Split(line, "\t")
			if len(cols) < fixedColumns {
				return p.errorf("#CHROM line has %d columns, want at least %d", len(cols), fixedColumns)
			}
			if len(cols) > fixedColumns+1 {
				p.header.Samples = cols[fixedColumns+1:]
			}
			return nil
		default:
			return p.errorf("expected #CHROM header line")
		}
	}
}

// Next returns the next locus, or nil, nil at end of input. Blank lines are
// skipped.
func (p *Parser) Next() (*Locus, error) {
	for {
		line, ok, err := p.scan()
		if err != nil || !ok {
			return nil, err
		}
		if line != "" {
			return p.parseRecord(line)
		}
	}
}

func (p *Parser) parseRecord(line string) (*Locus, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < fixedColumns {
		return nil, p.errorf("expected at least %d columns, found %d", fixedColumns, len(cols))
	}

	pos, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil || pos < 1 {
		return nil, p.errorf("invalid position: %s", cols[1])
	}

	l := &Locus{
		Chrom:  cols[0],
		Pos:    pos,
		ID:     cols[2],
		Ref:    strings.ToUpper(cols[3]),
		Filter: cols[6],
		Info:   parseInfo(cols[7]),
	}
	if cols[4] != "." && cols[4] != "" {
		l.Alts = strings.Split(strings.ToUpper(cols[4]), ",")
	}
	if cols[5] != "." {
		if l.Qual, err = strconv.ParseFloat(cols[5], 64); err != nil {
			return nil, p.errorf("invalid QUAL: %s", cols[5])
		}
	}

	if len(cols) > fixedColumns+1 {
		got, want := len(cols)-fixedColumns-1, len(p.header.Samples)
		if got != want {
			return nil, p.errorf("found %d sample columns, header names %d", got, want)
		}
		l.Samples = parseSamples(cols[fixedColumns], cols[fixedColumns+1:], p.header.Samples)
	}
	return l, nil
}

// parseInfo splits an INFO column. Flags map to the empty string.
func parseInfo(info string) map[string]string {
	if info == "." || info == "" {
		return map[string]string{}
	}
	entries := strings.Split(info, ";")
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, _ := strings.Cut(e, "=")
		m[k] = v
	}
	return m
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Message: fmt.Sprintf(format, args...)}
}

// Header returns the parsed meta-information.
func (p *Parser) Header() *Header { return &p.header }

// SampleNames returns the sample columns named on the #CHROM line.
func (p *Parser) SampleNames() []string { return p.header.Samples }

// Reference returns the ##reference meta value, or "" when absent.
func (p *Parser) Reference() string {
	ref, _ := p.header.Get("reference")
	return ref
}

// LineNumber returns the 1-based number of the last line read.
func (p *Parser) LineNumber() int { return p.line }

// Close releases the decompressor and file, innermost first.
func (p *Parser) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// ParseError is a malformed line in a VCF file.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
