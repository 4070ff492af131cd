package cache

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GTFStats summarizes one GTF load.
type GTFStats struct {
	Transcripts int // transcripts with at least one exon
	Malformed   int // lines that could not be parsed
	AltContigs  int // lines on haplotype, unplaced or random contigs
}

// LoadGTF reads transcript models from a plain or gzipped GTF into c. NCBI
// and UCSC RefSeq files (no transcript lines, NM_/NR_ accessions) as well as
// GENCODE files are understood. Features on alternate contigs such as
// chr6_cox_hap2 are skipped: UCSC repeats primary accessions there.
func LoadGTF(path string, c *Cache) (GTFStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return GTFStats{}, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return GTFStats{}, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	transcripts, stats, err := parseGTF(r)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", path, err)
	}
	for _, t := range transcripts {
		c.AddTranscript(t)
	}
	return stats, nil
}

// gtfModel accumulates the features of one transcript until the whole file
// has been read; GTF does not guarantee features are grouped.
type gtfModel struct {
	tx    *Transcript
	exons []Exon
	cds   [][2]int64
}

// gtfRecord is one parsed GTF line.
type gtfRecord struct {
	chrom      string
	feature    string
	start, end int64
	strand     int8
	attrs      map[string]string
}

var errShortLine = errors.New("fewer than 9 columns")

// parseGTF returns the transcripts in r ordered by chromosome, start and ID.
func parseGTF(r io.Reader) ([]*Transcript, GTFStats, error) {
	var stats GTFStats
	models := make(map[string]*gtfModel)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		rec, err := parseGTFRecord(line)
		if err != nil {
			stats.Malformed++
			continue
		}
		if strings.Contains(rec.chrom, "_") {
			stats.AltContigs++
			continue
		}
		id := stripVersion(rec.attrs["transcript_id"])
		if id == "" {
			continue
		}

		m := models[id]
		if m == nil {
			m = &gtfModel{tx: newTranscript(id, rec)}
			models[id] = m
		}
		m.add(rec)
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan GTF: %w", err)
	}

	out := make([]*Transcript, 0, len(models))
	for _, m := range models {
		if len(m.exons) == 0 {
			continue
		}
		m.assemble()
		out = append(out, m.tx)
	}
	slices.SortFunc(out, func(a, b *Transcript) int {
		return cmp.Or(cmp.Compare(a.Chrom, b.Chrom), cmp.Compare(a.Start, b.Start), cmp.Compare(a.ID, b.ID))
	})
	stats.Transcripts = len(out)
	return out, stats, nil
}

func (m *gtfModel) add(rec *gtfRecord) {
	t := m.tx
	switch rec.feature {
	case "transcript":
		t.Start, t.End = rec.start, rec.end
	case "exon":
		n, _ := strconv.Atoi(rec.attrs["exon_number"])
		m.exons = append(m.exons, Exon{Number: n, Start: rec.start, End: rec.end, Frame: -1})
		// UCSC files carry no transcript lines, so the span grows from exons.
		if t.Start == 0 || rec.start < t.Start {
			t.Start = rec.start
		}
		t.End = max(t.End, rec.end)
	case "CDS":
		m.cds = append(m.cds, [2]int64{rec.start, rec.end})
		if pid := rec.attrs["protein_id"]; pid != "" {
			t.ProteinID = pid
		}
	case "start_codon", "stop_codon":
		// GENCODE leaves the stop codon out of the CDS lines, RefSeq does not.
		m.cds = append(m.cds, [2]int64{rec.start, rec.end})
	}
}

func newTranscript(id string, rec *gtfRecord) *Transcript {
	a := rec.attrs
	t := &Transcript{
		ID:       id,
		GeneID:   stripVersion(a["gene_id"]),
		GeneName: cmp.Or(a["gene_name"], a["gene"]),
		Biotype:  cmp.Or(a["transcript_type"], a["transcript_biotype"], a["gene_type"], a["gene_biotype"]),
		Chrom:    rec.chrom,
		Strand:   rec.strand,
	}
	if rec.feature == "transcript" {
		t.Start, t.End = rec.start, rec.end
	}
	return t
}

// assemble orders the exons, derives the CDS span and clips it to each exon,
// then assigns reading frames 5' to 3'.
func (m *gtfModel) assemble() {
	t, exons := m.tx, m.exons
	slices.SortFunc(exons, func(a, b Exon) int { return cmp.Compare(a.Start, b.Start) })

	for i, r := range m.cds {
		if i == 0 || r[0] < t.CDSStart {
			t.CDSStart = r[0]
		}
		t.CDSEnd = max(t.CDSEnd, r[1])
	}

	// Walk in transcript order: forward for +, backward for -.
	order := make([]int, len(exons))
	for i := range order {
		order[i] = i
		if t.Strand == -1 {
			order[i] = len(exons) - 1 - i
		}
	}

	var coded int64
	for rank, i := range order {
		e := &exons[i]
		if e.Number == 0 {
			e.Number = rank + 1
		}
		if !t.IsProteinCoding() || e.End < t.CDSStart || e.Start > t.CDSEnd {
			continue
		}
		e.CDSStart = max(e.Start, t.CDSStart)
		e.CDSEnd = min(e.End, t.CDSEnd)
		e.Frame = int(coded % 3)
		coded += e.CDSEnd - e.CDSStart + 1
	}
	t.Exons = exons
}

func parseGTFRecord(line string) (*gtfRecord, error) {
	cols := strings.SplitN(line, "\t", 9)
	if len(cols) < 9 {
		return nil, errShortLine
	}
	start, err := strconv.ParseInt(cols[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := strconv.ParseInt(cols[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	var strand int8 = 1
	if cols[6] == "-" {
		strand = -1
	}
	return &gtfRecord{
		chrom:   normalizeChrom(cols[0]),
		feature: cols[2],
		start:   start,
		end:     end,
		strand:  strand,
		attrs:   parseAttributes(cols[8]),
	}, nil
}

// parseAttributes splits a `key "value"; key "value";` column. For a key
// given more than once the first value is kept.
func parseAttributes(col string) map[string]string {
	attrs := make(map[string]string, 8)
	for _, part := range strings.Split(col, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), " ")
		if !ok {
			continue
		}
		if _, dup := attrs[key]; !dup {
			attrs[key] = strings.Trim(strings.TrimSpace(value), `"`)
		}
	}
	return attrs
}

// stripVersion drops the version of an Ensembl ID (ENST00000311936.8 becomes
// ENST00000311936). RefSeq accessions keep theirs since HGVS cites it.
func stripVersion(id string) string {
	if !strings.HasPrefix(id, "ENS") {
		return id
	}
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// normalizeChrom removes the "chr" prefix so GTF, VCF and FASTA names line up.
func normalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}
