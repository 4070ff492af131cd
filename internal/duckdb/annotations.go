package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcf-annotate/internal/annotate"
)

// AnnotationWriter appends the annotations of one run to locus_annotations
// through the DuckDB Appender API. It holds a dedicated connection until
// Close.
type AnnotationWriter struct {
	runID    string
	conn     *sql.Conn
	appender *goduckdb.Appender
	rows     int64
}

var _ annotate.RecordWriter = (*AnnotationWriter)(nil)

// NewAnnotationWriter creates a writer for the rows of run runID.
func (s *Store) NewAnnotationWriter(ctx context.Context, runID string) (*AnnotationWriter, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "locus_annotations")
		return err
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create appender: %w", err)
	}
	return &AnnotationWriter{runID: runID, conn: conn, appender: appender}, nil
}

// WriteHeader is a no-op; the table schema is the header.
func (w *AnnotationWriter) WriteHeader() error { return nil }

// Write appends one annotation.
func (w *AnnotationWriter) Write(a *annotate.VariantAnnotation) error {
	c := a.Consequence
	var feature, g, cv, p, gene any
	if c.Feature != nil {
		feature = c.Feature.Slug
	}
	if c.Genomic != nil {
		g = c.Genomic.String()
	}
	if c.Coding != nil {
		cv = c.Coding.String()
	}
	if c.Protein != nil {
		p = c.Protein.String()
	}
	if c.Gene != "" {
		gene = c.Gene
	}
	var af any
	if a.Frequency.AlleleFrequency != nil {
		af = *a.Frequency.AlleleFrequency
	}

	err := w.appender.AppendRow(
		w.runID, w.rows,
		a.Variant.Chrom, a.Variant.Pos, a.Variant.Ref, a.Variant.Alt, int64(a.Variant.AlleleIndex),
		int64(a.Support.SiteDepth), int64(a.Support.AlleleDepth), a.Support.AlleleFraction,
		strings.Join(a.Support.Samples, ";"),
		c.Alteration.Slug, feature, g, cv, p, gene,
		af, strings.Join(a.Frequency.Consequences, ";"),
	)
	if err != nil {
		return fmt.Errorf("append locus annotation: %w", err)
	}
	w.rows++
	return nil
}

// Flush makes appended rows visible to other connections.
func (w *AnnotationWriter) Flush() error {
	return w.appender.Flush()
}

// Close flushes the appender and releases the connection.
func (w *AnnotationWriter) Close() error {
	err := w.appender.Close()
	if cerr := w.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// AnnotationRow is a stored locus annotation.
type AnnotationRow struct {
	RunID       string
	Chrom       string
	Pos         int64
	Ref         string
	Alt         string
	Feature     string
	HGVSc       string
	HGVSp       string
	Gene        string
	AlleleFreq  *float64
	AlleleRatio float64
}

// SearchByGene returns the stored annotations of a gene across runs, in
// run and input order.
func (s *Store) SearchByGene(ctx context.Context, gene string) ([]AnnotationRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, chrom, pos, ref, alt, feature_variant, hgvs_c, hgvs_p, gene,
		allele_frequency, allele_fraction
		FROM locus_annotations
		WHERE gene = ?
		ORDER BY run_id, row_num`, gene)
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()

	var out []AnnotationRow
	for rows.Next() {
		var r AnnotationRow
		var feature, hgvsc, hgvsp sql.NullString
		var af sql.NullFloat64
		if err := rows.Scan(&r.RunID, &r.Chrom, &r.Pos, &r.Ref, &r.Alt,
			&feature, &hgvsc, &hgvsp, &r.Gene, &af, &r.AlleleRatio); err != nil {
			return nil, fmt.Errorf("scan locus annotation: %w", err)
		}
		r.Feature, r.HGVSc, r.HGVSp = feature.String, hgvsc.String, hgvsp.String
		if af.Valid {
			f := af.Float64
			r.AlleleFreq = &f
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locus annotations: %w", err)
	}
	return out, nil
}

// CountAnnotations returns the number of stored rows for a run.
func (s *Store) CountAnnotations(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locus_annotations WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count locus annotations: %w", err)
	}
	return n, nil
}
