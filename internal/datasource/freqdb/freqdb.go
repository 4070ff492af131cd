// Package freqdb provides population allele frequency lookups backed by a
// local DuckDB table. The table is loaded from a TSV with the columns
//
//	chrom  pos  ref  alt  allele_freq  consequences
//
// where consequences is a comma-separated list of sequence ontology terms.
package freqdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// Store provides allele frequency lookups backed by DuckDB.
type Store struct {
	db       *sql.DB
	lookupPS *sql.Stmt
}

var _ annotate.FrequencySource = (*Store)(nil)

// Open opens or creates a frequency database at the given path. An empty
// path opens an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s.lookupPS, err = db.Prepare(`SELECT allele_freq, consequences FROM allele_frequencies
		WHERE chrom=? AND pos=? AND ref=? AND alt=? LIMIT 1`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS allele_frequencies (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		allele_freq DOUBLE,
		consequences VARCHAR
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_af_lookup ON allele_frequencies (chrom, pos, ref, alt)`)
	return err
}

// Count returns the number of rows in the frequency table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM allele_frequencies").Scan(&count); err != nil {
		return 0, fmt.Errorf("count allele frequency rows: %w", err)
	}
	return count, nil
}

// Load replaces the table contents with the rows of a TSV file, which may
// be gzipped. The first line is a header. A leading "chr" is stripped from
// contig names so lookups match either naming.
func (s *Store) Load(ctx context.Context, tsvPath string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM allele_frequencies`); err != nil {
		return 0, fmt.Errorf("clear allele frequencies: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO allele_frequencies
		SELECT regexp_replace(chrom, '^chr', ''), pos, upper(ref), upper(alt), allele_freq, consequences
		FROM read_csv('%s', delim='\t', header=true, null_padding=true,
			columns={
				'chrom': 'VARCHAR',
				'pos': 'BIGINT',
				'ref': 'VARCHAR',
				'alt': 'VARCHAR',
				'allele_freq': 'DOUBLE',
				'consequences': 'VARCHAR'
			})`, strings.ReplaceAll(tsvPath, "'", "''"))

	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("load allele frequencies: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Lookup returns the frequency data for v. A variant without a row is not
// an error; its AlleleFrequency is nil.
func (s *Store) Lookup(ctx context.Context, v vcf.Variant) (annotate.FrequencyAnnotation, error) {
	var af sql.NullFloat64
	var csq sql.NullString
	err := s.lookupPS.QueryRowContext(ctx, vcf.NormalizeChrom(v.Chrom), v.Pos, v.Ref, v.Alt).Scan(&af, &csq)
	if errors.Is(err, sql.ErrNoRows) {
		return annotate.FrequencyAnnotation{}, nil
	}
	if err != nil {
		return annotate.FrequencyAnnotation{}, fmt.Errorf("query allele frequency: %w", err)
	}

	var out annotate.FrequencyAnnotation
	if af.Valid {
		f := af.Float64
		out.AlleleFrequency = &f
	}
	if csq.Valid {
		out.Consequences = splitTerms(csq.String)
	}
	return out, nil
}

// splitTerms returns the sorted, de-duplicated terms of a comma-separated
// list.
func splitTerms(s string) []string {
	var terms []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	slices.Sort(terms)
	return slices.Compact(terms)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.lookupPS != nil {
		s.lookupPS.Close()
	}
	return s.db.Close()
}
