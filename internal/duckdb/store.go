// Package duckdb stores annotation results in DuckDB. Each annotate run
// gets a row in runs, keyed by a random run ID, and its per-locus rows go
// to locus_annotations.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for annotation results.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		input_path VARCHAR,
		input_size BIGINT,
		input_mtime TIMESTAMP,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		loci BIGINT,
		written BIGINT,
		skipped BIGINT
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS locus_annotations (
		run_id VARCHAR,
		row_num BIGINT,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		alt_index BIGINT,
		site_depth BIGINT,
		allele_depth BIGINT,
		allele_fraction DOUBLE,
		samples VARCHAR,
		sequence_alteration VARCHAR,
		feature_variant VARCHAR,
		hgvs_g VARCHAR,
		hgvs_c VARCHAR,
		hgvs_p VARCHAR,
		gene VARCHAR,
		allele_frequency DOUBLE,
		consequences VARCHAR
	)`)
	return err
}
