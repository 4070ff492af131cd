package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/marcboeker/go-duckdb"
)

// SchemaVersion is bumped whenever the table layout below changes.
const SchemaVersion = "2"

// ErrSchemaVersion is returned when a transcript database was written by an
// incompatible version and needs to be rebuilt.
var ErrSchemaVersion = errors.New("transcript database schema mismatch")

const schema = `
CREATE TABLE IF NOT EXISTS store_meta (
	key   VARCHAR PRIMARY KEY,
	value VARCHAR NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	id         VARCHAR PRIMARY KEY,
	gene_id    VARCHAR,
	gene_name  VARCHAR,
	protein_id VARCHAR,
	chrom      VARCHAR NOT NULL,
	tx_start   BIGINT NOT NULL,
	tx_end     BIGINT NOT NULL,
	strand     TINYINT NOT NULL,
	biotype    VARCHAR,
	cds_start  BIGINT,
	cds_end    BIGINT
);

CREATE TABLE IF NOT EXISTS exons (
	transcript_id VARCHAR NOT NULL,
	number        INTEGER NOT NULL,
	exon_start    BIGINT NOT NULL,
	exon_end      BIGINT NOT NULL,
	cds_start     BIGINT,
	cds_end       BIGINT,
	frame         TINYINT,
	PRIMARY KEY (transcript_id, number)
);

CREATE INDEX IF NOT EXISTS transcripts_by_locus ON transcripts(chrom, tx_start, tx_end);
`

// TranscriptStore is the DuckDB file the index command writes and the
// mapping engine reads. Each engine opens its own read-only handle.
type TranscriptStore struct {
	db *sql.DB
}

// CreateTranscriptStore creates the schema in a new or empty database file
// and records where the transcripts came from.
func CreateTranscriptStore(ctx context.Context, path, source string) (*TranscriptStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s := &TranscriptStore{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO store_meta VALUES ('schema_version', ?), ('source', ?)
	`, SchemaVersion, source)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("write store metadata: %w", err)
	}
	return s, nil
}

// OpenTranscriptStore opens an existing database read-only and checks that
// its layout matches SchemaVersion.
func OpenTranscriptStore(ctx context.Context, path string) (*TranscriptStore, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s := &TranscriptStore{db: db}

	version, err := s.meta(ctx, "schema_version")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if version != SchemaVersion {
		db.Close()
		return nil, fmt.Errorf("%w: %s has version %q, want %q; rebuild the index", ErrSchemaVersion, path, version, SchemaVersion)
	}
	return s, nil
}

func (s *TranscriptStore) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// Source returns the path of the GTF the store was built from.
func (s *TranscriptStore) Source(ctx context.Context) (string, error) {
	return s.meta(ctx, "source")
}

// Close closes the database.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

// Transcripts and their exons come back in one pass; rows of a transcript
// are adjacent and its exons ordered by start.
const selectTranscripts = `
SELECT t.id, t.gene_id, t.gene_name, t.protein_id, t.chrom, t.tx_start, t.tx_end,
       t.strand, t.biotype, t.cds_start, t.cds_end,
       e.number, e.exon_start, e.exon_end, e.cds_start, e.cds_end, e.frame
FROM transcripts t
LEFT JOIN exons e ON e.transcript_id = t.id
`

// FindTranscripts returns the transcripts intersecting [start, end] on chrom,
// ordered by start then ID.
func (s *TranscriptStore) FindTranscripts(ctx context.Context, chrom string, start, end int64) ([]*Transcript, error) {
	rows, err := s.db.QueryContext(ctx, selectTranscripts+`
		WHERE t.chrom = ? AND t.tx_start <= ? AND t.tx_end >= ?
		ORDER BY t.tx_start, t.id, e.exon_start`, chrom, end, start)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	return collectTranscripts(rows)
}

// GetTranscript returns the transcript with the given ID, or nil.
func (s *TranscriptStore) GetTranscript(ctx context.Context, id string) (*Transcript, error) {
	rows, err := s.db.QueryContext(ctx, selectTranscripts+`
		WHERE t.id = ?
		ORDER BY e.exon_start`, id)
	if err != nil {
		return nil, fmt.Errorf("query transcript %s: %w", id, err)
	}
	found, err := collectTranscripts(rows)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func collectTranscripts(rows *sql.Rows) ([]*Transcript, error) {
	defer rows.Close()

	var (
		out []*Transcript
		cur *Transcript
	)
	for rows.Next() {
		var (
			t                         Transcript
			geneID, geneName, protein sql.NullString
			biotype                   sql.NullString
			cdsStart, cdsEnd          sql.NullInt64
			number, exStart, exEnd    sql.NullInt64
			exCDSStart, exCDSEnd, frm sql.NullInt64
		)
		err := rows.Scan(
			&t.ID, &geneID, &geneName, &protein, &t.Chrom, &t.Start, &t.End,
			&t.Strand, &biotype, &cdsStart, &cdsEnd,
			&number, &exStart, &exEnd, &exCDSStart, &exCDSEnd, &frm,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}

		if cur == nil || cur.ID != t.ID {
			t.GeneID = geneID.String
			t.GeneName = geneName.String
			t.ProteinID = protein.String
			t.Biotype = biotype.String
			t.CDSStart = cdsStart.Int64
			t.CDSEnd = cdsEnd.Int64
			cur = &t
			out = append(out, cur)
		}
		if !number.Valid {
			continue
		}
		e := Exon{
			Number:   int(number.Int64),
			Start:    exStart.Int64,
			End:      exEnd.Int64,
			CDSStart: exCDSStart.Int64,
			CDSEnd:   exCDSEnd.Int64,
			Frame:    -1,
		}
		if frm.Valid {
			e.Frame = int(frm.Int64)
		}
		cur.Exons = append(cur.Exons, e)
	}
	return out, rows.Err()
}

// InsertTranscripts writes transcripts and their exons in one transaction
// and returns how many were new. A transcript whose ID is already stored is
// skipped along with its exons.
func (s *TranscriptStore) InsertTranscripts(ctx context.Context, transcripts []*Transcript) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcripts VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare transcript insert: %w", err)
	}
	defer txStmt.Close()
	exonStmt, err := tx.PrepareContext(ctx, `INSERT INTO exons VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare exon insert: %w", err)
	}
	defer exonStmt.Close()

	var inserted int
	for _, t := range transcripts {
		res, err := txStmt.ExecContext(ctx, t.ID, orNull(t.GeneID), orNull(t.GeneName), orNull(t.ProteinID),
			t.Chrom, t.Start, t.End, t.Strand, orNull(t.Biotype), orNull(t.CDSStart), orNull(t.CDSEnd))
		if err != nil {
			return 0, fmt.Errorf("insert transcript %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		for _, e := range t.Exons {
			var frame any
			if e.Frame >= 0 {
				frame = e.Frame
			}
			_, err := exonStmt.ExecContext(ctx, t.ID, e.Number, e.Start, e.End,
				orNull(e.CDSStart), orNull(e.CDSEnd), frame)
			if err != nil {
				return 0, fmt.Errorf("insert exon %d of %s: %w", e.Number, t.ID, err)
			}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transcripts: %w", err)
	}
	return inserted, nil
}

// TranscriptCount returns the number of stored transcripts.
func (s *TranscriptStore) TranscriptCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM transcripts`).Scan(&n)
	return n, err
}

// Chromosomes returns the distinct chromosomes in sorted order.
func (s *TranscriptStore) Chromosomes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT chrom FROM transcripts ORDER BY chrom`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chroms []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		chroms = append(chroms, c)
	}
	return chroms, rows.Err()
}

// orNull maps the zero value to SQL NULL.
func orNull[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}
	return v
}
