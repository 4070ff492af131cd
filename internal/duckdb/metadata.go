package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one annotate invocation. FinishedAt is zero while the run
// is in progress or when it failed.
type Run struct {
	ID         string
	Input      FileFingerprint
	StartedAt  time.Time
	FinishedAt time.Time
	Loci       int64
	Written    int64
	Skipped    int64
}

// StartRun records a new run over input under the caller's run ID.
func (s *Store) StartRun(ctx context.Context, id string, input FileFingerprint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, input_path, input_size, input_mtime, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, input.Path, input.Size, input.ModTime.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// FinishRun marks a run complete with its final counts.
func (s *Store) FinishRun(ctx context.Context, id string, loci, written, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, loci = ?, written = ?, skipped = ? WHERE run_id = ?`,
		time.Now().UTC(), int64(loci), int64(written), int64(skipped), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	var finished sql.NullTime
	var loci, written, skipped sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT run_id, input_path, input_size, input_mtime, started_at,
		finished_at, loci, written, skipped FROM runs WHERE run_id = ?`, id).Scan(
		&r.ID, &r.Input.Path, &r.Input.Size, &r.Input.ModTime, &r.StartedAt,
		&finished, &loci, &written, &skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	r.FinishedAt = finished.Time
	r.Loci, r.Written, r.Skipped = loci.Int64, written.Int64, skipped.Int64
	return &r, nil
}
