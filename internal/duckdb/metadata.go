package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

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

// Run identifies one annotation run and the inputs it read.
type Run struct {
	ID          string
	StartedAt   time.Time
	Organism    string
	Candidates  FileFingerprint
	Predictions FileFingerprint
}

// NewRun creates a run with a fresh identifier.
func NewRun(organism string, candidates, predictions FileFingerprint) Run {
	return Run{
		ID:          uuid.NewString(),
		StartedAt:   dbTime(time.Now()),
		Organism:    organism,
		Candidates:  candidates,
		Predictions: predictions,
	}
}

// RecordRun stores the run metadata.
func (s *Store) RecordRun(r Run) error {
	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, dbTime(r.StartedAt), r.Organism,
		r.Candidates.Path, r.Candidates.Size, dbTime(r.Candidates.ModTime),
		r.Predictions.Path, r.Predictions.Size, dbTime(r.Predictions.ModTime))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// dbTime matches the microsecond precision of DuckDB timestamps.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

const runColumns = `run_id, started_at, organism,
	candidates_path, candidates_size, candidates_modtime,
	predictions_path, predictions_size, predictions_modtime`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.StartedAt, &r.Organism,
		&r.Candidates.Path, &r.Candidates.Size, &r.Candidates.ModTime,
		&r.Predictions.Path, &r.Predictions.Size, &r.Predictions.ModTime)
	return r, err
}

// Runs returns all recorded runs, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the latest run that read the same candidates and
// predictions files, unchanged. ok is false when there is none.
func (s *Store) FindRun(organism string, candidates, predictions FileFingerprint) (Run, bool, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs
		WHERE organism=?
		AND candidates_path=? AND candidates_size=? AND candidates_modtime=?
		AND predictions_path=? AND predictions_size=? AND predictions_modtime=?
		ORDER BY started_at DESC LIMIT 1`,
		organism,
		candidates.Path, candidates.Size, dbTime(candidates.ModTime),
		predictions.Path, predictions.Size, dbTime(predictions.ModTime))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("find run: %w", err)
	}
	return r, true, nil
}
