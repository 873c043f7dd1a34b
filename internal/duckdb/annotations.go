package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/input"
)

// AnnotationRow is one annotation of one candidate in one run.
type AnnotationRow struct {
	RunID       string
	PatientID   string
	CandidateID string
	Ordinal     int64
	Name        string
	Value       string
}

// WriteAnnotations batch-inserts annotation rows into DuckDB using the Appender API.
func (s *Store) WriteAnnotations(rows []AnnotationRow) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "annotations")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range rows {
		if err := appender.AppendRow(r.RunID, r.PatientID, r.CandidateID, r.Ordinal, r.Name, r.Value); err != nil {
			return fmt.Errorf("append annotation: %w", err)
		}
	}

	return appender.Flush()
}

// ClearAnnotations removes the annotations of a run.
func (s *Store) ClearAnnotations(runID string) error {
	_, err := s.db.Exec("DELETE FROM annotations WHERE run_id=?", runID)
	return err
}

// LookupCandidate returns the annotations stored for a candidate in a run,
// in the order they were written.
func (s *Store) LookupCandidate(runID, candidateID string) ([]annotation.Annotation, error) {
	rows, err := s.db.Query(`SELECT name, value FROM annotations
		WHERE run_id=? AND candidate_id=?
		ORDER BY ordinal`, runID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("query candidate: %w", err)
	}
	defer rows.Close()

	var anns []annotation.Annotation
	for rows.Next() {
		var a annotation.Annotation
		if err := rows.Scan(&a.Name, &a.Value); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		anns = append(anns, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return anns, nil
}

// CountByValue returns, for one annotation name in a run, how many candidates
// carry each value.
func (s *Store) CountByValue(runID, name string) (map[string]int, error) {
	rows, err := s.db.Query(`SELECT value, count(*) FROM annotations
		WHERE run_id=? AND name=?
		GROUP BY value`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var value string
		var n int64
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[value] = int(n)
	}
	return counts, rows.Err()
}

const defaultBatchSize = 10000

// Writer stores the annotations of a run as they are produced. Rows are
// appended in batches.
type Writer struct {
	store *Store
	runID string
	batch []AnnotationRow
	size  int
}

// NewWriter creates a writer for a recorded run.
func NewWriter(s *Store, runID string) *Writer {
	return &Writer{store: s, runID: runID, size: defaultBatchSize}
}

// WriteHeader is a no-op; the schema is created on Open.
func (w *Writer) WriteHeader() error {
	return nil
}

// Write buffers the annotations of a candidate.
func (w *Writer) Write(c *input.Candidate, anns []annotation.Annotation) error {
	for i, a := range anns {
		w.batch = append(w.batch, AnnotationRow{
			RunID:       w.runID,
			PatientID:   c.PatientIdentifier,
			CandidateID: c.Identifier,
			Ordinal:     int64(i),
			Name:        a.Name,
			Value:       a.Value,
		})
	}
	if len(w.batch) >= w.size {
		return w.Flush()
	}
	return nil
}

// Flush appends buffered rows to the store.
func (w *Writer) Flush() error {
	if err := w.store.WriteAnnotations(w.batch); err != nil {
		return err
	}
	w.batch = w.batch[:0]
	return nil
}
