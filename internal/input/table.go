// Package input reads the tab-delimited inputs of an annotation run: patients,
// neoantigen candidates and external binding predictor output. Every reader
// accepts plain or gzipped files, and "-" for stdin.
package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/brentp/xopen"
)

// ParseError represents an error during input parsing with line context.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s at line %d: %s", e.File, e.Line, e.Message)
}

const maxLineSize = 1 << 20

// table reads a headered TSV file row by row. Blank lines and lines starting
// with # are skipped.
type table struct {
	path    string
	rdr     *xopen.Reader
	scanner *bufio.Scanner
	line    int
	columns map[string]int
}

// openTable opens path and reads its header, failing when a required column
// is missing.
func openTable(path string, required ...string) (*table, error) {
	rdr, err := xopen.Ropen(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	t := &table{path: path, rdr: rdr, scanner: bufio.NewScanner(rdr)}
	t.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	header, err := t.next()
	if err == io.EOF {
		rdr.Close()
		return nil, t.errorf("no header line found")
	}
	if err != nil {
		rdr.Close()
		return nil, err
	}

	t.columns = make(map[string]int, len(header))
	for i, col := range header {
		t.columns[strings.TrimSpace(col)] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			rdr.Close()
			return nil, t.errorf("required column '%s' not found in header", col)
		}
	}
	return t, nil
}

// next returns the fields of the next data line, or io.EOF.
func (t *table) next() ([]string, error) {
	for t.scanner.Scan() {
		t.line++
		line := strings.TrimRight(t.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Split(line, "\t"), nil
	}
	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	return nil, io.EOF
}

// field returns the trimmed value of a column, or "" when the column is absent
// from the header or the row is short.
func (t *table) field(fields []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

func (t *table) errorf(format string, args ...any) *ParseError {
	return &ParseError{File: t.path, Line: t.line, Message: fmt.Sprintf(format, args...)}
}

func (t *table) Close() error {
	return t.rdr.Close()
}

// splitList splits a comma separated cell, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
