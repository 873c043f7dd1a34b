// Package output provides annotation and genotype output formatters.
package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/input"
)

// TabWriter writes annotations in long tab-delimited format, one annotation
// per line.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"patientIdentifier",
			"candidateIdentifier",
			"name",
			"value",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes the annotations of a single candidate.
func (tw *TabWriter) Write(c *input.Candidate, anns []annotation.Annotation) error {
	for _, a := range anns {
		values := []string{
			c.PatientIdentifier,
			orDash(c.Identifier),
			a.Name,
			a.Value,
		}
		if _, err := tw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
