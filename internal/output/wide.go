package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/input"
)

// candidateColumns are written before the annotation columns.
var candidateColumns = []string{
	input.ColIdentifier,
	input.ColPatientIdentifier,
	input.ColGene,
	input.ColWildTypeXmer,
	input.ColMutatedXmer,
}

// WideWriter writes one row per candidate: the candidate columns followed by
// one column per annotation.
type WideWriter struct {
	w           *bufio.Writer
	annotations []string
}

// NewWideWriter creates a writer with the given annotation columns.
func NewWideWriter(w io.Writer, annotations []string) *WideWriter {
	return &WideWriter{
		w:           bufio.NewWriter(w),
		annotations: annotations,
	}
}

// WriteHeader writes the candidate columns plus the annotation columns.
func (ww *WideWriter) WriteHeader() error {
	header := append(append([]string{}, candidateColumns...), ww.annotations...)
	_, err := ww.w.WriteString(strings.Join(header, "\t") + "\n")
	return err
}

// Write writes a candidate row. Annotation columns missing from anns are NA.
func (ww *WideWriter) Write(c *input.Candidate, anns []annotation.Annotation) error {
	byName := make(map[string]string, len(anns))
	for _, a := range anns {
		byName[a.Name] = a.Value
	}

	row := []string{c.Identifier, c.PatientIdentifier, c.Gene, c.WildTypeXmer, c.MutatedXmer}
	for _, col := range ww.annotations {
		val, ok := byName[col]
		if !ok {
			val = annotation.NotAvailable
		}
		row = append(row, val)
	}

	_, err := ww.w.WriteString(strings.Join(row, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (ww *WideWriter) Flush() error {
	return ww.w.Flush()
}
