package output

import (
	"github.com/inodb/vibe-mhc/internal/annotate"
	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/input"
)

// MultiWriter fans annotations out to several writers. The first error stops
// the fan-out.
type MultiWriter struct {
	writers []annotate.AnnotationWriter
}

// NewMultiWriter creates a writer over the given writers.
func NewMultiWriter(writers ...annotate.AnnotationWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) WriteHeader() error {
	for _, w := range m.writers {
		if err := w.WriteHeader(); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) Write(c *input.Candidate, anns []annotation.Annotation) error {
	for _, w := range m.writers {
		if err := w.Write(c, anns); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiWriter) Flush() error {
	for _, w := range m.writers {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}
