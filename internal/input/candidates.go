package input

import (
	"io"
	"strings"
)

// Candidates TSV column names.
const (
	ColPatientIdentifier = "patientIdentifier"
	ColGene              = "gene"
	ColWildTypeXmer      = "wildTypeXmer"
	ColMutatedXmer       = "mutatedXmer"
)

// Candidate is a neoantigen candidate: a mutated xmer of one patient and its
// wild-type counterpart.
type Candidate struct {
	Identifier        string
	PatientIdentifier string
	Gene              string
	WildTypeXmer      string
	MutatedXmer       string
}

// CandidateReader streams candidates from a candidates TSV.
type CandidateReader struct {
	t *table
}

// NewCandidateReader opens a candidates TSV.
func NewCandidateReader(path string) (*CandidateReader, error) {
	t, err := openTable(path, ColPatientIdentifier, ColWildTypeXmer, ColMutatedXmer)
	if err != nil {
		return nil, err
	}
	return &CandidateReader{t: t}, nil
}

// Next reads the next candidate.
// Returns nil, nil when there are no more candidates.
func (r *CandidateReader) Next() (*Candidate, error) {
	fields, err := r.t.next()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c := &Candidate{
		Identifier:        r.t.field(fields, ColIdentifier),
		PatientIdentifier: r.t.field(fields, ColPatientIdentifier),
		Gene:              r.t.field(fields, ColGene),
		WildTypeXmer:      strings.ToUpper(r.t.field(fields, ColWildTypeXmer)),
		MutatedXmer:       strings.ToUpper(r.t.field(fields, ColMutatedXmer)),
	}
	if c.PatientIdentifier == "" {
		return nil, r.t.errorf("empty %s", ColPatientIdentifier)
	}
	if c.MutatedXmer == "" {
		return nil, r.t.errorf("empty %s", ColMutatedXmer)
	}
	return c, nil
}

// LineNumber returns the current line number being processed.
func (r *CandidateReader) LineNumber() int {
	return r.t.line
}

// Close closes the underlying file.
func (r *CandidateReader) Close() error {
	return r.t.Close()
}

// ReadCandidates reads all candidates of a candidates TSV.
func ReadCandidates(path string) ([]*Candidate, error) {
	r, err := NewCandidateReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var candidates []*Candidate
	for {
		c, err := r.Next()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return candidates, nil
		}
		candidates = append(candidates, c)
	}
}
