package input

import (
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-mhc/internal/binding"
	"github.com/inodb/vibe-mhc/internal/mhc"
)

// Predictions TSV column names.
const (
	ColClass    = "class"
	ColSequence = "sequence"
	ColAllele   = "allele"
	ColPosition = "position"
	ColPeptide  = "peptide"
	ColRank     = "rank"
	ColAffinity = "affinity"
)

type predictionKey struct {
	class    mhc.Class
	sequence string
}

// PredictionIndex holds external predictor output keyed by class and by the
// xmer the predictor ran on.
type PredictionIndex struct {
	preds map[predictionKey][]binding.Prediction
	count int
}

// NewPredictionIndex returns an empty index.
func NewPredictionIndex() *PredictionIndex {
	return &PredictionIndex{preds: make(map[predictionKey][]binding.Prediction)}
}

// Add records a prediction for an xmer. Input order is preserved per xmer.
func (x *PredictionIndex) Add(class mhc.Class, sequence string, p binding.Prediction) {
	k := predictionKey{class, strings.ToUpper(sequence)}
	x.preds[k] = append(x.preds[k], p)
	x.count++
}

// Lookup returns the predictions of an xmer for a class, or nil.
func (x *PredictionIndex) Lookup(class mhc.Class, sequence string) []binding.Prediction {
	return x.preds[predictionKey{class, strings.ToUpper(sequence)}]
}

// Len returns the number of predictions in the index.
func (x *PredictionIndex) Len() int {
	return x.count
}

// Each calls fn for every prediction. Predictions of one xmer are visited in
// the order they were added.
func (x *PredictionIndex) Each(fn func(class mhc.Class, sequence string, p binding.Prediction)) {
	for k, preds := range x.preds {
		for _, p := range preds {
			fn(k.class, k.sequence, p)
		}
	}
}

// ParseClass parses "I" or "II" (case insensitive; "1" and "2" are accepted).
func ParseClass(s string) (mhc.Class, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "I", "1":
		return mhc.ClassI, true
	case "II", "2":
		return mhc.ClassII, true
	}
	return 0, false
}

// ReadPredictions loads a predictions TSV into an index.
func ReadPredictions(path string) (*PredictionIndex, error) {
	t, err := openTable(path, ColClass, ColSequence, ColAllele, ColPosition, ColPeptide, ColRank, ColAffinity)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	idx := NewPredictionIndex()
	for {
		fields, err := t.next()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}

		class, ok := ParseClass(t.field(fields, ColClass))
		if !ok {
			return nil, t.errorf("invalid class: %s", t.field(fields, ColClass))
		}
		sequence := t.field(fields, ColSequence)
		if sequence == "" {
			return nil, t.errorf("empty %s", ColSequence)
		}
		pos, err := strconv.Atoi(t.field(fields, ColPosition))
		if err != nil || pos < 1 {
			return nil, t.errorf("invalid position: %s", t.field(fields, ColPosition))
		}
		rank, err := strconv.ParseFloat(t.field(fields, ColRank), 64)
		if err != nil {
			return nil, t.errorf("invalid rank: %s", t.field(fields, ColRank))
		}
		affinity, err := strconv.ParseFloat(t.field(fields, ColAffinity), 64)
		if err != nil {
			return nil, t.errorf("invalid affinity: %s", t.field(fields, ColAffinity))
		}

		idx.Add(class, sequence, binding.Prediction{
			Allele:   t.field(fields, ColAllele),
			Peptide:  strings.ToUpper(t.field(fields, ColPeptide)),
			Position: pos,
			Rank:     rank,
			Affinity: affinity,
		})
	}
}
