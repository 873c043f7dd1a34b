// Package binding aggregates per-allele MHC binding predictions of a mutated
// peptide and its wild-type counterpart into patient-level scores.
package binding

import (
	"strings"

	"github.com/inodb/vibe-mhc/internal/mhc"
)

// Prediction is one predicted epitope of an allele (Class I) or isoform
// (Class II) for a window of the xmer the predictor ran on.
type Prediction struct {
	Allele   string  // allele or isoform name
	Peptide  string  // epitope sequence
	Position int     // 1-based start of the epitope in the xmer
	Rank     float64 // percentile rank, lower binds better
	Affinity float64 // predicted affinity in nM, lower binds better
}

// End returns the 1-based position of the last residue of the epitope.
func (p Prediction) End() int {
	return p.Position + len(p.Peptide) - 1
}

// Covers reports whether the epitope window contains the position.
func (p Prediction) Covers(position int) bool {
	return position >= p.Position && position <= p.End()
}

const aminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// Mutation is a neoantigen candidate: the mutated xmer, its wild-type
// counterpart and the 1-based positions where they differ.
type Mutation struct {
	WildTypeXmer string
	MutatedXmer  string
	Positions    []int
}

// NewMutation validates both xmers and locates the mutated positions.
func NewMutation(wildType, mutated string) (Mutation, error) {
	wt := strings.ToUpper(strings.TrimSpace(wildType))
	mut := strings.ToUpper(strings.TrimSpace(mutated))
	if mut == "" {
		return Mutation{}, &mhc.DataValidationError{Message: "mutated xmer is empty"}
	}
	for _, xmer := range []string{wt, mut} {
		if i := strings.IndexFunc(xmer, func(r rune) bool { return !strings.ContainsRune(aminoAcids, r) }); i >= 0 {
			return Mutation{}, &mhc.DataValidationError{Message: "xmer " + xmer + " contains a non amino acid character"}
		}
	}

	var positions []int
	common := min(len(wt), len(mut))
	for i := 0; i < common; i++ {
		if wt[i] != mut[i] {
			positions = append(positions, i+1)
		}
	}
	// residues beyond the wild-type end are all new
	for i := common; i < len(mut); i++ {
		positions = append(positions, i+1)
	}
	if len(positions) == 0 {
		if len(wt) == len(mut) {
			return Mutation{}, &mhc.DataValidationError{Message: "mutated and wild-type xmers are identical"}
		}
		// deletion at the end: the last mutated residue is the junction
		positions = []int{len(mut)}
	}

	return Mutation{WildTypeXmer: wt, MutatedXmer: mut, Positions: positions}, nil
}

// FilterOverlapping keeps predictions whose window covers a mutated position.
func FilterOverlapping(preds []Prediction, m Mutation) []Prediction {
	var kept []Prediction
	for _, p := range preds {
		for _, pos := range m.Positions {
			if p.Covers(pos) {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}

// FilterAlleles keeps predictions for the given allele or isoform names.
func FilterAlleles(preds []Prediction, alleles map[string]bool) []Prediction {
	var kept []Prediction
	for _, p := range preds {
		if alleles[p.Allele] {
			kept = append(kept, p)
		}
	}
	return kept
}
