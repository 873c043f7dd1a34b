package binding

// CountBinders returns the number of predictions ranked at or below the
// threshold (classically defined neoepitopes, CDN). It is not available
// when there are no predictions.
func CountBinders(preds []Prediction, threshold float64) (int, bool) {
	if len(preds) == 0 {
		return 0, false
	}
	n := 0
	for _, p := range preds {
		if p.Rank <= threshold {
			n++
		}
	}
	return n, true
}

type windowKey struct {
	allele   string
	position int
	length   int
}

// CountAlternativeBinders returns the number of mutated predictions ranked at
// or below threshold whose wild-type window, for the same allele, does not
// rank at or below wildTypeThreshold (alternatively defined neoepitopes, ADN).
// Mutated predictions without a wild-type counterpart are not counted. It is
// not available when no mutated prediction has a wild-type counterpart.
func CountAlternativeBinders(preds, wildType []Prediction, threshold, wildTypeThreshold float64) (int, bool) {
	wt := make(map[windowKey]Prediction, len(wildType))
	for _, p := range wildType {
		k := windowKey{p.Allele, p.Position, len(p.Peptide)}
		if _, ok := wt[k]; !ok {
			wt[k] = p
		}
	}

	n, paired := 0, 0
	for _, p := range preds {
		w, ok := wt[windowKey{p.Allele, p.Position, len(p.Peptide)}]
		if !ok {
			continue
		}
		paired++
		if p.Rank <= threshold && w.Rank > wildTypeThreshold {
			n++
		}
	}
	if paired == 0 {
		return 0, false
	}
	return n, true
}
