package binding

import (
	"github.com/inodb/vibe-mhc/internal/mhc"
)

// invariantAlphaCopies is the number of DRA copies paired with every DRB1
// allele. DRA is not polymorphic so it is never typed.
const invariantAlphaCopies = 2

// BestEpitope is the best-ranked prediction for one allele (Class I) or
// isoform (Class II) of the genotype. Prediction is nil when nothing was
// predicted for it. Copies is the number of harmonic-mean slots it fills.
type BestEpitope struct {
	Allele     string
	Copies     int
	Prediction *Prediction
}

// bestByAllele picks the lowest-rank prediction per allele. On equal ranks the
// prediction seen first wins.
func bestByAllele(preds []Prediction) map[string]Prediction {
	best := make(map[string]Prediction)
	for _, p := range preds {
		if cur, ok := best[p.Allele]; !ok || p.Rank < cur.Rank {
			best[p.Allele] = p
		}
	}
	return best
}

func lookupBest(best map[string]Prediction, allele string) *Prediction {
	p, ok := best[allele]
	if !ok {
		return nil
	}
	return &p
}

// BestEpitopesMhc1 returns the best epitope of every Class I allele in the
// genotype, in genotype order. A homozygous allele fills two slots.
func BestEpitopesMhc1(preds []Prediction, genes []mhc.Mhc1) []BestEpitope {
	best := bestByAllele(preds)
	var result []BestEpitope
	for _, g := range genes {
		copies := 1
		if g.Zygosity == mhc.Homozygous {
			copies = 2
		}
		for _, a := range g.Alleles {
			result = append(result, BestEpitope{
				Allele:     a.Name,
				Copies:     copies,
				Prediction: lookupBest(best, a.Name),
			})
		}
	}
	return result
}

// BestEpitopesMhc2 returns the best epitope of every Class II isoform in the
// genotype, in genotype order. An isoform fills one slot per copy of each
// modeled chain; DR isoforms additionally count the invariant alpha chain.
func BestEpitopesMhc2(preds []Prediction, molecules []mhc.Mhc2) []BestEpitope {
	best := bestByAllele(preds)
	var result []BestEpitope
	for _, m := range molecules {
		for _, iso := range m.Isoforms {
			copies := chainCopies(m.Genes, iso.Alpha) * chainCopies(m.Genes, iso.Beta)
			if m.Name == mhc.MoleculeDR {
				copies *= invariantAlphaCopies
			}
			result = append(result, BestEpitope{
				Allele:     iso.Name,
				Copies:     copies,
				Prediction: lookupBest(best, iso.Name),
			})
		}
	}
	return result
}

func chainCopies(genes []mhc.Mhc2Gene, chain *mhc.MhcAllele) int {
	if chain == nil {
		return 1
	}
	for _, g := range genes {
		if string(g.Name) == chain.Gene && g.Zygosity == mhc.Homozygous {
			return 2
		}
	}
	return 1
}

// BestByRank returns the allele-level best with the lowest rank, or nil.
func BestByRank(best []BestEpitope) *Prediction {
	return selectBest(best, func(a, b Prediction) bool { return a.Rank < b.Rank })
}

// BestByAffinity returns the allele-level best with the lowest affinity, or nil.
func BestByAffinity(best []BestEpitope) *Prediction {
	return selectBest(best, func(a, b Prediction) bool { return a.Affinity < b.Affinity })
}

func selectBest(best []BestEpitope, less func(a, b Prediction) bool) *Prediction {
	var selected *Prediction
	for _, b := range best {
		if b.Prediction == nil {
			continue
		}
		if selected == nil || less(*b.Prediction, *selected) {
			p := *b.Prediction
			selected = &p
		}
	}
	return selected
}
