package binding

import (
	"gonum.org/v1/gonum/stat"

	"github.com/inodb/vibe-mhc/internal/mhc"
)

// Mhc1Slots is the number of PHBR-I slots per Class I gene.
const Mhc1Slots = 2

// Mhc2Slots returns the number of PHBR-II slots a molecule family fills when
// fully typed: two copies of each chain for paired families (DR counts the
// invariant DRA twice), two alleles for the unpaired mouse families.
func Mhc2Slots(molecule mhc.Mhc2Name) int {
	switch molecule {
	case mhc.MoleculeDR, mhc.MoleculeDP, mhc.MoleculeDQ:
		return 4
	case mhc.MoleculeH2A, mhc.MoleculeH2E:
		return 2
	default:
		return 0
	}
}

// PHBRI is the harmonic mean of the best rank of each Class I allele slot.
// It is not available unless every slot of every gene has a prediction.
func PHBRI(best []BestEpitope, genes []mhc.Mhc1) (float64, bool) {
	return phbr(best, Mhc1Slots*len(genes))
}

// PHBRII is the harmonic mean of the best rank of each Class II isoform slot.
// It is not available unless every slot of every molecule has a prediction.
func PHBRII(best []BestEpitope, molecules []mhc.Mhc2) (float64, bool) {
	expected := 0
	for _, m := range molecules {
		expected += Mhc2Slots(m.Name)
	}
	return phbr(best, expected)
}

func phbr(best []BestEpitope, expected int) (float64, bool) {
	if expected == 0 {
		return 0, false
	}
	var ranks, copies []float64
	filled := 0
	for _, b := range best {
		if b.Prediction == nil {
			continue
		}
		ranks = append(ranks, b.Prediction.Rank)
		copies = append(copies, float64(b.Copies))
		filled += b.Copies
	}
	if filled != expected {
		return 0, false
	}
	return stat.HarmonicMean(ranks, copies), true
}
