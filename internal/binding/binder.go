package binding

import (
	"go.uber.org/zap"

	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/mhc"
)

// Thresholds are the percentile-rank cutoffs used for generator rates.
type Thresholds struct {
	Binder      float64 // CDN: mutated epitopes at or below this rank are binders
	Alternative float64 // ADN: mutated epitopes at or below this rank are candidates
	WildType    float64 // ADN: wild-type epitopes at or below this rank already bind
}

// Default thresholds follow the predictors' binder cutoffs: NetMHCpan strong
// and weak binders for Class I, NetMHCIIpan strong and weak binders for
// Class II.
var (
	DefaultMhc1Thresholds = Thresholds{Binder: 0.5, Alternative: 2, WildType: 2}
	DefaultMhc2Thresholds = Thresholds{Binder: 1, Alternative: 5, WildType: 5}
)

// Result holds the aggregated binding scores of one mutation for one class.
// Nil fields are not available.
type Result struct {
	PHBR             *float64
	BestByRank       *Prediction
	BestByAffinity   *Prediction
	GeneratorRateADN *int
	GeneratorRateCDN *int
}

// Annotation names for each class.
const (
	AnnotationPHBRI  = "PHBR_I"
	AnnotationPHBRII = "PHBR_II"
)

type annotationNames struct {
	phbr            string
	rankScore       string
	rankEpitope     string
	rankAllele      string
	affinityScore   string
	affinityEpitope string
	affinityAllele  string
	adn             string
	cdn             string
}

var (
	mhc1Names = annotationNames{
		phbr:            AnnotationPHBRI,
		rankScore:       "Best_rank_MHCI_score",
		rankEpitope:     "Best_rank_MHCI_score_epitope",
		rankAllele:      "Best_rank_MHCI_score_allele",
		affinityScore:   "Best_affinity_MHCI_score",
		affinityEpitope: "Best_affinity_MHCI_epitope",
		affinityAllele:  "Best_affinity_MHCI_allele",
		adn:             "Generator_rate_ADN",
		cdn:             "Generator_rate_CDN",
	}
	mhc2Names = annotationNames{
		phbr:            AnnotationPHBRII,
		rankScore:       "Best_rank_MHCII_score",
		rankEpitope:     "Best_rank_MHCII_score_epitope",
		rankAllele:      "Best_rank_MHCII_score_allele",
		affinityScore:   "Best_affinity_MHCII_score",
		affinityEpitope: "Best_affinity_MHCII_epitope",
		affinityAllele:  "Best_affinity_MHCII_allele",
		adn:             "Generator_rate_ADN_MHCII",
		cdn:             "Generator_rate_CDN_MHCII",
	}
)

func (n annotationNames) list() []string {
	return []string{
		n.phbr,
		n.rankScore, n.rankEpitope, n.rankAllele,
		n.affinityScore, n.affinityEpitope, n.affinityAllele,
		n.adn, n.cdn,
	}
}

func (r Result) annotations(n annotationNames) []annotation.Annotation {
	anns := []annotation.Annotation{annotation.Build(n.phbr, r.PHBR)}

	var rank, rankPeptide, rankAllele any
	if p := r.BestByRank; p != nil {
		rank, rankPeptide, rankAllele = p.Rank, p.Peptide, p.Allele
	}
	var affinity, affinityPeptide, affinityAllele any
	if p := r.BestByAffinity; p != nil {
		affinity, affinityPeptide, affinityAllele = p.Affinity, p.Peptide, p.Allele
	}

	return append(anns,
		annotation.Build(n.rankScore, rank),
		annotation.Build(n.rankEpitope, rankPeptide),
		annotation.Build(n.rankAllele, rankAllele),
		annotation.Build(n.affinityScore, affinity),
		annotation.Build(n.affinityEpitope, affinityPeptide),
		annotation.Build(n.affinityAllele, affinityAllele),
		annotation.Build(n.adn, r.GeneratorRateADN),
		annotation.Build(n.cdn, r.GeneratorRateCDN),
	)
}

// Mhc1Binder aggregates Class I predictions.
type Mhc1Binder struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewMhc1Binder creates a Class I aggregator.
func NewMhc1Binder(t Thresholds) *Mhc1Binder {
	return &Mhc1Binder{thresholds: t, logger: zap.NewNop()}
}

// SetLogger sets the logger for debug messages.
func (b *Mhc1Binder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Run aggregates the predictions of the mutated and wild-type xmers over the
// patient's Class I genotype.
func (b *Mhc1Binder) Run(m Mutation, genes []mhc.Mhc1, mutated, wildType []Prediction) Result {
	alleles := make(map[string]bool)
	for _, g := range genes {
		for _, a := range g.Alleles {
			alleles[a.Name] = true
		}
	}
	mut, wt := relevant(m, alleles, mutated, wildType)

	best := BestEpitopesMhc1(mut, genes)
	r := generatorRates(mut, wt, b.thresholds)
	if v, ok := PHBRI(best, genes); ok {
		r.PHBR = &v
	}
	r.BestByRank = BestByRank(best)
	r.BestByAffinity = BestByAffinity(best)

	b.logger.Debug("aggregated MHC I predictions",
		zap.Int("predictions", len(mut)),
		zap.Int("alleles", len(best)),
		zap.Bool("phbr_available", r.PHBR != nil))
	return r
}

// Annotations renders a Class I result.
func (b *Mhc1Binder) Annotations(r Result) []annotation.Annotation {
	return r.annotations(mhc1Names)
}

// AnnotationNames lists the Class I annotations in emission order.
func (b *Mhc1Binder) AnnotationNames() []string {
	return mhc1Names.list()
}

// Mhc2Binder aggregates Class II predictions.
type Mhc2Binder struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewMhc2Binder creates a Class II aggregator.
func NewMhc2Binder(t Thresholds) *Mhc2Binder {
	return &Mhc2Binder{thresholds: t, logger: zap.NewNop()}
}

// SetLogger sets the logger for debug messages.
func (b *Mhc2Binder) SetLogger(l *zap.Logger) {
	b.logger = l
}

// Run aggregates the predictions of the mutated and wild-type xmers over the
// patient's Class II isoforms.
func (b *Mhc2Binder) Run(m Mutation, molecules []mhc.Mhc2, mutated, wildType []Prediction) Result {
	isoforms := make(map[string]bool)
	for _, mol := range molecules {
		for _, iso := range mol.Isoforms {
			isoforms[iso.Name] = true
		}
	}
	mut, wt := relevant(m, isoforms, mutated, wildType)

	best := BestEpitopesMhc2(mut, molecules)
	r := generatorRates(mut, wt, b.thresholds)
	if v, ok := PHBRII(best, molecules); ok {
		r.PHBR = &v
	}
	r.BestByRank = BestByRank(best)
	r.BestByAffinity = BestByAffinity(best)

	b.logger.Debug("aggregated MHC II predictions",
		zap.Int("predictions", len(mut)),
		zap.Int("isoforms", len(best)),
		zap.Bool("phbr_available", r.PHBR != nil))
	return r
}

// Annotations renders a Class II result.
func (b *Mhc2Binder) Annotations(r Result) []annotation.Annotation {
	return r.annotations(mhc2Names)
}

// AnnotationNames lists the Class II annotations in emission order.
func (b *Mhc2Binder) AnnotationNames() []string {
	return mhc2Names.list()
}

// relevant restricts predictions to the genotype and to windows covering the
// mutation.
func relevant(m Mutation, alleles map[string]bool, mutated, wildType []Prediction) ([]Prediction, []Prediction) {
	mut := FilterOverlapping(FilterAlleles(mutated, alleles), m)
	wt := FilterOverlapping(FilterAlleles(wildType, alleles), m)
	return mut, wt
}

func generatorRates(mut, wt []Prediction, t Thresholds) Result {
	var r Result
	if n, ok := CountAlternativeBinders(mut, wt, t.Alternative, t.WildType); ok {
		r.GeneratorRateADN = &n
	}
	if n, ok := CountBinders(mut, t.Binder); ok {
		r.GeneratorRateCDN = &n
	}
	return r
}
