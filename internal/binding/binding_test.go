package binding

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/mhc"
)

const (
	wildTypeXmer = "DEVLGEPSQDILVIDQTRLEATISPET"
	mutatedXmer  = "DEVLGEPSQDILVTDQTRLEATISPET"
)

var heterozygousMhc1 = []string{
	"HLA-A*24:02", "HLA-A*02:01",
	"HLA-B*15:01", "HLA-B*44:02",
	"HLA-C*05:01", "HLA-C*07:01",
}

func mhc1Genotype(t *testing.T, alleles []string) []mhc.Mhc1 {
	t.Helper()
	genes, err := mhc.NewFactory(mhc.HumanDatabase()).BuildMhc1(alleles)
	require.NoError(t, err)
	return genes
}

func mhc2Genotype(t *testing.T, alleles []string) []mhc.Mhc2 {
	t.Helper()
	molecules, err := mhc.NewFactory(mhc.HumanDatabase()).BuildMhc2(alleles)
	require.NoError(t, err)
	return molecules
}

func testMutation(t *testing.T) Mutation {
	t.Helper()
	m, err := NewMutation(wildTypeXmer, mutatedXmer)
	require.NoError(t, err)
	return m
}

// mhc1Predictions covers every allele of heterozygousMhc1 with windows over
// the mutation, plus windows that do not cover it.
func mhc1Predictions() []Prediction {
	return []Prediction{
		{Allele: "HLA-A*24:02", Peptide: "VTDQTRLEA", Position: 13, Rank: 0.5, Affinity: 900},
		{Allele: "HLA-A*24:02", Peptide: "ILVTDQTRL", Position: 11, Rank: 4.0, Affinity: 3000},
		{Allele: "HLA-A*02:01", Peptide: "ILVTDQTRL", Position: 11, Rank: 1.2, Affinity: 543.9},
		{Allele: "HLA-B*15:01", Peptide: "LVTDQTRLE", Position: 12, Rank: 3.0, Affinity: 2000},
		{Allele: "HLA-B*44:02", Peptide: "VTDQTRLEA", Position: 13, Rank: 2.0, Affinity: 1500},
		{Allele: "HLA-C*05:01", Peptide: "VTDQTRLEA", Position: 13, Rank: 0.4304, Affinity: 700},
		{Allele: "HLA-C*07:01", Peptide: "SQDILVTDQ", Position: 8, Rank: 8.0, Affinity: 8000},
		// does not cover position 14
		{Allele: "HLA-A*02:01", Peptide: "DQTRLEATI", Position: 15, Rank: 0.01, Affinity: 5},
		// not in the genotype
		{Allele: "HLA-A*01:01", Peptide: "VTDQTRLEA", Position: 13, Rank: 0.001, Affinity: 1},
	}
}

func TestNewMutation(t *testing.T) {
	m := testMutation(t)
	assert.Equal(t, []int{14}, m.Positions)

	m, err := NewMutation("ACDEF", "acdefgh")
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7}, m.Positions)

	m, err = NewMutation("ACDEFGH", "ACDEF")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, m.Positions)

	var dve *mhc.DataValidationError
	for _, tc := range [][2]string{
		{"ACDEF", "ACDEF"},
		{"ACDEF", ""},
		{"ACDEF", "ACBEF"},
	} {
		_, err := NewMutation(tc[0], tc[1])
		assert.True(t, errors.As(err, &dve), "%v should fail validation", tc)
	}
}

func TestFilterOverlapping(t *testing.T) {
	m := testMutation(t)
	kept := FilterOverlapping(mhc1Predictions(), m)
	for _, p := range kept {
		assert.True(t, p.Covers(14), "%s at %d", p.Peptide, p.Position)
	}
	assert.Len(t, kept, 8)
}

func TestBestEpitopesMhc1(t *testing.T) {
	genes := mhc1Genotype(t, heterozygousMhc1)
	best := BestEpitopesMhc1(FilterOverlapping(mhc1Predictions(), testMutation(t)), genes)

	require.Len(t, best, 6)
	assert.Equal(t, "HLA-A*24:02", best[0].Allele)
	require.NotNil(t, best[0].Prediction)
	assert.Equal(t, 0.5, best[0].Prediction.Rank)
	assert.Equal(t, "HLA-A*02:01", best[1].Allele)
	assert.Equal(t, 1.2, best[1].Prediction.Rank, "windows off the mutation are ignored")
	for _, b := range best {
		assert.Equal(t, 1, b.Copies)
	}
}

func TestBestEpitopesMhc1_TiesKeepFirst(t *testing.T) {
	genes := mhc1Genotype(t, []string{"HLA-A*02:01"})
	preds := []Prediction{
		{Allele: "HLA-A*02:01", Peptide: "FIRST", Position: 1, Rank: 1.0},
		{Allele: "HLA-A*02:01", Peptide: "SECOND", Position: 2, Rank: 1.0},
		{Allele: "HLA-A*02:01", Peptide: "WORSE", Position: 3, Rank: 1.5},
	}
	best := BestEpitopesMhc1(preds, genes)
	require.Len(t, best, 1)
	assert.Equal(t, "FIRST", best[0].Prediction.Peptide)

	slices.Reverse(preds)
	best = BestEpitopesMhc1(preds, genes)
	assert.Equal(t, "SECOND", best[0].Prediction.Peptide)
}

func TestPHBRI(t *testing.T) {
	m := testMutation(t)
	genes := mhc1Genotype(t, heterozygousMhc1)

	preds := FilterOverlapping(mhc1Predictions(), m)
	phbr, ok := PHBRI(BestEpitopesMhc1(preds, genes), genes)
	require.True(t, ok)
	assert.InDelta(t, 0.981179867777806, phbr, 1e-12)

	// order independent
	slices.Reverse(preds)
	reversed, ok := PHBRI(BestEpitopesMhc1(preds, genes), genes)
	require.True(t, ok)
	assert.InDelta(t, phbr, reversed, 1e-12)
}

func TestPHBRI_HomozygousCountsTwice(t *testing.T) {
	genes := mhc1Genotype(t, []string{
		"HLA-A*24:02", "HLA-A*02:01",
		"HLA-B*15:01", "HLA-B*44:02",
		"HLA-C*05:01", "HLA-C*05:01",
	})
	best := BestEpitopesMhc1(FilterOverlapping(mhc1Predictions(), testMutation(t)), genes)
	require.Len(t, best, 5)
	assert.Equal(t, 2, best[4].Copies)

	phbr, ok := PHBRI(best, genes)
	require.True(t, ok)
	assert.InDelta(t, 0.7217170964376212, phbr, 1e-12)
}

func TestPHBRI_NotAvailable(t *testing.T) {
	m := testMutation(t)

	// hemizygous C leaves one slot empty
	genes := mhc1Genotype(t, heterozygousMhc1[:5])
	_, ok := PHBRI(BestEpitopesMhc1(FilterOverlapping(mhc1Predictions(), m), genes), genes)
	assert.False(t, ok)

	// one allele without a prediction
	genes = mhc1Genotype(t, heterozygousMhc1)
	var preds []Prediction
	for _, p := range mhc1Predictions() {
		if p.Allele != "HLA-B*44:02" {
			preds = append(preds, p)
		}
	}
	_, ok = PHBRI(BestEpitopesMhc1(FilterOverlapping(preds, m), genes), genes)
	assert.False(t, ok)

	_, ok = PHBRI(nil, nil)
	assert.False(t, ok)
}

var fullMhc2 = []string{
	"HLA-DRB1*04:02", "HLA-DRB1*08:01",
	"HLA-DQA1*03:01", "HLA-DQA1*04:01",
	"HLA-DQB1*03:02", "HLA-DQB1*04:02",
	"HLA-DPA1*01:03", "HLA-DPA1*02:01",
	"HLA-DPB1*13:01", "HLA-DPB1*04:01",
}

func mhc2Predictions() []Prediction {
	window := func(allele string, rank float64) Prediction {
		return Prediction{Allele: allele, Peptide: "VTDQTRLEATISPET", Position: 13, Rank: rank, Affinity: rank * 100}
	}
	return []Prediction{
		window("HLA-DRB1*04:02", 5),
		window("HLA-DRB1*08:01", 10),
		window("HLA-DPA1*01:03-DPB1*13:01", 20),
		window("HLA-DPA1*01:03-DPB1*04:01", 17),
		window("HLA-DPA1*02:01-DPB1*13:01", 30),
		window("HLA-DPA1*02:01-DPB1*04:01", 40),
		window("HLA-DQA1*03:01-DQB1*03:02", 12),
		window("HLA-DQA1*03:01-DQB1*04:02", 25),
		window("HLA-DQA1*04:01-DQB1*03:02", 60),
		window("HLA-DQA1*04:01-DQB1*04:02", 15),
	}
}

func TestPHBRII(t *testing.T) {
	molecules := mhc2Genotype(t, fullMhc2)
	best := BestEpitopesMhc2(mhc2Predictions(), molecules)
	require.Len(t, best, 10)

	total := 0
	for _, b := range best {
		total += b.Copies
	}
	assert.Equal(t, 12, total)

	phbr, ok := PHBRII(best, molecules)
	require.True(t, ok)
	assert.InDelta(t, 12.322561159770462, phbr, 1e-12)
}

func TestPHBRII_HomozygousChain(t *testing.T) {
	alleles := slices.Clone(fullMhc2)
	alleles[9] = "HLA-DPB1*13:01"
	molecules := mhc2Genotype(t, alleles)

	best := BestEpitopesMhc2(mhc2Predictions(), molecules)
	require.Len(t, best, 8)

	phbr, ok := PHBRII(best, molecules)
	require.True(t, ok)
	assert.InDelta(t, 12.328767123287669, phbr, 1e-12)
}

func TestPHBRII_NotAvailable(t *testing.T) {
	// hemizygous DPB1
	molecules := mhc2Genotype(t, fullMhc2[:9])
	_, ok := PHBRII(BestEpitopesMhc2(mhc2Predictions(), molecules), molecules)
	assert.False(t, ok)

	// missing DR prediction
	molecules = mhc2Genotype(t, fullMhc2)
	_, ok = PHBRII(BestEpitopesMhc2(mhc2Predictions()[1:], molecules), molecules)
	assert.False(t, ok)
}

func TestPHBRII_Mouse(t *testing.T) {
	molecules, err := mhc.NewFactory(mhc.MouseDatabase()).BuildMhc2([]string{"H2-IAb", "H2-IAd", "H2-IEd", "H2-IEd"})
	require.NoError(t, err)

	preds := []Prediction{
		{Allele: "H2-IAb", Peptide: "VTDQTRLEATISPET", Position: 13, Rank: 2},
		{Allele: "H2-IAd", Peptide: "VTDQTRLEATISPET", Position: 13, Rank: 4},
		{Allele: "H2-IEd", Peptide: "VTDQTRLEATISPET", Position: 13, Rank: 8},
	}
	phbr, ok := PHBRII(BestEpitopesMhc2(preds, molecules), molecules)
	require.True(t, ok)
	// 4 / (1/2 + 1/4 + 2/8)
	assert.InDelta(t, 4.0, phbr, 1e-12)
}

func TestBestByRankAndAffinity(t *testing.T) {
	genes := mhc1Genotype(t, heterozygousMhc1)
	best := BestEpitopesMhc1(FilterOverlapping(mhc1Predictions(), testMutation(t)), genes)

	byRank := BestByRank(best)
	require.NotNil(t, byRank)
	assert.Equal(t, 0.4304, byRank.Rank)
	assert.Equal(t, "HLA-C*05:01", byRank.Allele)
	assert.Equal(t, "VTDQTRLEA", byRank.Peptide)

	byAffinity := BestByAffinity(best)
	require.NotNil(t, byAffinity)
	assert.Equal(t, 543.9, byAffinity.Affinity)
	assert.Equal(t, "HLA-A*02:01", byAffinity.Allele)

	assert.Nil(t, BestByRank([]BestEpitope{{Allele: "HLA-A*02:01", Copies: 1}}))
	assert.Nil(t, BestByAffinity(nil))
}

func TestCountBinders(t *testing.T) {
	preds := []Prediction{{Rank: 0.5}, {Rank: 2}, {Rank: 50}, {Rank: 51}}

	n, ok := CountBinders(preds, 50)
	require.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = CountBinders(preds, 2)
	require.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = CountBinders(nil, 50)
	assert.False(t, ok, "no predictions is not a zero count")
}

func TestCountAlternativeBinders(t *testing.T) {
	mut := []Prediction{
		{Allele: "A", Peptide: "AAAAAAAAA", Position: 1, Rank: 1},  // wt no binder: counted
		{Allele: "A", Peptide: "AAAAAAAAA", Position: 2, Rank: 1},  // wt binds: not counted
		{Allele: "B", Peptide: "AAAAAAAAA", Position: 1, Rank: 60}, // mutated no binder
		{Allele: "B", Peptide: "AAAAAAAAAA", Position: 1, Rank: 1}, // no wt window of this length
	}
	wt := []Prediction{
		{Allele: "A", Peptide: "CCCCCCCCC", Position: 1, Rank: 70},
		{Allele: "A", Peptide: "CCCCCCCCC", Position: 2, Rank: 10},
		{Allele: "B", Peptide: "CCCCCCCCC", Position: 1, Rank: 90},
	}

	n, ok := CountAlternativeBinders(mut, wt, 50, 50)
	require.True(t, ok)
	assert.Equal(t, 1, n)

	// a looser wild-type threshold excludes more
	n, ok = CountAlternativeBinders(mut, wt, 50, 80)
	require.True(t, ok)
	assert.Equal(t, 0, n)

	_, ok = CountAlternativeBinders(mut, nil, 50, 50)
	assert.False(t, ok)
}

func TestMhc1Binder_Run(t *testing.T) {
	m := testMutation(t)
	genes := mhc1Genotype(t, heterozygousMhc1)

	wt := []Prediction{
		{Allele: "HLA-C*05:01", Peptide: "VIDQTRLEA", Position: 13, Rank: 60, Affinity: 9000},
		{Allele: "HLA-A*02:01", Peptide: "ILVIDQTRL", Position: 11, Rank: 0.9, Affinity: 300},
	}

	b := NewMhc1Binder(Thresholds{Binder: 2, Alternative: 2, WildType: 2})
	r := b.Run(m, genes, mhc1Predictions(), wt)

	require.NotNil(t, r.PHBR)
	assert.InDelta(t, 0.981179867777806, *r.PHBR, 1e-12)
	require.NotNil(t, r.GeneratorRateCDN)
	assert.Equal(t, 4, *r.GeneratorRateCDN)
	require.NotNil(t, r.GeneratorRateADN)
	assert.Equal(t, 1, *r.GeneratorRateADN)

	anns := b.Annotations(r)
	want := map[string]string{
		"PHBR_I":                       "0.98118",
		"Best_rank_MHCI_score":         "0.4304",
		"Best_rank_MHCI_score_epitope": "VTDQTRLEA",
		"Best_rank_MHCI_score_allele":  "HLA-C*05:01",
		"Best_affinity_MHCI_score":     "543.9",
		"Best_affinity_MHCI_epitope":   "ILVTDQTRL",
		"Best_affinity_MHCI_allele":    "HLA-A*02:01",
		"Generator_rate_ADN":           "1",
		"Generator_rate_CDN":           "4",
	}
	require.Len(t, anns, len(want))
	for name, value := range want {
		got, ok := annotation.Lookup(anns, name)
		require.True(t, ok, name)
		assert.Equal(t, value, got, name)
	}
}

func TestMhc1Binder_RunDefaults(t *testing.T) {
	wt := []Prediction{
		{Allele: "HLA-C*05:01", Peptide: "VIDQTRLEA", Position: 13, Rank: 60, Affinity: 9000},
		{Allele: "HLA-A*02:01", Peptide: "ILVIDQTRL", Position: 11, Rank: 9, Affinity: 4000},
		{Allele: "HLA-B*44:02", Peptide: "VIDQTRLEA", Position: 13, Rank: 40, Affinity: 8000},
		{Allele: "HLA-B*15:01", Peptide: "LVIDQTRLE", Position: 12, Rank: 30, Affinity: 7000},
	}

	b := NewMhc1Binder(DefaultMhc1Thresholds)
	r := b.Run(testMutation(t), mhc1Genotype(t, heterozygousMhc1), mhc1Predictions(), wt)

	// strong binders: A*24:02 at 0.5 and C*05:01 at 0.4304
	require.NotNil(t, r.GeneratorRateCDN)
	assert.Equal(t, 2, *r.GeneratorRateCDN)
	// weak binders gained by the mutation: C*05:01, A*02:01 and B*44:02
	require.NotNil(t, r.GeneratorRateADN)
	assert.Equal(t, 3, *r.GeneratorRateADN)
	assert.Greater(t, *r.GeneratorRateADN, *r.GeneratorRateCDN)
}

func TestDefaultThresholds(t *testing.T) {
	for _, th := range []Thresholds{DefaultMhc1Thresholds, DefaultMhc2Thresholds} {
		assert.Less(t, th.Binder, th.Alternative)
	}
	assert.NotEqual(t, DefaultMhc1Thresholds, DefaultMhc2Thresholds)
}

func TestMhc1Binder_RunWithoutPredictions(t *testing.T) {
	b := NewMhc1Binder(DefaultMhc1Thresholds)
	r := b.Run(testMutation(t), mhc1Genotype(t, heterozygousMhc1), nil, nil)

	for _, a := range b.Annotations(r) {
		assert.Equal(t, annotation.NotAvailable, a.Value, a.Name)
	}
}

func TestMhc2Binder_Run(t *testing.T) {
	molecules := mhc2Genotype(t, fullMhc2)
	b := NewMhc2Binder(DefaultMhc2Thresholds)
	r := b.Run(testMutation(t), molecules, mhc2Predictions(), nil)

	require.NotNil(t, r.PHBR)
	assert.InDelta(t, 12.322561159770462, *r.PHBR, 1e-12)
	require.NotNil(t, r.BestByRank)
	assert.Equal(t, "HLA-DRB1*04:02", r.BestByRank.Allele)
	require.NotNil(t, r.GeneratorRateCDN)
	assert.Equal(t, 0, *r.GeneratorRateCDN, "no Class II window ranks at or below 1")
	assert.Nil(t, r.GeneratorRateADN)

	anns := b.Annotations(r)
	v, ok := annotation.Lookup(anns, "PHBR_II")
	require.True(t, ok)
	assert.Equal(t, "12.323", v)
	v, _ = annotation.Lookup(anns, "Generator_rate_ADN_MHCII")
	assert.Equal(t, annotation.NotAvailable, v)
}

func TestAnnotationNames(t *testing.T) {
	b1 := NewMhc1Binder(DefaultMhc1Thresholds)
	anns := b1.Annotations(Result{})
	names := b1.AnnotationNames()
	require.Len(t, names, len(anns))
	for i, a := range anns {
		assert.Equal(t, names[i], a.Name)
	}

	b2 := NewMhc2Binder(DefaultMhc2Thresholds)
	assert.Equal(t, "PHBR_II", b2.AnnotationNames()[0])
	assert.Equal(t, "Generator_rate_CDN_MHCII", b2.AnnotationNames()[8])
}
