package mhc

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Factory builds patient genotypes from raw allele strings.
type Factory struct {
	db     *Database
	parser *Parser
	logger *zap.Logger
}

// NewFactory creates a genotype factory for the given reference database.
func NewFactory(db *Database) *Factory {
	return &Factory{
		db:     db,
		parser: NewParser(db),
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (f *Factory) SetLogger(l *zap.Logger) {
	f.logger = l
}

// Parser returns the allele parser used by the factory.
func (f *Factory) Parser() *Parser {
	return f.parser
}

// BuildPatient assembles a validated patient.
func (f *Factory) BuildPatient(identifier string, isRNAAvailable bool, tumorType string, mhc1Alleles, mhc2Alleles []string) (*Patient, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, validationf("patient identifier is empty")
	}
	mhc1, err := f.BuildMhc1(mhc1Alleles)
	if err != nil {
		return nil, err
	}
	mhc2, err := f.BuildMhc2(mhc2Alleles)
	if err != nil {
		return nil, err
	}
	return &Patient{
		Identifier:     identifier,
		IsRNAAvailable: isRNAAvailable,
		TumorType:      tumorType,
		Mhc1:           mhc1,
		Mhc2:           mhc2,
	}, nil
}

// BuildMhc1 returns one record per Class I gene of the reference database,
// including genes with no alleles (Loss).
func (f *Factory) BuildMhc1(alleles []string) ([]Mhc1, error) {
	parsed, err := f.parser.ParseAlleles(alleles)
	if err != nil {
		return nil, err
	}
	if err := ValidateMhc1Alleles(parsed); err != nil {
		return nil, err
	}

	genes := make([]Mhc1, 0, len(f.db.Mhc1Genes))
	for _, gene := range f.db.Mhc1Genes {
		z, geneAlls, err := geneAlleles(string(gene), parsed)
		if err != nil {
			return nil, boundaryError(err)
		}
		f.logger.Debug("resolved MHC I gene",
			zap.String("gene", string(gene)),
			zap.Stringer("zygosity", z),
			zap.Int("alleles", len(geneAlls)))
		genes = append(genes, Mhc1{Name: gene, Zygosity: z, Alleles: geneAlls})
	}
	return genes, nil
}

// BuildMhc2 returns one record per Class II molecule of the reference
// database with its genes and isoforms.
func (f *Factory) BuildMhc2(alleles []string) ([]Mhc2, error) {
	parsed, err := f.parser.ParseAlleles(alleles)
	if err != nil {
		return nil, err
	}
	if err := ValidateMhc2Alleles(parsed); err != nil {
		return nil, err
	}

	molecules := make([]Mhc2, 0, len(f.db.Mhc2Molecules))
	for _, molecule := range f.db.Mhc2Molecules {
		geneNames := f.db.GenesFor(molecule)
		genes := make([]Mhc2Gene, 0, len(geneNames))
		for _, gene := range geneNames {
			z, geneAlls, err := geneAlleles(string(gene), parsed)
			if err != nil {
				return nil, boundaryError(err)
			}
			genes = append(genes, Mhc2Gene{Name: gene, Zygosity: z, Alleles: geneAlls})
		}
		isoforms, err := mhc2Isoforms(molecule, genes)
		if err != nil {
			return nil, boundaryError(err)
		}
		f.logger.Debug("resolved MHC II molecule",
			zap.String("molecule", string(molecule)),
			zap.Int("isoforms", len(isoforms)))
		molecules = append(molecules, Mhc2{Name: molecule, Genes: genes, Isoforms: isoforms})
	}
	return molecules, nil
}

// boundaryError converts internal invariant failures into validation errors.
func boundaryError(err error) error {
	var ie *invariantError
	if errors.As(err, &ie) {
		return &DataValidationError{Message: ie.msg}
	}
	return err
}

// IsoformName names a paired alpha/beta isoform, e.g. HLA-DPA1*01:03-DPB1*13:01.
func IsoformName(alpha, beta MhcAllele) string {
	return alpha.Name + "-" + strings.TrimPrefix(beta.Name, humanPrefix)
}

func mhc2Isoforms(molecule Mhc2Name, genes []Mhc2Gene) ([]Mhc2Isoform, error) {
	var isoforms []Mhc2Isoform
	switch molecule {
	case MoleculeDR:
		if len(genes) > 1 {
			return nil, invariantf("More than one gene provided for MHC II DR")
		}
		// the DR alpha chain is invariant and not modeled
		for _, g := range genes {
			for _, a := range g.Alleles {
				beta := a
				isoforms = append(isoforms, Mhc2Isoform{Name: a.Name, Beta: &beta})
			}
		}
	case MoleculeDP:
		if len(genes) > 2 {
			return nil, invariantf("More than two genes provided for MHC II DP")
		}
		isoforms = pairedIsoforms(genes, GeneDPA1, GeneDPB1)
	case MoleculeDQ:
		if len(genes) > 2 {
			return nil, invariantf("More than two genes provided for MHC II DQ")
		}
		isoforms = pairedIsoforms(genes, GeneDQA1, GeneDQB1)
	case MoleculeH2A:
		if len(genes) > 2 {
			return nil, invariantf("More than two genes provided for H2A")
		}
		isoforms = unpairedIsoforms(genes, GeneH2A)
	case MoleculeH2E:
		if len(genes) > 2 {
			return nil, invariantf("More than two genes provided for H2E")
		}
		isoforms = unpairedIsoforms(genes, GeneH2E)
	}
	if isoforms == nil {
		isoforms = []Mhc2Isoform{}
	}
	return isoforms, nil
}

// pairedIsoforms is the cross product of alpha and beta alleles.
func pairedIsoforms(genes []Mhc2Gene, alphaGene, betaGene Mhc2GeneName) []Mhc2Isoform {
	var alphas, betas []MhcAllele
	for _, g := range genes {
		switch g.Name {
		case alphaGene:
			alphas = append(alphas, g.Alleles...)
		case betaGene:
			betas = append(betas, g.Alleles...)
		}
	}

	isoforms := make([]Mhc2Isoform, 0, len(alphas)*len(betas))
	for _, a := range alphas {
		for _, b := range betas {
			alpha, beta := a, b
			isoforms = append(isoforms, Mhc2Isoform{
				Name:  IsoformName(alpha, beta),
				Alpha: &alpha,
				Beta:  &beta,
			})
		}
	}
	return isoforms
}

// unpairedIsoforms gives each allele of gene its own isoform. Mouse H2 chains
// do not combine.
func unpairedIsoforms(genes []Mhc2Gene, gene Mhc2GeneName) []Mhc2Isoform {
	var isoforms []Mhc2Isoform
	for _, g := range genes {
		if g.Name != gene {
			continue
		}
		for _, a := range g.Alleles {
			alpha := a
			isoforms = append(isoforms, Mhc2Isoform{Name: a.Name, Alpha: &alpha})
		}
	}
	return isoforms
}
