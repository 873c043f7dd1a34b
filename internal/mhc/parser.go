package mhc

import (
	"regexp"
	"strings"
)

var (
	// HLA-A*02:01, A*02:01:01, HLA-A02:01, A0201, HLA-DRB1*04:02:01:01N
	humanAllelePattern = regexp.MustCompile(`^(?:HLA-)?([A-Z]+[0-9]*)\*?([0-9]{2,3}):?([0-9]{2,3})((?::[0-9]{2,3})*)([A-Z]?)$`)
	// H2-Kb, H2Kd, H-2Db, H2-IAb, H2IEd
	mouseAllelePattern = regexp.MustCompile(`^H-?2-?(I[AE]|[KDL])([a-z0-9]+)$`)
)

const (
	humanPrefix = "HLA-"
	mousePrefix = "H2-"
)

// Parser turns raw allele strings into MhcAllele values checked against a
// reference database.
type Parser struct {
	db *Database
}

// NewParser creates a parser for the given reference database.
func NewParser(db *Database) *Parser {
	return &Parser{db: db}
}

// Database returns the reference the parser validates against.
func (p *Parser) Database() *Database {
	return p.db
}

// ParseAllele parses a single allele. Empty input is rejected; callers
// holding lists with empty entries use ParseAlleles.
func (p *Parser) ParseAllele(raw string) (MhcAllele, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return MhcAllele{}, validationf("empty MHC allele")
	}

	var (
		a   MhcAllele
		err error
	)
	if p.db.Organism == Mouse {
		a, err = parseMouseAllele(s)
	} else {
		a, err = parseHumanAllele(s)
	}
	if err != nil {
		return MhcAllele{}, err
	}

	if p.db.HasAlleleList() && !p.db.Knows(a.Name) {
		return MhcAllele{}, validationf("allele %s not found in the %s reference database", a.Name, p.db.Organism)
	}
	return a, nil
}

// ParseAlleles parses every non-empty string in raw. Empty strings come from
// empty input columns and are dropped here so they never reach ParseAllele.
func (p *Parser) ParseAlleles(raw []string) ([]MhcAllele, error) {
	alleles := make([]MhcAllele, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		a, err := p.ParseAllele(r)
		if err != nil {
			return nil, err
		}
		alleles = append(alleles, a)
	}
	return alleles, nil
}

func parseHumanAllele(s string) (MhcAllele, error) {
	m := humanAllelePattern.FindStringSubmatch(strings.ToUpper(s))
	if m == nil {
		return MhcAllele{}, validationf("invalid HLA allele %q", s)
	}
	gene, group, protein, extra, suffix := m[1], m[2], m[3], m[4], m[5]
	name := humanPrefix + gene + "*" + group + ":" + protein
	return MhcAllele{
		Name:     name,
		FullName: name + extra + suffix,
		Gene:     gene,
		Group:    group,
		Protein:  protein,
	}, nil
}

func parseMouseAllele(s string) (MhcAllele, error) {
	m := mouseAllelePattern.FindStringSubmatch(s)
	if m == nil {
		return MhcAllele{}, validationf("invalid H2 allele %q", s)
	}
	label, haplotype := m[1], m[2]

	gene := label
	switch label {
	case "IA":
		gene = string(GeneH2A)
	case "IE":
		gene = string(GeneH2E)
	}

	name := mousePrefix + label + haplotype
	return MhcAllele{
		Name:     name,
		FullName: name,
		Gene:     gene,
		Protein:  haplotype,
	}, nil
}

// ValidateMhc1Alleles checks that every allele belongs to a Class I gene.
func ValidateMhc1Alleles(alleles []MhcAllele) error {
	for _, a := range alleles {
		if _, err := ParseMhc1GeneName(a.Gene); err != nil {
			return validationf("MHC I allele is not valid %s at %s", a.Gene, a.FullName)
		}
	}
	return nil
}

// ValidateMhc2Alleles checks that every allele belongs to a Class II gene.
func ValidateMhc2Alleles(alleles []MhcAllele) error {
	for _, a := range alleles {
		if a.Gene == "" {
			return validationf("Gene from MHC II allele is empty")
		}
		if _, err := ParseMhc2GeneName(a.Gene); err != nil {
			return validationf("MHC II allele is not valid %s at %s", a.Gene, a.FullName)
		}
	}
	return nil
}
