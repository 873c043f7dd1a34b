// Package mhc models patient MHC Class I and Class II genotypes.
package mhc

// Class distinguishes MHC Class I from Class II.
type Class int

const (
	ClassI Class = iota + 1
	ClassII
)

func (c Class) String() string {
	switch c {
	case ClassI:
		return "I"
	case ClassII:
		return "II"
	default:
		return "unknown"
	}
}

// Zygosity is the copy-number state of one gene. It is always derived from
// the alleles observed for that gene.
type Zygosity int

const (
	Loss Zygosity = iota
	Hemizygous
	Heterozygous
	Homozygous
)

func (z Zygosity) String() string {
	switch z {
	case Homozygous:
		return "HOMOZYGOUS"
	case Heterozygous:
		return "HETEROZYGOUS"
	case Hemizygous:
		return "HEMIZYGOUS"
	default:
		return "LOSS"
	}
}

// Mhc1GeneName is a Class I gene.
type Mhc1GeneName string

const (
	GeneA Mhc1GeneName = "A"
	GeneB Mhc1GeneName = "B"
	GeneC Mhc1GeneName = "C"
	// mouse
	GeneK Mhc1GeneName = "K"
	GeneD Mhc1GeneName = "D"
	GeneL Mhc1GeneName = "L"
)

var mhc1GeneNames = map[Mhc1GeneName]bool{
	GeneA: true, GeneB: true, GeneC: true,
	GeneK: true, GeneD: true, GeneL: true,
}

// ParseMhc1GeneName checks that s names a known Class I gene.
func ParseMhc1GeneName(s string) (Mhc1GeneName, error) {
	g := Mhc1GeneName(s)
	if !mhc1GeneNames[g] {
		return "", validationf("unknown MHC I gene %q", s)
	}
	return g, nil
}

// Mhc2GeneName is a Class II gene.
type Mhc2GeneName string

const (
	GeneDRB1 Mhc2GeneName = "DRB1"
	GeneDPA1 Mhc2GeneName = "DPA1"
	GeneDPB1 Mhc2GeneName = "DPB1"
	GeneDQA1 Mhc2GeneName = "DQA1"
	GeneDQB1 Mhc2GeneName = "DQB1"
	// mouse
	GeneH2A Mhc2GeneName = "H2A"
	GeneH2E Mhc2GeneName = "H2E"
)

var mhc2GeneNames = map[Mhc2GeneName]bool{
	GeneDRB1: true, GeneDPA1: true, GeneDPB1: true,
	GeneDQA1: true, GeneDQB1: true,
	GeneH2A: true, GeneH2E: true,
}

// ParseMhc2GeneName checks that s names a known Class II gene.
func ParseMhc2GeneName(s string) (Mhc2GeneName, error) {
	g := Mhc2GeneName(s)
	if !mhc2GeneNames[g] {
		return "", validationf("unknown MHC II gene %q", s)
	}
	return g, nil
}

// Mhc2Name is a Class II molecule family.
type Mhc2Name string

const (
	MoleculeDR  Mhc2Name = "DR"
	MoleculeDP  Mhc2Name = "DP"
	MoleculeDQ  Mhc2Name = "DQ"
	MoleculeH2A Mhc2Name = "H2A_molecule"
	MoleculeH2E Mhc2Name = "H2E_molecule"
)

// GenesByMolecule lists the genes that compose each Class II molecule family.
var GenesByMolecule = map[Mhc2Name][]Mhc2GeneName{
	MoleculeDR:  {GeneDRB1},
	MoleculeDP:  {GeneDPA1, GeneDPB1},
	MoleculeDQ:  {GeneDQA1, GeneDQB1},
	MoleculeH2A: {GeneH2A},
	MoleculeH2E: {GeneH2E},
}

// ParseMhc2Name checks that s names a known Class II molecule.
func ParseMhc2Name(s string) (Mhc2Name, error) {
	m := Mhc2Name(s)
	if _, ok := GenesByMolecule[m]; !ok {
		return "", validationf("unknown MHC II molecule %q", s)
	}
	return m, nil
}

// MhcAllele is one parsed allele.
type MhcAllele struct {
	Name     string // two-field name, e.g. HLA-A*02:01 or H2-Kb
	FullName string // name as typed, normalized, with any extra fields
	Gene     string // A, DRB1, H2A, ...
	Group    string // allele group, empty for mouse alleles
	Protein  string // protein field, or the haplotype letter for mouse alleles
}

// Mhc1 is the genotype of one Class I gene.
type Mhc1 struct {
	Name     Mhc1GeneName
	Zygosity Zygosity
	Alleles  []MhcAllele
}

// Mhc2Gene is the genotype of one Class II gene.
type Mhc2Gene struct {
	Name     Mhc2GeneName
	Zygosity Zygosity
	Alleles  []MhcAllele
}

// Mhc2Isoform is one functional Class II molecule. A nil chain stands for a
// chain that is not modeled: the invariant DR alpha chain, or the unpaired
// chain of the mouse H2A/H2E molecules.
type Mhc2Isoform struct {
	Name  string
	Alpha *MhcAllele
	Beta  *MhcAllele
}

// Mhc2 is a Class II molecule family with its genes and derived isoforms.
type Mhc2 struct {
	Name     Mhc2Name
	Genes    []Mhc2Gene
	Isoforms []Mhc2Isoform
}

// Patient holds the patient-level data needed for annotation.
type Patient struct {
	Identifier     string
	IsRNAAvailable bool
	TumorType      string
	Mhc1           []Mhc1
	Mhc2           []Mhc2
}

// Mhc1AlleleNames returns the distinct Class I allele names of the patient.
func (p *Patient) Mhc1AlleleNames() map[string]bool {
	names := make(map[string]bool)
	for _, g := range p.Mhc1 {
		for _, a := range g.Alleles {
			names[a.Name] = true
		}
	}
	return names
}

// Mhc2IsoformNames returns the distinct Class II isoform names of the patient.
func (p *Patient) Mhc2IsoformNames() map[string]bool {
	names := make(map[string]bool)
	for _, m := range p.Mhc2 {
		for _, iso := range m.Isoforms {
			names[iso.Name] = true
		}
	}
	return names
}
