package mhc

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/brentp/xopen"
)

// Organism selects the species-specific reference.
type Organism string

const (
	Human Organism = "human"
	Mouse Organism = "mouse"
)

// Database is the reference MHC database: which genes and molecules exist for
// an organism and, optionally, which alleles are known.
type Database struct {
	Organism      Organism
	Mhc1Genes     []Mhc1GeneName
	Mhc2Molecules []Mhc2Name

	// known holds two-field allele names. When empty, any well-formed allele
	// is accepted.
	known map[string]bool
}

// HumanDatabase returns the HLA reference without an allele list.
func HumanDatabase() *Database {
	return &Database{
		Organism:      Human,
		Mhc1Genes:     []Mhc1GeneName{GeneA, GeneB, GeneC},
		Mhc2Molecules: []Mhc2Name{MoleculeDR, MoleculeDP, MoleculeDQ},
		known:         make(map[string]bool),
	}
}

// MouseDatabase returns the H2 reference without an allele list.
func MouseDatabase() *Database {
	return &Database{
		Organism:      Mouse,
		Mhc1Genes:     []Mhc1GeneName{GeneK, GeneD, GeneL},
		Mhc2Molecules: []Mhc2Name{MoleculeH2A, MoleculeH2E},
		known:         make(map[string]bool),
	}
}

// DatabaseFor returns the reference for the named organism.
func DatabaseFor(organism string) (*Database, error) {
	switch Organism(strings.ToLower(strings.TrimSpace(organism))) {
	case Human:
		return HumanDatabase(), nil
	case Mouse:
		return MouseDatabase(), nil
	default:
		return nil, &ConfigurationError{Message: "unsupported organism " + strings.TrimSpace(organism) + " (expected human or mouse)"}
	}
}

// GenesFor returns the genes of a molecule family.
func (d *Database) GenesFor(molecule Mhc2Name) []Mhc2GeneName {
	return GenesByMolecule[molecule]
}

// AddAlleles registers known alleles by their two-field name.
func (d *Database) AddAlleles(names ...string) {
	for _, n := range names {
		d.known[n] = true
	}
}

// HasAlleleList reports whether allele membership is enforced.
func (d *Database) HasAlleleList() bool {
	return len(d.known) > 0
}

// Knows reports whether the allele name is in the allele list.
func (d *Database) Knows(name string) bool {
	return d.known[name]
}

// AlleleCount returns the size of the allele list.
func (d *Database) AlleleCount() int {
	return len(d.known)
}

// LoadAlleleList reads one allele per line (plain or gzipped) and registers
// the two-field name of each. Blank lines and lines starting with # are skipped.
// The IPD-IMGT/HLA Allelelist.txt layout is also accepted; its unparseable
// rows are skipped.
func (d *Database) LoadAlleleList(path string) error {
	f, err := xopen.Ropen(path)
	if err != nil {
		return &ConfigurationError{Message: "open allele list " + path, Err: err}
	}
	defer f.Close()

	// Parse without membership checks while the list is being built.
	p := &Parser{db: &Database{Organism: d.Organism, known: map[string]bool{}}}

	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// IPD-IMGT/HLA Allelelist.txt rows are "AlleleID,Allele"
		id, raw, csv := strings.Cut(line, ",")
		if csv {
			if id == "AlleleID" {
				continue
			}
			line = raw
		}
		a, err := p.ParseAllele(line)
		if err != nil && csv {
			// genes outside the nomenclature handled here, e.g. MICA*001
			continue
		}
		if err != nil {
			return &ConfigurationError{
				Message: fmt.Sprintf("allele list %s line %d", path, lineNumber),
				Err:     err,
			}
		}
		d.known[a.Name] = true
	}
	if err := scanner.Err(); err != nil {
		return &ConfigurationError{Message: "read allele list " + path, Err: err}
	}
	return nil
}
