package output

import (
	"bufio"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-mhc/internal/mhc"
)

// GenotypeWriter writes modeled patient genotypes in tab-delimited format.
// Every gene gets a row; every Class II molecule gets an extra row listing its
// isoforms.
type GenotypeWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewGenotypeWriter creates a new genotype writer.
func NewGenotypeWriter(w io.Writer) *GenotypeWriter {
	return &GenotypeWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"patientIdentifier",
			"class",
			"molecule",
			"gene",
			"zygosity",
			"alleles",
			"isoforms",
		},
	}
}

// WriteHeader writes the header line.
func (gw *GenotypeWriter) WriteHeader() error {
	return gw.writeRow(gw.columns)
}

// Write writes the genotype rows of a patient.
func (gw *GenotypeWriter) Write(p *mhc.Patient) error {
	for _, g := range p.Mhc1 {
		if err := gw.writeRow([]string{
			p.Identifier, mhc.ClassI.String(), "-", string(g.Name),
			g.Zygosity.String(), joinAlleles(g.Alleles), "-",
		}); err != nil {
			return err
		}
	}
	for _, m := range p.Mhc2 {
		for _, g := range m.Genes {
			if err := gw.writeRow([]string{
				p.Identifier, mhc.ClassII.String(), string(m.Name), string(g.Name),
				g.Zygosity.String(), joinAlleles(g.Alleles), "-",
			}); err != nil {
				return err
			}
		}
		names := make([]string, len(m.Isoforms))
		for i, iso := range m.Isoforms {
			names[i] = iso.Name
		}
		if err := gw.writeRow([]string{
			p.Identifier, mhc.ClassII.String(), string(m.Name), "-",
			"-", "-", orDash(strings.Join(names, ",")),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (gw *GenotypeWriter) Flush() error {
	return gw.w.Flush()
}

func (gw *GenotypeWriter) writeRow(values []string) error {
	_, err := gw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

func joinAlleles(alleles []mhc.MhcAllele) string {
	return orDash(strings.Join(alleleNames(alleles), ","))
}

type yamlGene struct {
	Gene     string   `yaml:"gene"`
	Zygosity string   `yaml:"zygosity"`
	Alleles  []string `yaml:"alleles"`
}

type yamlMolecule struct {
	Molecule string     `yaml:"molecule"`
	Genes    []yamlGene `yaml:"genes"`
	Isoforms []string   `yaml:"isoforms"`
}

type yamlPatient struct {
	Identifier     string         `yaml:"identifier"`
	TumorType      string         `yaml:"tumorType,omitempty"`
	IsRNAAvailable bool           `yaml:"isRnaAvailable"`
	Mhc1           []yamlGene     `yaml:"mhc1"`
	Mhc2           []yamlMolecule `yaml:"mhc2"`
}

func alleleNames(alleles []mhc.MhcAllele) []string {
	names := make([]string, len(alleles))
	for i, a := range alleles {
		names[i] = a.Name
	}
	return names
}

// WriteGenotypesYAML writes modeled patient genotypes as a YAML document.
func WriteGenotypesYAML(w io.Writer, patients []*mhc.Patient) error {
	doc := make([]yamlPatient, 0, len(patients))
	for _, p := range patients {
		yp := yamlPatient{
			Identifier:     p.Identifier,
			TumorType:      p.TumorType,
			IsRNAAvailable: p.IsRNAAvailable,
			Mhc1:           []yamlGene{},
			Mhc2:           []yamlMolecule{},
		}
		for _, g := range p.Mhc1 {
			yp.Mhc1 = append(yp.Mhc1, yamlGene{string(g.Name), g.Zygosity.String(), alleleNames(g.Alleles)})
		}
		for _, m := range p.Mhc2 {
			ym := yamlMolecule{Molecule: string(m.Name), Isoforms: []string{}}
			for _, g := range m.Genes {
				ym.Genes = append(ym.Genes, yamlGene{string(g.Name), g.Zygosity.String(), alleleNames(g.Alleles)})
			}
			for _, iso := range m.Isoforms {
				ym.Isoforms = append(ym.Isoforms, iso.Name)
			}
			yp.Mhc2 = append(yp.Mhc2, ym)
		}
		doc = append(doc, yp)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
