package input

import (
	"io"
	"strconv"
)

// Patients TSV column names.
const (
	ColIdentifier     = "identifier"
	ColMhc1Alleles    = "mhcIAlleles"
	ColMhc2Alleles    = "mhcIIAlleles"
	ColTumorType      = "tumorType"
	ColIsRNAAvailable = "isRnaAvailable"
)

// PatientRecord is one row of the patients file, before the genotype is
// modeled.
type PatientRecord struct {
	Identifier     string
	Mhc1Alleles    []string
	Mhc2Alleles    []string
	TumorType      string
	IsRNAAvailable bool
}

// ReadPatients reads all patients of a patients TSV. Identifiers must be
// unique.
func ReadPatients(path string) ([]PatientRecord, error) {
	t, err := openTable(path, ColIdentifier)
	if err != nil {
		return nil, err
	}
	defer t.Close()

	if !t.has(ColMhc1Alleles) && !t.has(ColMhc2Alleles) {
		return nil, t.errorf("one of '%s' or '%s' is required", ColMhc1Alleles, ColMhc2Alleles)
	}

	var patients []PatientRecord
	seen := make(map[string]bool)
	for {
		fields, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		p := PatientRecord{
			Identifier:  t.field(fields, ColIdentifier),
			Mhc1Alleles: splitList(t.field(fields, ColMhc1Alleles)),
			Mhc2Alleles: splitList(t.field(fields, ColMhc2Alleles)),
			TumorType:   t.field(fields, ColTumorType),
		}
		if p.Identifier == "" {
			return nil, t.errorf("empty patient identifier")
		}
		if seen[p.Identifier] {
			return nil, t.errorf("duplicate patient identifier %s", p.Identifier)
		}
		seen[p.Identifier] = true

		if rna := t.field(fields, ColIsRNAAvailable); rna != "" {
			p.IsRNAAvailable, err = strconv.ParseBool(rna)
			if err != nil {
				return nil, t.errorf("invalid %s: %s", ColIsRNAAvailable, rna)
			}
		}
		patients = append(patients, p)
	}
	return patients, nil
}
