package annotate

import (
	"errors"

	"go.uber.org/zap"

	"github.com/inodb/vibe-mhc/internal/input"
	"github.com/inodb/vibe-mhc/internal/mhc"
)

// BuildPatients models the genotype of every patient record. A patient whose
// allele data does not validate is logged and left out, so its candidates fail
// individually later. Any other error aborts.
func BuildPatients(f *mhc.Factory, records []input.PatientRecord, logger *zap.Logger) ([]*mhc.Patient, error) {
	patients := make([]*mhc.Patient, 0, len(records))
	for _, r := range records {
		p, err := f.BuildPatient(r.Identifier, r.IsRNAAvailable, r.TumorType, r.Mhc1Alleles, r.Mhc2Alleles)
		if err != nil {
			var dve *mhc.DataValidationError
			if !errors.As(err, &dve) {
				return nil, err
			}
			logger.Warn("skipping patient",
				zap.String("patient", r.Identifier),
				zap.Error(err))
			continue
		}
		patients = append(patients, p)
	}
	return patients, nil
}
