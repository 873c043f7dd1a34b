// Package annotate annotates neoantigen candidates with patient-level MHC
// binding scores.
package annotate

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-mhc/internal/annotation"
	"github.com/inodb/vibe-mhc/internal/binding"
	"github.com/inodb/vibe-mhc/internal/input"
	"github.com/inodb/vibe-mhc/internal/mhc"
)

// PredictionLookup defines the interface for finding the predictions of an
// xmer.
type PredictionLookup interface {
	Lookup(class mhc.Class, sequence string) []binding.Prediction
}

// CandidateSource yields candidates until it returns nil, nil.
type CandidateSource interface {
	Next() (*input.Candidate, error)
}

// Options configures the generator-rate thresholds of each class.
type Options struct {
	Mhc1 binding.Thresholds
	Mhc2 binding.Thresholds
}

// DefaultOptions uses the default thresholds of each class.
var DefaultOptions = Options{Mhc1: binding.DefaultMhc1Thresholds, Mhc2: binding.DefaultMhc2Thresholds}

// Annotator annotates candidates of known patients.
type Annotator struct {
	predictions PredictionLookup
	patients    map[string]*mhc.Patient
	parser      *mhc.Parser
	mhc1        *binding.Mhc1Binder
	mhc2        *binding.Mhc2Binder
	workers     int
	logger      *zap.Logger
}

// NewAnnotator creates an annotator over the given predictions and patients.
// The parser normalizes allele names reported by the predictor.
func NewAnnotator(predictions PredictionLookup, patients []*mhc.Patient, parser *mhc.Parser, opts Options) *Annotator {
	byID := make(map[string]*mhc.Patient, len(patients))
	for _, p := range patients {
		byID[p.Identifier] = p
	}
	return &Annotator{
		predictions: predictions,
		patients:    byID,
		parser:      parser,
		mhc1:        binding.NewMhc1Binder(opts.Mhc1),
		mhc2:        binding.NewMhc2Binder(opts.Mhc2),
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
	a.mhc1.SetLogger(l)
	a.mhc2.SetLogger(l)
}

// SetWorkers sets the number of concurrent workers used by AnnotateAll.
// Zero uses runtime.NumCPU().
func (a *Annotator) SetWorkers(n int) {
	a.workers = n
}

// AnnotationNames lists the annotations of every candidate, in emission order.
func (a *Annotator) AnnotationNames() []string {
	return append(a.mhc1.AnnotationNames(), a.mhc2.AnnotationNames()...)
}

// Annotate computes the Class I and Class II annotations of one candidate.
func (a *Annotator) Annotate(c *input.Candidate) ([]annotation.Annotation, error) {
	patient, ok := a.patients[c.PatientIdentifier]
	if !ok {
		return nil, &mhc.DataValidationError{Message: fmt.Sprintf("patient %s not found", c.PatientIdentifier)}
	}
	m, err := binding.NewMutation(c.WildTypeXmer, c.MutatedXmer)
	if err != nil {
		return nil, err
	}

	r1 := a.mhc1.Run(m, patient.Mhc1,
		a.lookup(mhc.ClassI, m.MutatedXmer),
		a.lookup(mhc.ClassI, m.WildTypeXmer))
	r2 := a.mhc2.Run(m, patient.Mhc2,
		a.lookup(mhc.ClassII, m.MutatedXmer),
		a.lookup(mhc.ClassII, m.WildTypeXmer))

	anns := a.mhc1.Annotations(r1)
	return append(anns, a.mhc2.Annotations(r2)...), nil
}

// lookup returns the predictions of an xmer with allele names rewritten to
// the names used by the genotype model.
func (a *Annotator) lookup(class mhc.Class, sequence string) []binding.Prediction {
	if sequence == "" {
		return nil
	}
	preds := a.predictions.Lookup(class, sequence)
	if len(preds) == 0 {
		return nil
	}
	out := make([]binding.Prediction, len(preds))
	for i, p := range preds {
		p.Allele = a.normalizeAllele(class, p.Allele)
		out[i] = p
	}
	return out
}

// normalizeAllele maps predictor spellings such as HLA-A02:01, DRB1_0402 or
// HLA-DPA10103-DPB11301 onto canonical names. Unparseable names are kept.
func (a *Annotator) normalizeAllele(class mhc.Class, name string) string {
	if a.parser == nil {
		return name
	}
	spelled := strings.Replace(name, "_", "*", 1)
	if allele, err := a.parser.ParseAllele(spelled); err == nil {
		return allele.Name
	}
	if class != mhc.ClassII {
		return name
	}
	chains := strings.Split(strings.TrimPrefix(name, "HLA-"), "-")
	if len(chains) != 2 {
		return name
	}
	alpha, err := a.parser.ParseAllele(chains[0])
	if err != nil {
		return name
	}
	beta, err := a.parser.ParseAllele(chains[1])
	if err != nil {
		return name
	}
	return mhc.IsoformName(alpha, beta)
}

// AnnotateAll annotates all candidates from a source. Candidates that fail are
// logged and skipped.
func (a *Annotator) AnnotateAll(source CandidateSource, writer AnnotationWriter) error {
	workers := a.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	items := make(chan WorkItem, 2*workers)
	var readErr error
	candidateCount := 0

	go func() {
		defer close(items)
		for seq := 0; ; seq++ {
			c, err := source.Next()
			if err != nil {
				readErr = fmt.Errorf("read candidate: %w", err)
				return
			}
			if c == nil {
				return
			}
			candidateCount++
			items <- WorkItem{Seq: seq, Candidate: c}
		}
	}()

	results := a.ParallelAnnotate(items, workers)

	failed := 0
	if err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			failed++
			a.logger.Warn("failed to annotate candidate",
				zap.String("candidate", r.Candidate.Identifier),
				zap.String("patient", r.Candidate.PatientIdentifier),
				zap.Error(r.Err))
			return nil
		}
		if err := writer.Write(r.Candidate, r.Anns); err != nil {
			return fmt.Errorf("write annotations: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if readErr != nil {
		return readErr
	}

	a.logger.Info("annotated candidates",
		zap.Int("candidates", candidateCount),
		zap.Int("failed", failed))

	return writer.Flush()
}

// AnnotationWriter defines the interface for writing annotations.
type AnnotationWriter interface {
	WriteHeader() error
	Write(c *input.Candidate, anns []annotation.Annotation) error
	Flush() error
}
