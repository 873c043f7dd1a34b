package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mhc/internal/annotate"
	"github.com/inodb/vibe-mhc/internal/input"
	"github.com/inodb/vibe-mhc/internal/mhc"
	"github.com/inodb/vibe-mhc/internal/output"
)

func newGenotypeCmd(loggerFor func() (*zap.Logger, error)) *cobra.Command {
	var (
		patients   string
		outputFile string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "genotype",
		Short: "Show modeled MHC genotypes of patients",
		Long: `Model the MHC Class I and Class II genotype of every patient: zygosity per
gene and the Class II isoforms of every molecule.`,
		Example: `  vibe-mhc genotype --patients patients.tsv
  vibe-mhc genotype --patients patients.tsv --format yaml
  vibe-mhc genotype --patients mice.tsv --organism mouse`,
		Args: usageArgs(cobra.NoArgs),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				keyOrganism:    "organism",
				keyHLADatabase: "hla-database",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "tab" && format != "yaml" {
				return &usageError{err: fmt.Errorf("unknown format %q", format)}
			}
			logger, err := loggerFor()
			if err != nil {
				return err
			}
			defer logger.Sync()

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, closeOut, err := openOutput(outputFile)
				if err != nil {
					return err
				}
				defer closeOut()
				out = f
			}
			return runGenotype(out, patients, format, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&patients, "patients", "", "Patients TSV (required)")
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.StringVarP(&format, "format", "f", "tab", "Output format: tab, yaml")
	f.String("organism", "human", "Organism: human or mouse")
	f.String("hla-database", "", "Allele list restricting known alleles (default: ~/.vibe-mhc/Allelelist.txt if present)")
	cmd.MarkFlagRequired("patients")

	return cmd
}

func runGenotype(out io.Writer, path, format string, logger *zap.Logger) error {
	db, err := loadDatabase(logger)
	if err != nil {
		return err
	}
	factory := mhc.NewFactory(db)
	factory.SetLogger(logger)

	records, err := input.ReadPatients(path)
	if err != nil {
		return fmt.Errorf("reading patients: %w", err)
	}
	patients, err := annotate.BuildPatients(factory, records, logger)
	if err != nil {
		return err
	}

	if format == "yaml" {
		return output.WriteGenotypesYAML(out, patients)
	}

	w := output.NewGenotypeWriter(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, p := range patients {
		if err := w.Write(p); err != nil {
			return err
		}
	}
	return w.Flush()
}
