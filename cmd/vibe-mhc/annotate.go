package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-mhc/internal/annotate"
	"github.com/inodb/vibe-mhc/internal/binding"
	"github.com/inodb/vibe-mhc/internal/duckdb"
	"github.com/inodb/vibe-mhc/internal/input"
	"github.com/inodb/vibe-mhc/internal/mhc"
	"github.com/inodb/vibe-mhc/internal/output"
)

type annotateOptions struct {
	patients     string
	candidates   string
	predictions  string
	outputFile   string
	outputFormat string
}

func newAnnotateCmd(loggerFor func() (*zap.Logger, error)) *cobra.Command {
	var opts annotateOptions

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotate neoantigen candidates with MHC binding scores",
		Long: `Annotate neoantigen candidates with patient-level MHC binding scores.

Each candidate is scored against its patient's modeled genotype using the
binding predictions reported for its wild-type and mutated xmers.`,
		Example: `  vibe-mhc annotate --patients patients.tsv --candidates candidates.tsv --predictions predictions.tsv
  vibe-mhc annotate --patients patients.tsv --candidates candidates.tsv.gz --predictions predictions.tsv.gz \
      --output-format wide -o annotations.tsv
  vibe-mhc annotate --patients p.tsv --candidates c.tsv --predictions pr.tsv --store results.duckdb`,
		Args: usageArgs(cobra.NoArgs),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, map[string]string{
				keyOrganism:        "organism",
				keyHLADatabase:     "hla-database",
				keyWorkers:         "workers",
				keyMhc1Binder:      "mhc1-binder-threshold",
				keyMhc1Alternative: "mhc1-alternative-threshold",
				keyMhc1WildType:    "mhc1-wild-type-threshold",
				keyMhc2Binder:      "mhc2-binder-threshold",
				keyMhc2Alternative: "mhc2-alternative-threshold",
				keyMhc2WildType:    "mhc2-wild-type-threshold",
				keyCachePath:       "cache",
				keyStorePath:       "store",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFor()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runAnnotate(cmd.OutOrStdout(), opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.patients, "patients", "", "Patients TSV (required)")
	f.StringVar(&opts.candidates, "candidates", "", "Neoantigen candidates TSV (required)")
	f.StringVar(&opts.predictions, "predictions", "", "Binding predictions TSV (required)")
	f.StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: stdout)")
	f.StringVarP(&opts.outputFormat, "output-format", "f", "tab", "Output format: tab, wide")
	f.String("organism", "human", "Organism: human or mouse")
	f.String("hla-database", "", "Allele list restricting known alleles (default: ~/.vibe-mhc/Allelelist.txt if present)")
	f.Int("workers", 0, "Concurrent workers (default: number of CPUs)")
	mhc1, mhc2 := binding.DefaultMhc1Thresholds, binding.DefaultMhc2Thresholds
	f.Float64("mhc1-binder-threshold", mhc1.Binder, "MHC-I rank at or below which a mutated epitope counts as a binder (CDN)")
	f.Float64("mhc1-alternative-threshold", mhc1.Alternative, "MHC-I rank at or below which a mutated epitope counts for ADN")
	f.Float64("mhc1-wild-type-threshold", mhc1.WildType, "MHC-I rank at or below which a wild-type epitope already binds (ADN)")
	f.Float64("mhc2-binder-threshold", mhc2.Binder, "MHC-II rank at or below which a mutated epitope counts as a binder (CDN)")
	f.Float64("mhc2-alternative-threshold", mhc2.Alternative, "MHC-II rank at or below which a mutated epitope counts for ADN")
	f.Float64("mhc2-wild-type-threshold", mhc2.WildType, "MHC-II rank at or below which a wild-type epitope already binds (ADN)")
	f.String("cache", "", "Directory caching parsed predictions between runs")
	f.String("store", "", "DuckDB file storing annotations of each run")

	for _, name := range []string{"patients", "candidates", "predictions"} {
		cmd.MarkFlagRequired(name)
	}

	return cmd
}

// bindFlags binds command flags to config keys. Binding happens per command
// because a key bound by several commands resolves to the last bound flag.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func runAnnotate(stdout io.Writer, opts annotateOptions, logger *zap.Logger) error {
	if opts.outputFormat != "tab" && opts.outputFormat != "wide" {
		return &usageError{err: fmt.Errorf("unknown output format %q", opts.outputFormat)}
	}

	db, err := loadDatabase(logger)
	if err != nil {
		return err
	}
	factory := mhc.NewFactory(db)
	factory.SetLogger(logger)

	records, err := input.ReadPatients(opts.patients)
	if err != nil {
		return fmt.Errorf("reading patients: %w", err)
	}
	patients, err := annotate.BuildPatients(factory, records, logger)
	if err != nil {
		return err
	}
	logger.Info("modeled patient genotypes",
		zap.Int("patients", len(patients)),
		zap.Int("skipped", len(records)-len(patients)))

	predictions, err := loadPredictions(opts.predictions, viper.GetString(keyCachePath), logger)
	if err != nil {
		return err
	}

	ann := annotate.NewAnnotator(predictions, patients, factory.Parser(), annotate.Options{
		Mhc1: binding.Thresholds{
			Binder:      viper.GetFloat64(keyMhc1Binder),
			Alternative: viper.GetFloat64(keyMhc1Alternative),
			WildType:    viper.GetFloat64(keyMhc1WildType),
		},
		Mhc2: binding.Thresholds{
			Binder:      viper.GetFloat64(keyMhc2Binder),
			Alternative: viper.GetFloat64(keyMhc2Alternative),
			WildType:    viper.GetFloat64(keyMhc2WildType),
		},
	})
	ann.SetLogger(logger)
	ann.SetWorkers(viper.GetInt(keyWorkers))

	reader, err := input.NewCandidateReader(opts.candidates)
	if err != nil {
		return fmt.Errorf("reading candidates: %w", err)
	}
	defer reader.Close()

	out := stdout
	if opts.outputFile != "" {
		f, closeOut, err := openOutput(opts.outputFile)
		if err != nil {
			return err
		}
		defer closeOut()
		out = f
	}

	var writer annotate.AnnotationWriter
	switch opts.outputFormat {
	case "wide":
		writer = output.NewWideWriter(out, ann.AnnotationNames())
	default:
		writer = output.NewTabWriter(out)
	}

	if storePath := viper.GetString(keyStorePath); storePath != "" {
		store, err := duckdb.Open(storePath)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := startRun(store, db.Organism, opts, logger)
		if err != nil {
			return err
		}
		writer = output.NewMultiWriter(writer, duckdb.NewWriter(store, run.ID))
	}

	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return ann.AnnotateAll(reader, writer)
}

// startRun records a new run in the store. Inputs already annotated by an
// earlier run are reported.
func startRun(store *duckdb.Store, organism mhc.Organism, opts annotateOptions, logger *zap.Logger) (duckdb.Run, error) {
	candidates, err := duckdb.StatFile(opts.candidates)
	if err != nil {
		return duckdb.Run{}, fmt.Errorf("stat candidates: %w", err)
	}
	predictions, err := duckdb.StatFile(opts.predictions)
	if err != nil {
		return duckdb.Run{}, fmt.Errorf("stat predictions: %w", err)
	}

	previous, found, err := store.FindRun(string(organism), candidates, predictions)
	if err != nil {
		return duckdb.Run{}, err
	}
	if found {
		logger.Info("inputs unchanged since earlier run",
			zap.String("run", previous.ID),
			zap.Time("started", previous.StartedAt))
	}

	run := duckdb.NewRun(string(organism), candidates, predictions)
	if err := store.RecordRun(run); err != nil {
		return duckdb.Run{}, err
	}
	logger.Info("recording annotations", zap.String("run", run.ID))
	return run, nil
}

// loadDatabase returns the reference of the configured organism, restricted to
// the configured or downloaded allele list.
func loadDatabase(logger *zap.Logger) (*mhc.Database, error) {
	db, err := mhc.DatabaseFor(viper.GetString(keyOrganism))
	if err != nil {
		return nil, err
	}

	path := viper.GetString(keyHLADatabase)
	if path == "" && db.Organism == mhc.Human {
		path = FindAlleleList()
	}
	if path == "" {
		return db, nil
	}

	if err := db.LoadAlleleList(path); err != nil {
		return nil, err
	}
	logger.Info("loaded allele list",
		zap.String("path", path),
		zap.Int("alleles", db.AlleleCount()))
	return db, nil
}

// loadPredictions reads the predictions file, going through the on-disk cache
// when a cache directory is configured.
func loadPredictions(path, cacheDir string, logger *zap.Logger) (*input.PredictionIndex, error) {
	if cacheDir == "" {
		idx, err := input.ReadPredictions(path)
		if err != nil {
			return nil, fmt.Errorf("reading predictions: %w", err)
		}
		return idx, nil
	}

	fp, err := duckdb.StatFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading predictions: %w", err)
	}
	pc := duckdb.NewPredictionCache(cacheDir)
	if pc.Valid(fp) {
		idx, err := pc.Load()
		if err == nil {
			logger.Info("loaded predictions from cache",
				zap.String("cache", cacheDir),
				zap.Int("predictions", idx.Len()))
			return idx, nil
		}
		logger.Warn("prediction cache unreadable, rereading predictions", zap.Error(err))
		pc.Clear()
	}

	idx, err := input.ReadPredictions(path)
	if err != nil {
		return nil, fmt.Errorf("reading predictions: %w", err)
	}
	if err := pc.Write(idx, fp); err != nil {
		logger.Warn("could not write prediction cache", zap.Error(err))
	}
	return idx, nil
}
