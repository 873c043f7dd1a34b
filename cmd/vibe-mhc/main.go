// Package main provides the vibe-mhc command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-mhc/internal/binding"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config keys shared by flags, environment and ~/.vibe-mhc.yaml.
const (
	keyOrganism        = "organism"
	keyHLADatabase     = "hla_database"
	keyWorkers         = "workers"
	keyMhc1Binder      = "thresholds.mhc1.binder"
	keyMhc1Alternative = "thresholds.mhc1.alternative"
	keyMhc1WildType    = "thresholds.mhc1.wild_type"
	keyMhc2Binder      = "thresholds.mhc2.binder"
	keyMhc2Alternative = "thresholds.mhc2.alternative"
	keyMhc2WildType    = "thresholds.mhc2.wild_type"
	keyCachePath       = "cache.path"
	keyStorePath       = "store.path"
	configFileBaseName = ".vibe-mhc"
)

// usageError marks errors caused by invalid command-line usage.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", root.Name())
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "vibe-mhc",
		Short: "MHC genotype modeling and neoantigen binding annotation",
		Long: `vibe-mhc models patient MHC Class I and Class II genotypes and aggregates
per-allele binding predictions into patient-level neoantigen annotations
(PHBR-I, PHBR-II, best epitopes and generator rates).`,
		Example: `  # Download the IPD-IMGT/HLA allele list (one-time setup)
  vibe-mhc download

  # Annotate neoantigen candidates
  vibe-mhc annotate --patients patients.tsv --candidates candidates.tsv --predictions predictions.tsv

  # Show modeled genotypes
  vibe-mhc genotype --patients patients.tsv`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetVersionTemplate("vibe-mhc version {{.Version}}\n")

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-mhc.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	loggerFor := func() (*zap.Logger, error) {
		return newLogger(verbose)
	}

	root.AddCommand(newAnnotateCmd(loggerFor))
	root.AddCommand(newGenotypeCmd(loggerFor))
	root.AddCommand(newDownloadCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vibe-mhc version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// usageArgs reports positional argument errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// initConfig reads the config file and environment. A missing default config
// file is not an error.
func initConfig(cfgFile string) error {
	viper.SetDefault(keyOrganism, "human")
	viper.SetDefault(keyWorkers, 0)
	viper.SetDefault(keyMhc1Binder, binding.DefaultMhc1Thresholds.Binder)
	viper.SetDefault(keyMhc1Alternative, binding.DefaultMhc1Thresholds.Alternative)
	viper.SetDefault(keyMhc1WildType, binding.DefaultMhc1Thresholds.WildType)
	viper.SetDefault(keyMhc2Binder, binding.DefaultMhc2Thresholds.Binder)
	viper.SetDefault(keyMhc2Alternative, binding.DefaultMhc2Thresholds.Alternative)
	viper.SetDefault(keyMhc2WildType, binding.DefaultMhc2Thresholds.WildType)

	viper.SetEnvPrefix("VIBE_MHC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(configFileBaseName)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// newLogger builds a console logger on stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// defaultDataDir returns ~/.vibe-mhc, or "" when the home directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configFileBaseName)
}

// openOutput returns stdout for an empty path, or a created file.
func openOutput(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}
