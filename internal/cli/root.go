package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/answer-detector/app"
	"github.com/upb/answer-detector/config"
	"github.com/upb/answer-detector/internal/observability"
	"go.uber.org/zap"
)

// flags shared by every subcommand
type rootFlags struct {
	chainFile string
	logLevel  string
	logFormat string
	seed      uint64
}

// Execute runs the detector command line and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the detector command tree
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "detector",
		Short: "Human or AI answer detector",
		Long: `Detector classifies interview answers as written by a human or an AI.
Each question is tried against an ordered chain of classifier backends and
the first backend to answer wins.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.chainFile, "chain", "", "YAML classifier chain file (overrides CLASSIFIER_CHAIN_FILE)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: json or text (overrides LOG_FORMAT)")
	rootCmd.PersistentFlags().Uint64Var(&flags.seed, "seed", 0, "random seed for simulated backends, 0 picks one (overrides CLASSIFIER_SEED)")

	rootCmd.AddCommand(
		newServeCmd(flags),
		newClassifyCmd(flags),
		newBackendsCmd(flags),
	)

	return rootCmd
}

// bootstrap loads configuration, applies flag overrides and wires the
// application dependencies
func bootstrap(ctx context.Context, flags *rootFlags) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.chainFile != "" {
		chain, err := config.LoadChainFile(flags.chainFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier chain: %w", err)
		}
		cfg.Classifiers.ChainFile = flags.chainFile
		cfg.Classifiers.Chain = chain
	}
	if flags.logLevel != "" {
		cfg.Observability.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.LogFormat = flags.logFormat
	}
	if flags.seed != 0 {
		cfg.Classifiers.Seed = flags.seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger.With(zap.String("environment", cfg.Environment)))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}
