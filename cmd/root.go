package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/actsafe/actsafe/internal/config"
	"github.com/actsafe/actsafe/internal/structural"
	"github.com/actsafe/actsafe/verify"
)

var (
	mode          string
	fixTags       string
	strictMode    bool
	solverTimeout time.Duration
	logLevel      string

	envCfg *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "actsafe",
	Short:         "actsafe - verify that repaired workflow files keep their semantics",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		envCfg, err = config.Load()
		if err != nil {
			return err
		}
		if logLevel == "" {
			logLevel = envCfg.LogLevel
		}
		logger, err = newLogger(logLevel)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(fixesCmd)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// addVerifyFlags registers the flags shared by verify and batch.
func addVerifyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&mode, "mode", "", "Verification mode: structural, logical, or hybrid")
	cmd.Flags().StringVar(&fixTags, "fixes", "", "Comma-separated list of permitted fix tags")
	cmd.Flags().BoolVar(&strictMode, "strict", false, "Require exact equivalence; permitted fixes excuse nothing")
	cmd.Flags().DurationVar(&solverTimeout, "solver-timeout", 0, "Deadline for a single solver query")
}

// buildOptions merges flags over environment defaults.
func buildOptions() (verify.Options, error) {
	opts := verify.Options{
		Mode:             verify.Mode(envCfg.Mode),
		StrictMode:       strictMode,
		SolverTimeout:    envCfg.SolverTimeout,
		StructuralWeight: envCfg.StructuralWeight,
		LogicalWeight:    envCfg.LogicalWeight,
	}
	if mode != "" {
		opts.Mode = verify.Mode(mode)
	}
	if solverTimeout > 0 {
		opts.SolverTimeout = solverTimeout
	}
	if fixTags != "" {
		for _, tag := range strings.Split(fixTags, ",") {
			opts.PermittedFixes = append(opts.PermittedFixes, strings.TrimSpace(tag))
		}
	}
	if envCfg.RewriteRules != "" {
		rewrites, err := structural.LoadRewrites(envCfg.RewriteRules)
		if err != nil {
			return opts, fmt.Errorf("load rewrite rules: %w", err)
		}
		opts.Rewrites = rewrites
	}
	return opts, nil
}
