package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spaun-sim/stimseq/internal/config"
	"github.com/spaun-sim/stimseq/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stimseq",
		Short: "Stimulus sequence compiler for Spaun experiments",
		Long: `stimseq compiles Spaun task sequences into timed stimulus schedules.

It expands multiplicative groups and custom task shorthands, resolves
every step to a vocabulary label or image index, and answers which
stimulus is shown at any simulated time. Compiled schedules are kept in
.stimseq/stimseq.db under the project root.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.stimseq/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newParseCmd(),
		newLookupCmd(),
		newRunCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

// env is the per-invocation state shared by subcommands.
type env struct {
	cfg     *config.Config
	root    string
	jsonOut bool
	logger  *slog.Logger
	events  *logging.EventLogger
}

// loadEnv reads the global flags and configuration, and opens the loggers.
// The operational log goes to stderr; events go to <data dir>/events.jsonl
// at debug level and below.
func loadEnv(cmd *cobra.Command) (*env, error) {
	root, _ := cmd.Flags().GetString("root")
	jsonOut, _ := cmd.Flags().GetBool("json")
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &env{
		cfg:     cfg,
		root:    root,
		jsonOut: jsonOut,
		logger:  logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr()),
		events:  logging.NewEventLogger(cfg.DataPath(root), cfg.Logging.Level),
	}, nil
}

func (e *env) Close() {
	e.events.Close()
}
