// Package commands implements the docsum command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/config"
)

var (
	configPath    string
	verbose       bool
	backend       string
	checkpointDir string
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsum",
		Short: "Summarize long documents with resumable checkpoints",
		Long: `docsum splits a document into chunks, summarizes each chunk with a
language model and joins the results. Progress is checkpointed after every
chunk, so an interrupted run picks up where it stopped when rerun on the
same content.

Configuration comes from an optional YAML file (--config or DOCSUM_CONFIG),
DOCSUM_* environment variables and a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "Checkpoint backend (file, sqlite, postgres, pathstore, memory)")
	cmd.PersistentFlags().StringVar(&checkpointDir, "checkpoint-dir", "", "Directory for the file checkpoint backend")

	cmd.AddCommand(NewSummarizeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewCheckpointsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// command; checkpoints written so far are kept.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig reads configuration and applies persistent flag overrides.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Checkpoint.Backend = backend
	}
	if checkpointDir != "" {
		cfg.Checkpoint.Dir = checkpointDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (checkpoint.Store, error) {
	store, err := checkpoint.Open(ctx, cfg.CheckpointOptions(log))
	if err != nil {
		return nil, fmt.Errorf("opening %s checkpoint store: %w", cfg.Checkpoint.Backend, err)
	}
	return store, nil
}
