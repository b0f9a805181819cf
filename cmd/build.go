package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/pipeline"
	"github.com/conneroisu/sitepipe/internal/scheduler"
)

var buildCmd = &cobra.Command{
	Use:     "build [steps...]",
	Aliases: []string{"b"},
	Short:   "Run the pipeline once",
	Long: `Run every step of the pipeline once, or only the named steps together
with the steps they depend on. A failed step stops its dependents; the other
steps still run. The command exits non-zero unless every step succeeded.

Examples:
  sitepipe build                  # Full build
  sitepipe build css js           # Only css, js and their dependencies
  sitepipe build -o json          # Machine-readable report`,
	RunE: runBuild,
}

var buildOutput string

func init() {
	rootCmd.AddCommand(buildCmd)

	addOutputFlag(buildCmd, &buildOutput)
}

// session holds what every pipeline command needs.
type session struct {
	cfg      *config.Config
	logger   logging.Logger
	pipeline *pipeline.Pipeline
	metrics  *scheduler.Metrics
	sched    *scheduler.Scheduler
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	pl, err := pipeline.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	metrics := scheduler.NewMetrics()
	sched := pl.Scheduler(
		scheduler.WithConcurrency(cfg.Build.Concurrency),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(metrics),
	)

	return &session{
		cfg:      cfg,
		logger:   logger,
		pipeline: pl,
		metrics:  metrics,
		sched:    sched,
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	run, err := s.sched.Run(ctx, args)
	if err != nil {
		return err
	}

	if err := writeRunReport(cmd.OutOrStdout(), buildOutput, run.Summary()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return run.Err()
}
