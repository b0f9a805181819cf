package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/scheduler"
	"github.com/conneroisu/sitepipe/internal/server"
	"github.com/conneroisu/sitepipe/internal/watcher"
	"github.com/conneroisu/sitepipe/internal/websocket"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w", "serve"},
	Short:   "Build, then rebuild on change and serve with live reload",
	Long: `Run a full build, then watch the source directory and rebuild only the
steps bound to the files that changed. The output directory is served over
HTTP and connected browsers reload (or swap stylesheets) after each rebuild.
A failed rebuild is reported in the terminal and in the browser; watching
continues until interrupted.

Examples:
  sitepipe watch                  # Serve on localhost:3000
  sitepipe watch --port 8080      # Custom port
  sitepipe watch --open           # Open the browser once listening`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	watchCmd.Flags().String("host", "localhost", "Host to bind to")
	watchCmd.Flags().Bool("open", false, "Open the browser once the server listens")

	bindFlag("server.port", watchCmd.Flags().Lookup("port"))
	bindFlag("server.host", watchCmd.Flags().Lookup("host"))
	bindFlag("server.open", watchCmd.Flags().Lookup("open"))
}

const shutdownTimeout = 5 * time.Second

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	report := func(run *scheduler.Run) {
		if err := writeRunReport(out, formatTable, run.Summary()); err != nil {
			s.logger.Warn(ctx, err, "Failed to write run report")
		}
	}

	notifier := websocket.NewNotifier(websocket.Config{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		OutputRoot:     s.pipeline.Paths.Output,
		Logger:         s.logger,
	})
	srv := server.New(server.Config{
		Host:           s.cfg.Server.Host,
		Port:           s.cfg.Server.Port,
		Open:           s.cfg.Server.Open,
		Root:           s.pipeline.Paths.Output,
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
	}, notifier, s.metrics, s.logger)

	run, err := s.sched.Run(ctx, nil)
	if err != nil {
		return err
	}
	srv.RecordRun(run)
	report(run)
	if runErr := run.Err(); runErr != nil {
		s.logger.Warn(ctx, runErr, "Initial build failed, watching for changes")
	}

	if err := srv.Listen(); err != nil {
		return err
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()

	serverErr := make(chan error, 1)
	go func() {
		err := srv.Start(serveCtx)
		if err != nil {
			// Stop watching when the server dies.
			stop()
		}
		serverErr <- err
	}()

	engine := watcher.NewEngine(s.sched, watcher.EngineConfig{
		Root:     s.pipeline.Paths.Source,
		Debounce: s.cfg.Watch.Debounce,
		Ignore:   s.pipeline.WatchIgnore(s.cfg.Watch.Ignore),
		Logger:   s.logger,
		OnRun: func(run *scheduler.Run) {
			srv.RecordRun(run)
			report(run)
		},
	})

	fmt.Fprintf(out, "Serving %s at %s (Press Ctrl+C to stop)\n", s.pipeline.Paths.Output, srv.URL())

	watchErr := engine.Watch(ctx, s.pipeline.Bindings)
	if watchErr != nil {
		errors.NewErrorHandler(s.logger, notifier).Handle(ctx, watchErr)
	}

	cancelServe()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, err, "Server shutdown failed")
	}

	if err := <-serverErr; err != nil && watchErr == nil {
		watchErr = err
	}
	return watchErr
}
