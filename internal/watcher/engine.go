package watcher

import (
	"context"
	"slices"
	"time"

	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/scheduler"
)

// Rebuilder runs a set of steps. *scheduler.Scheduler implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context, targets []string) (*scheduler.Run, error)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Root is the source directory bindings are relative to.
	Root     string
	Debounce time.Duration
	// Ignore lists directories that are never watched, such as the output
	// directory.
	Ignore []string
	Logger logging.Logger
	// OnRun receives every finished rebuild, including superseded ones.
	OnRun func(run *scheduler.Run)
}

// Engine connects a FileWatcher, a Debouncer and a Rebuilder.
type Engine struct {
	rebuilder Rebuilder
	config    EngineConfig
	logger    logging.Logger
}

// NewEngine creates an engine driving rebuilder.
func NewEngine(rebuilder Rebuilder, config EngineConfig) *Engine {
	if config.Root == "" {
		config.Root = "."
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		rebuilder: rebuilder,
		config:    config,
		logger:    logger.WithComponent("watcher"),
	}
}

// Watch watches the source root and rebuilds the steps bound to changed
// files. It blocks until ctx is done, returning nil, or until the watcher
// fails, returning a WatchIOError.
func (e *Engine) Watch(ctx context.Context, bindings []Binding) error {
	fw, err := NewFileWatcher()
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(NoGitFilter)
	fw.AddFilter(NoEditorTempFilter)
	for _, dir := range e.config.Ignore {
		fw.AddFilter(ExcludeDirFilter(dir))
	}

	if err := fw.AddRecursive(e.config.Root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fw.Start(ctx)

	debouncer := NewDebouncer(e.config.Debounce)
	go debouncer.Run(ctx, fw.Events())

	e.logger.Info(ctx, "Watching for changes",
		"root", e.config.Root, "directories", len(fw.WatchList()), "bindings", len(bindings))

	return e.loop(ctx, debouncer.Batches(), fw.Errors(), bindings)
}

type flight struct {
	targets []string
	cancel  context.CancelFunc
}

type flightResult struct {
	run *scheduler.Run
	err error
}

// loop is the single rebuild loop. At most one rebuild is in flight; batches
// that arrive meanwhile are merged into the next one, and a batch resolving
// to exactly the in-flight targets supersedes the in-flight rebuild.
func (e *Engine) loop(ctx context.Context, batches <-chan []ChangeEvent, errs <-chan error, bindings []Binding) error {
	var (
		inflight *flight
		pending  = make(map[string]bool)
		done     = make(chan flightResult, 1)
	)

	start := func() {
		targets := sortedKeys(pending)
		pending = make(map[string]bool)

		runCtx, runCancel := context.WithCancel(ctx)
		inflight = &flight{targets: targets, cancel: runCancel}

		e.logger.Info(ctx, "Rebuilding", "steps", targets)
		go func() {
			run, err := e.rebuilder.Rebuild(runCtx, targets)
			done <- flightResult{run: run, err: err}
		}()
	}

	finish := func(res flightResult) {
		inflight.cancel()
		inflight = nil

		switch {
		case res.err != nil:
			e.logger.Error(ctx, res.err, "Rebuild could not start")
		case res.run != nil:
			e.report(ctx, res.run)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if inflight != nil {
				inflight.cancel()
				finish(<-done)
			}
			return nil

		case err := <-errs:
			e.logger.Error(ctx, err, "File watcher failed")
			if inflight != nil {
				inflight.cancel()
				finish(<-done)
			}
			return err

		case batch, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			targets, paths := ResolveBatch(e.config.Root, batch, bindings)
			if len(targets) == 0 {
				e.logger.Debug(ctx, "Change matched no binding", "events", len(batch))
				continue
			}
			e.logger.Debug(ctx, "Change detected", "paths", paths, "steps", targets)

			if inflight != nil && slices.Equal(targets, inflight.targets) {
				e.logger.Info(ctx, "Superseding in-flight rebuild", "steps", targets)
				inflight.cancel()
			}
			for _, t := range targets {
				pending[t] = true
			}
			if inflight == nil {
				start()
			}

		case res := <-done:
			finish(res)
			if len(pending) > 0 {
				start()
			}
		}
	}
}

func (e *Engine) report(ctx context.Context, run *scheduler.Run) {
	if err := run.Err(); err != nil {
		e.logger.Warn(ctx, err, "Rebuild finished with failures",
			"run_id", run.ID, "failed", run.FailedSteps(), "skipped", run.SkippedSteps())
	} else {
		e.logger.Info(ctx, "Rebuild succeeded", "run_id", run.ID, "steps", len(run.Order))
	}

	if e.config.OnRun != nil {
		e.config.OnRun(run)
	}
}
