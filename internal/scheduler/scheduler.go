// Package scheduler executes the steps of a task graph level by level.
//
// Steps inside a level run concurrently, bounded by an optional limit, and a
// level only starts once every step of the previous level is terminal. A
// failed step takes its transitive dependents down with it (they are
// skipped) while unrelated branches keep going.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/fsglob"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

// Scheduler runs steps from a registry.
type Scheduler struct {
	registry    *taskgraph.Registry
	concurrency int
	sourceRoot  string
	logger      logging.Logger
	metrics     *Metrics
	runSeq      atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency bounds the number of steps running at once. Zero or a
// negative value means no bound.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSourceRoot sets the directory step input globs are expanded against.
func WithSourceRoot(root string) Option {
	return func(s *Scheduler) {
		s.sourceRoot = root
	}
}

// WithMetrics shares a metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a scheduler over reg.
func New(reg *taskgraph.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:   reg,
		sourceRoot: ".",
		logger:     logging.Nop(),
		metrics:    NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scheduler")
	return s
}

// Metrics returns the collector the scheduler records into.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the registry the scheduler reads from.
func (s *Scheduler) Registry() *taskgraph.Registry {
	return s.registry
}

// Levels returns the level partition for targets.
func (s *Scheduler) Levels(targets []string) ([][]string, error) {
	return Levels(s.registry, targets)
}

// Rebuild runs exactly targets, leaving their dependencies alone, the way a
// watch-triggered rebuild should. An empty list rebuilds everything.
func (s *Scheduler) Rebuild(ctx context.Context, targets []string) (*Run, error) {
	levels, err := RebuildLevels(s.registry, targets)
	if err != nil {
		return nil, err
	}
	return s.execLevels(ctx, targets, levels), nil
}

// Run executes targets and everything they depend on; an empty list runs
// the whole graph. The returned error is non-nil only for registry-time
// failures, in which case no step has run. Step failures are reported
// through the Run.
//
// Cancellation is cooperative: once ctx is done no further step starts,
// steps already running are allowed to finish, and the rest are skipped.
func (s *Scheduler) Run(ctx context.Context, targets []string) (*Run, error) {
	levels, err := Levels(s.registry, targets)
	if err != nil {
		return nil, err
	}
	return s.execLevels(ctx, targets, levels), nil
}

func (s *Scheduler) execLevels(ctx context.Context, targets []string, levels [][]string) *Run {
	run := newRun(fmt.Sprintf("run-%d", s.runSeq.Add(1)), targets, levels)
	logger := s.logger.With("run_id", run.ID)
	perf := logging.StartOperation(logger, "run")

	logger.Info(ctx, "Run started", "steps", len(run.Order), "levels", len(levels))

	for _, level := range levels {
		g := new(errgroup.Group)
		if s.concurrency > 0 {
			g.SetLimit(s.concurrency)
		}

		for _, stepID := range level {
			step, _ := s.registry.Get(stepID)

			if ctx.Err() != nil {
				run.skip(stepID, SkipReasonCancelled)
				continue
			}
			if dep, status := run.blocker(step.DependsOn); dep != "" {
				run.skip(stepID, fmt.Sprintf("dependency %s %s", dep, status))
				logger.Debug(ctx, "Step skipped", "step", stepID, "dependency", dep)
				continue
			}

			g.Go(func() error {
				s.execute(ctx, logger, run, step)
				return nil
			})
		}

		_ = g.Wait()
	}

	run.complete()
	s.metrics.RecordRun(run)

	if err := run.Err(); err != nil {
		perf.EndWithError(ctx, err, "failed", len(run.FailedSteps()), "skipped", len(run.SkippedSteps()))
	} else {
		perf.End(ctx, "steps", len(run.Order))
	}

	return run
}

// execute runs a single step. The transform gets a context that is not
// cancelled with the run, so a step that started always runs to completion.
func (s *Scheduler) execute(ctx context.Context, logger logging.Logger, run *Run, step taskgraph.Step) {
	if ctx.Err() != nil {
		run.skip(step.ID, SkipReasonCancelled)
		return
	}

	run.start(step.ID)
	logger.Debug(ctx, "Step started", "step", step.ID)

	outputs, err := s.invoke(context.WithoutCancel(ctx), step)
	if err != nil {
		err = errors.NewTransformError(step.ID, err)
		run.finish(step.ID, nil, err)
		logger.Warn(ctx, err, "Step failed", "step", step.ID)
		return
	}

	run.finish(step.ID, outputs, nil)
	logger.Debug(ctx, "Step succeeded", "step", step.ID, "outputs", len(outputs))
}

func (s *Scheduler) invoke(ctx context.Context, step taskgraph.Step) (outputs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	sources, err := fsglob.Expand(s.sourceRoot, step.Inputs)
	if err != nil {
		return nil, fmt.Errorf("expanding inputs: %w", err)
	}

	return step.Transform.Transform(ctx, sources)
}
