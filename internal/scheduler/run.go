package scheduler

import (
	"sync"
	"time"

	"github.com/conneroisu/sitepipe/internal/errors"
)

// Status is the lifecycle state of a step within a Run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// SkipReasonCancelled marks steps that never started because the run's
// context was done.
const SkipReasonCancelled = "cancelled"

// StepResult is the outcome of one step in a Run.
type StepResult struct {
	StepID     string
	Status     Status
	Level      int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Outputs    []string
	Err        error
	SkipReason string
}

// Run is one execution of the graph or a subset of it.
type Run struct {
	ID      string
	Targets []string
	// Order lists every step of the run, level by level.
	Order      []string
	Levels     [][]string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool

	mu      sync.RWMutex
	results map[string]*StepResult
}

func newRun(id string, targets []string, levels [][]string) *Run {
	run := &Run{
		ID:        id,
		Targets:   append([]string(nil), targets...),
		Order:     flatten(levels),
		Levels:    levels,
		StartedAt: time.Now(),
		results:   make(map[string]*StepResult),
	}
	for li, level := range levels {
		for _, stepID := range level {
			run.results[stepID] = &StepResult{StepID: stepID, Status: StatusPending, Level: li}
		}
	}
	return run
}

func (r *Run) start(stepID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.results[stepID]
	res.Status = StatusRunning
	res.StartedAt = time.Now()
}

func (r *Run) finish(stepID string, outputs []string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.results[stepID]
	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return
	}
	res.Status = StatusSucceeded
	res.Outputs = append([]string(nil), outputs...)
}

func (r *Run) skip(stepID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.results[stepID]
	res.Status = StatusSkipped
	res.SkipReason = reason
	if reason == SkipReasonCancelled {
		r.Cancelled = true
	}
}

// blocker returns the first dependency that did not succeed, with its status.
func (r *Run) blocker(deps []string) (string, Status) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, dep := range deps {
		if res, ok := r.results[dep]; ok && res.Status != StatusSucceeded {
			return dep, res.Status
		}
	}
	return "", ""
}

func (r *Run) complete() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = time.Now()
}

// Result returns a copy of the result for stepID.
func (r *Run) Result(stepID string) (StepResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.results[stepID]
	if !ok {
		return StepResult{}, false
	}
	return *res, true
}

// Results returns a copy of every step result in Order.
func (r *Run) Results() []StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]StepResult, 0, len(r.Order))
	for _, stepID := range r.Order {
		results = append(results, *r.results[stepID])
	}
	return results
}

// Duration is the wall-clock time of the whole run.
func (r *Run) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded is true only if every step of the run succeeded.
func (r *Run) Succeeded() bool {
	for _, res := range r.Results() {
		if res.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// StepsWithStatus lists the steps in the given status, in Order.
func (r *Run) StepsWithStatus(status Status) []string {
	var ids []string
	for _, res := range r.Results() {
		if res.Status == status {
			ids = append(ids, res.StepID)
		}
	}
	return ids
}

// FailedSteps lists failed steps in Order.
func (r *Run) FailedSteps() []string { return r.StepsWithStatus(StatusFailed) }

// SkippedSteps lists skipped steps in Order.
func (r *Run) SkippedSteps() []string { return r.StepsWithStatus(StatusSkipped) }

// SucceededSteps lists succeeded steps in Order.
func (r *Run) SucceededSteps() []string { return r.StepsWithStatus(StatusSucceeded) }

// Outputs returns the paths written by succeeded steps, without duplicates.
func (r *Run) Outputs() []string {
	seen := make(map[string]bool)
	var outputs []string
	for _, res := range r.Results() {
		if res.Status != StatusSucceeded {
			continue
		}
		for _, out := range res.Outputs {
			if !seen[out] {
				seen[out] = true
				outputs = append(outputs, out)
			}
		}
	}
	return outputs
}

// Err returns a RunFailedError when any step did not succeed, else nil.
func (r *Run) Err() error {
	if r.Succeeded() {
		return nil
	}

	runErr := &errors.RunFailedError{}
	for _, res := range r.Results() {
		switch res.Status {
		case StatusFailed:
			runErr.Failed = append(runErr.Failed, res.StepID)
			runErr.Causes = append(runErr.Causes, res.Err)
		case StatusSkipped, StatusPending, StatusRunning:
			runErr.Skipped = append(runErr.Skipped, res.StepID)
		}
	}

	r.mu.RLock()
	runErr.Cancelled = r.Cancelled
	r.mu.RUnlock()

	return runErr
}

// Summary is the serializable report of a Run.
type Summary struct {
	ID         string        `json:"id" yaml:"id" toml:"id"`
	Targets    []string      `json:"targets,omitempty" yaml:"targets,omitempty" toml:"targets,omitempty"`
	Status     string        `json:"status" yaml:"status" toml:"status"`
	Cancelled  bool          `json:"cancelled" yaml:"cancelled" toml:"cancelled"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at" toml:"started_at"`
	DurationMS int64         `json:"duration_ms" yaml:"duration_ms" toml:"duration_ms"`
	Steps      []StepSummary `json:"steps" yaml:"steps" toml:"steps"`
}

// StepSummary is the serializable report of one step.
type StepSummary struct {
	ID         string   `json:"id" yaml:"id" toml:"id"`
	Status     Status   `json:"status" yaml:"status" toml:"status"`
	Level      int      `json:"level" yaml:"level" toml:"level"`
	DurationMS int64    `json:"duration_ms" yaml:"duration_ms" toml:"duration_ms"`
	Outputs    []string `json:"outputs,omitempty" yaml:"outputs,omitempty" toml:"outputs,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
	SkipReason string   `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty" toml:"skip_reason,omitempty"`
}

// Summary builds the report of the run.
func (r *Run) Summary() Summary {
	status := "succeeded"
	if !r.Succeeded() {
		status = "failed"
	}

	r.mu.RLock()
	summary := Summary{
		ID:        r.ID,
		Targets:   append([]string(nil), r.Targets...),
		Status:    status,
		Cancelled: r.Cancelled,
		StartedAt: r.StartedAt,
	}
	r.mu.RUnlock()
	summary.DurationMS = r.Duration().Milliseconds()

	for _, res := range r.Results() {
		step := StepSummary{
			ID:         res.StepID,
			Status:     res.Status,
			Level:      res.Level,
			DurationMS: res.Duration.Milliseconds(),
			Outputs:    res.Outputs,
			SkipReason: res.SkipReason,
		}
		if res.Err != nil {
			step.Error = res.Err.Error()
		}
		summary.Steps = append(summary.Steps, step)
	}
	return summary
}
