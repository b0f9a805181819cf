package errors

import (
	"fmt"
	"strings"
)

// DuplicateStepError is returned when a step identifier is registered twice.
type DuplicateStepError struct {
	StepID string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("[%s] step %q is already registered", ErrCodeDuplicateStep, e.StepID)
}

// UnknownStepError is returned when a step identifier is not registered.
// RequiredBy is set when the unknown step was named as a dependency.
type UnknownStepError struct {
	StepID     string
	RequiredBy string
}

func (e *UnknownStepError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("[%s] step %q (required by %q) is not registered",
			ErrCodeUnknownStep, e.StepID, e.RequiredBy)
	}
	return fmt.Sprintf("[%s] step %q is not registered", ErrCodeUnknownStep, e.StepID)
}

// CyclicDependencyError names a dependency cycle. The first and last
// elements of Cycle are the same step.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("[%s] dependency cycle: %s",
		ErrCodeCyclicDependency, strings.Join(e.Cycle, " -> "))
}

// TransformError wraps the failure of a single step's transformation.
type TransformError struct {
	StepID string
	Cause  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("[%s] step %q: %v", ErrCodeTransformFailed, e.StepID, e.Cause)
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// NewTransformError wraps cause for the given step.
func NewTransformError(stepID string, cause error) *TransformError {
	return &TransformError{StepID: stepID, Cause: cause}
}

// WatchIOError reports a failure of the filesystem watch subsystem.
type WatchIOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *WatchIOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] watch %s %s: %v", ErrCodeWatchIO, e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("[%s] watch %s: %v", ErrCodeWatchIO, e.Op, e.Cause)
}

func (e *WatchIOError) Unwrap() error {
	return e.Cause
}

// RunFailedError summarises a run in which at least one step did not succeed.
type RunFailedError struct {
	Failed    []string
	Skipped   []string
	Cancelled bool
	// Causes holds the transform errors of the failed steps, in Failed order.
	Causes []error
}

func (e *RunFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] run failed", ErrCodeRunFailed)
	if e.Cancelled {
		b.WriteString(" (cancelled)")
	}
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, "; failed: %s", strings.Join(e.Failed, ", "))
	}
	if len(e.Skipped) > 0 {
		fmt.Fprintf(&b, "; skipped: %s", strings.Join(e.Skipped, ", "))
	}
	return b.String()
}

// Unwrap exposes the individual step failures to errors.Is/As.
func (e *RunFailedError) Unwrap() []error {
	return e.Causes
}
