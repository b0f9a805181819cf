package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeRegistry   ErrorType = "registry"
	ErrorTypeTransform  ErrorType = "transform"
	ErrorTypeWatch      ErrorType = "watch"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeDuplicateStep    = "ERR_DUPLICATE_STEP"
	ErrCodeUnknownStep      = "ERR_UNKNOWN_STEP"
	ErrCodeCyclicDependency = "ERR_CYCLIC_DEPENDENCY"
	ErrCodeTransformFailed  = "ERR_TRANSFORM_FAILED"
	ErrCodeWatchIO          = "ERR_WATCH_IO"
	ErrCodeRunFailed        = "ERR_RUN_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// PipelineError is a structured error type with context.
type PipelineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	StepID      string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.StepID != "" {
		parts = append(parts, "step:"+e.StepID)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithStep adds step context.
func (e *PipelineError) WithStep(stepID string) *PipelineError {
	e.StepID = stepID

	return e
}

// WithPath adds file path context.
func (e *PipelineError) WithPath(path string) *PipelineError {
	e.FilePath = path

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *PipelineError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path").WithPath(path)
}

// TypeOf reports the category of err, looking through wrapping.
func TypeOf(err error) ErrorType {
	var (
		pe  *PipelineError
		dup *DuplicateStepError
		unk *UnknownStepError
		cyc *CyclicDependencyError
		tr  *TransformError
		wio *WatchIOError
		run *RunFailedError
	)

	switch {
	case errors.As(err, &dup), errors.As(err, &unk), errors.As(err, &cyc):
		return ErrorTypeRegistry
	case errors.As(err, &tr), errors.As(err, &run):
		return ErrorTypeTransform
	case errors.As(err, &wio):
		return ErrorTypeWatch
	case errors.As(err, &pe):
		return pe.Type
	default:
		return ErrorTypeInternal
	}
}

// IsRecoverable checks if an error is recoverable. Per-step transform
// failures are contained to a run; registry and watch failures are not.
func IsRecoverable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	switch TypeOf(err) {
	case ErrorTypeTransform:
		return true
	default:
		return false
	}
}

// IsRegistryError checks if an error comes from task graph declaration.
func IsRegistryError(err error) bool {
	return TypeOf(err) == ErrorTypeRegistry
}

// IsTransformError checks if an error is a step runtime failure.
func IsTransformError(err error) bool {
	var tr *TransformError
	return errors.As(err, &tr)
}

// IsWatchIOError checks if an error comes from the watch subsystem.
func IsWatchIOError(err error) bool {
	var wio *WatchIOError
	return errors.As(err, &wio)
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Notifier interface for error notifications.
type Notifier interface {
	NotifyError(err error)
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger   Logger
	notifier Notifier
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger, notifier Notifier) *ErrorHandler {
	return &ErrorHandler{
		logger:   logger,
		notifier: notifier,
	}
}

// Handle processes an error with appropriate logging and notifications.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	errType := TypeOf(err)

	switch errType {
	case ErrorTypeTransform:
		if h.logger != nil {
			h.logger.Warn(ctx, err, "Build step failed", "type", errType)
		}
		if h.notifier != nil {
			h.notifier.NotifyError(err)
		}
	case ErrorTypeValidation:
		if h.logger != nil {
			h.logger.Warn(ctx, err, "Validation error occurred", "type", errType)
		}
	default:
		if h.logger != nil {
			h.logger.Error(ctx, err, "Error occurred", "type", errType)
		}
		if h.notifier != nil {
			h.notifier.NotifyError(err)
		}
	}
}
