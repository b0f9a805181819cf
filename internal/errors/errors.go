package errors

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"time"
)

// StepFailure records a failed or skipped step of the most recent run.
type StepFailure struct {
	StepID    string
	Message   string
	Severity  ErrorSeverity
	Timestamp time.Time
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (f *StepFailure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.StepID, f.Severity, f.Message)
}

// ErrorCollector keeps the failures of the last run so the development
// server can show them in an overlay.
type ErrorCollector struct {
	failures map[string]StepFailure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make(map[string]StepFailure),
	}
}

// Add records a failure, replacing any previous failure of the same step.
func (ec *ErrorCollector) Add(f StepFailure) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	ec.failures[f.StepID] = f
}

// Resolve drops the recorded failure of a step that has since succeeded.
func (ec *ErrorCollector) Resolve(stepID string) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	delete(ec.failures, stepID)
}

// GetErrors returns all recorded failures sorted by step.
func (ec *ErrorCollector) GetErrors() []StepFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]StepFailure, 0, len(ec.failures))
	for _, f := range ec.failures {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StepID < result[j].StepID })
	return result
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = make(map[string]StepFailure)
}

// ErrorOverlay generates HTML for error overlay
func (ec *ErrorCollector) ErrorOverlay() string {
	failures := ec.GetErrors()
	if len(failures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div id="sitepipe-error-overlay" style="position:fixed;top:0;left:0;width:100%;height:100%;` +
		`background:rgba(0,0,0,0.85);color:#fff;font-family:Menlo,Monaco,monospace;font-size:14px;` +
		`z-index:9999;padding:20px;box-sizing:border-box;overflow:auto">`)
	b.WriteString(`<div style="max-width:1000px;margin:0 auto">`)
	b.WriteString(`<h2 style="margin:0 0 20px;color:#ff6b6b">Build Errors</h2>`)

	for _, f := range failures {
		color := "#ff6b6b"
		switch f.Severity {
		case ErrorSeverityWarning:
			color = "#feca57"
		case ErrorSeverityInfo:
			color = "#48dbfb"
		}

		fmt.Fprintf(&b,
			`<div style="background:#2d3748;padding:15px;margin-bottom:15px;border-left:4px solid %s">`+
				`<div style="color:%s;font-weight:bold">%s <span style="color:#a0aec0;font-size:12px">%s %s</span></div>`+
				`<pre style="white-space:pre-wrap;color:#e2e8f0">%s</pre></div>`,
			color, color, html.EscapeString(f.StepID), f.Severity, f.Timestamp.Format("15:04:05"),
			html.EscapeString(f.Message))
	}

	b.WriteString(`</div></div>`)
	return b.String()
}
