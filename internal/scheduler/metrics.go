package scheduler

import (
	"sync"
	"time"
)

// Metrics accumulates totals across runs.
type Metrics struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	CancelledRuns   int64
	StepsSucceeded  int64
	StepsFailed     int64
	StepsSkipped    int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	LastRunAt       time.Time
	mutex           sync.RWMutex
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TotalRuns         int64     `json:"total_runs"`
	SuccessfulRuns    int64     `json:"successful_runs"`
	FailedRuns        int64     `json:"failed_runs"`
	CancelledRuns     int64     `json:"cancelled_runs"`
	StepsSucceeded    int64     `json:"steps_succeeded"`
	StepsFailed       int64     `json:"steps_failed"`
	StepsSkipped      int64     `json:"steps_skipped"`
	AverageDurationMS int64     `json:"average_duration_ms"`
	TotalDurationMS   int64     `json:"total_duration_ms"`
	LastRunAt         time.Time `json:"last_run_at"`
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRun adds a finished run to the totals.
func (m *Metrics) RecordRun(run *Run) {
	results := run.Results()
	succeeded := run.Succeeded()
	duration := run.Duration()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns++
	m.TotalDuration += duration
	m.LastRunAt = run.StartedAt

	switch {
	case succeeded:
		m.SuccessfulRuns++
	default:
		m.FailedRuns++
	}
	if run.Cancelled {
		m.CancelledRuns++
	}

	for _, res := range results {
		switch res.Status {
		case StatusSucceeded:
			m.StepsSucceeded++
		case StatusFailed:
			m.StepsFailed++
		case StatusSkipped:
			m.StepsSkipped++
		}
	}

	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalRuns)
}

// GetSnapshot returns a copy of the current totals.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return MetricsSnapshot{
		TotalRuns:         m.TotalRuns,
		SuccessfulRuns:    m.SuccessfulRuns,
		FailedRuns:        m.FailedRuns,
		CancelledRuns:     m.CancelledRuns,
		StepsSucceeded:    m.StepsSucceeded,
		StepsFailed:       m.StepsFailed,
		StepsSkipped:      m.StepsSkipped,
		AverageDurationMS: m.AverageDuration.Milliseconds(),
		TotalDurationMS:   m.TotalDuration.Milliseconds(),
		LastRunAt:         m.LastRunAt,
	}
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns = 0
	m.SuccessfulRuns = 0
	m.FailedRuns = 0
	m.CancelledRuns = 0
	m.StepsSucceeded = 0
	m.StepsFailed = 0
	m.StepsSkipped = 0
	m.AverageDuration = 0
	m.TotalDuration = 0
	m.LastRunAt = time.Time{}
}

// GetSuccessRate returns the share of successful runs as a percentage.
func (m *Metrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRuns == 0 {
		return 0.0
	}

	return float64(m.SuccessfulRuns) / float64(m.TotalRuns) * 100.0
}
