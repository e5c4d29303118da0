package agent

import (
	"math"
	"sync"
	"time"
)

// Metrics tracks running counters derived from task outcomes. Counters
// are never decremented and each task outcome is recorded exactly once.
type Metrics struct {
	mu           sync.Mutex
	completed    int
	failed       int
	totalTime    time.Duration
	avgTime      time.Duration
	lastActivity time.Time
}

// RecordSuccess registers one completed task and its processing time.
// The average is recomputed from the cumulative total, not accumulated
// incrementally.
func (m *Metrics) RecordSuccess(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	m.totalTime += d
	m.avgTime = m.totalTime / time.Duration(max(1, m.completed))
	m.lastActivity = time.Now()
}

// RecordFailure registers one failed task.
func (m *Metrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
	m.lastActivity = time.Now()
}

// MetricsSnapshot is a point-in-time copy of an agent's metrics.
type MetricsSnapshot struct {
	TasksCompleted        int        `json:"tasks_completed"`
	TasksFailed           int        `json:"tasks_failed"`
	AverageProcessingTime float64    `json:"average_processing_time"` // seconds, rounded
	UptimeSeconds         float64    `json:"uptime"`
	LastActivity          *time.Time `json:"last_activity,omitempty"`
}

// Snapshot returns a copy of the current counters. Uptime is filled in
// by the owning agent.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MetricsSnapshot{
		TasksCompleted:        m.completed,
		TasksFailed:           m.failed,
		AverageProcessingTime: math.Round(m.avgTime.Seconds()*100) / 100,
	}
	if !m.lastActivity.IsZero() {
		last := m.lastActivity
		s.LastActivity = &last
	}
	return s
}
