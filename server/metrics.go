package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentichub/agenthub/agent"
)

// MetricsRecorder exports task outcomes as Prometheus metrics. It
// implements agent.Observer.
type MetricsRecorder struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// NewMetricsRecorder registers the task metrics on reg.
func NewMetricsRecorder(reg prometheus.Registerer) *MetricsRecorder {
	factory := promauto.With(reg)
	return &MetricsRecorder{
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenthub_tasks_total",
				Help: "Total number of processed tasks by agent, operation, and outcome",
			},
			[]string{"agent", "operation", "outcome"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agenthub_task_duration_seconds",
				Help:    "Task processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "operation"},
		),
	}
}

// TaskDone records one task outcome.
func (m *MetricsRecorder) TaskDone(_, agentName string, t *agent.Task, elapsed time.Duration) {
	outcome := "success"
	if t.Error != "" {
		outcome = "failure"
	}
	m.tasksTotal.WithLabelValues(agentName, t.Name, outcome).Inc()
	m.taskDuration.WithLabelValues(agentName, t.Name).Observe(elapsed.Seconds())
}
