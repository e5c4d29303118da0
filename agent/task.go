// Package agent implements the task-queue agent core: the task model,
// per-agent metrics, the queue-draining lifecycle, and the registry and
// factory used to manage agent instances.
package agent

import (
	"strings"
	"time"
)

// Priority determines task dequeue order. Higher values drain first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityMedium   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "medium"
	}
}

// ParsePriority maps a priority name to its value. Unknown names map to
// PriorityMedium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// Task is one unit of work submitted to an agent. A task is created by
// Submit and mutated only by the owning agent while it processes the
// queue. At most one of Result and Error is set, and only once
// CompletedAt is set.
type Task struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Payload     map[string]any `json:"payload,omitempty"`
	Priority    Priority       `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// State derives the task's lifecycle state from its timestamps.
func (t *Task) State() string {
	switch {
	case t.CompletedAt != nil && t.Error != "":
		return "failed"
	case t.CompletedAt != nil:
		return "completed"
	case t.StartedAt != nil:
		return "running"
	default:
		return "pending"
	}
}

// QueueEntry is one row of an agent's queue listing.
type QueueEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	State     string    `json:"state"`
}
