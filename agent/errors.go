package agent

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound is returned when a task id is unknown to the agent.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotDone is returned when a task exists but has not completed.
	ErrTaskNotDone = errors.New("task not completed")

	// ErrTaskRunning is returned when the in-flight task cannot be
	// cancelled.
	ErrTaskRunning = errors.New("task is currently running")

	// ErrQueueFull is returned by Submit when the pending queue is at
	// capacity.
	ErrQueueFull = errors.New("task queue full")

	// ErrUnknownType is returned by the factory for unregistered agent
	// types.
	ErrUnknownType = errors.New("unknown agent type")
)

// SettingsError reports missing or invalid settings at agent
// construction time.
type SettingsError struct {
	Agent   string
	Missing []string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("agent %s: missing required settings: %s",
		e.Agent, strings.Join(e.Missing, ", "))
}
