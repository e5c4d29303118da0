package agent

import "time"

// MultiObserver fans each task outcome out to several observers.
type MultiObserver []Observer

func (m MultiObserver) TaskDone(agentID, agentName string, t *Task, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.TaskDone(agentID, agentName, t, elapsed)
		}
	}
}
