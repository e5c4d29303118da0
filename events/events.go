// Package events provides the in-process event bus carrying agent
// lifecycle and task outcome events to the SSE stream and the history
// endpoint.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentichub/agenthub/agent"
)

// Type identifies the kind of event.
type Type string

const (
	TypeAgentCreated Type = "agent_created"
	TypeAgentDeleted Type = "agent_deleted"
	TypeAgentStarted Type = "agent_started"
	TypeAgentStopped Type = "agent_stopped"
	TypeTaskQueued   Type = "task_queued"
	TypeTaskDone     Type = "task_completed"
	TypeTaskFailed   Type = "task_failed"
)

// Event is one bus entry.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	AgentID   string         `json:"agent_id,omitempty"`
	AgentName string         `json:"agent_name,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	TaskName  string         `json:"task_name,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus is a thread-safe in-process event bus with a bounded history.
// Subscribers receive events on buffered channels; a slow subscriber
// drops events rather than blocking publishers.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	history []Event
	maxHist int
}

// NewBus creates a Bus with a 1000-event history cap.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[int]chan Event),
		maxHist: 1000,
	}
}

// Publish stamps the event with an id and timestamp, appends it to the
// history, and fans it out to all subscribers.
func (b *Bus) Publish(e Event) {
	e.ID = uuid.NewString()
	e.Timestamp = time.Now()

	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribe registers a new subscriber. The returned function
// unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// History returns the most recent limit events in chronological order.
// A non-positive limit returns the full history.
func (b *Bus) History(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// Observer bridges agent task outcomes onto the bus. It implements
// agent.Observer.
type Observer struct {
	bus *Bus
}

// NewObserver creates an Observer publishing to bus.
func NewObserver(bus *Bus) *Observer { return &Observer{bus: bus} }

func (o *Observer) TaskDone(agentID, agentName string, t *agent.Task, elapsed time.Duration) {
	typ := TypeTaskDone
	detail := map[string]any{"elapsed_seconds": elapsed.Seconds()}
	if t.Error != "" {
		typ = TypeTaskFailed
		detail["error"] = t.Error
	}
	o.bus.Publish(Event{
		Type:      typ,
		AgentID:   agentID,
		AgentName: agentName,
		TaskID:    t.ID,
		TaskName:  t.Name,
		Detail:    detail,
	})
}
