package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichub/agenthub/agent"
)

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	bus.Publish(Event{Type: TypeAgentStarted, AgentID: "a1"})

	select {
	case e := <-ch:
		assert.Equal(t, TypeAgentStarted, e.Type)
		assert.Equal(t, "a1", e.AgentID)
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(1)
	unsubscribe()
	unsubscribe() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	bus.Publish(Event{Type: TypeAgentStopped})
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	bus.Publish(Event{Type: TypeTaskQueued})
	bus.Publish(Event{Type: TypeTaskDone})

	e := <-ch
	assert.Equal(t, TypeTaskQueued, e.Type)
	select {
	case e := <-ch:
		t.Fatalf("unexpected second event: %v", e.Type)
	default:
	}
}

func TestHistoryBoundedAndOrdered(t *testing.T) {
	bus := NewBus()
	bus.maxHist = 3

	for _, name := range []string{"t1", "t2", "t3", "t4"} {
		bus.Publish(Event{Type: TypeTaskDone, TaskName: name})
	}

	all := bus.History(0)
	require.Len(t, all, 3)
	assert.Equal(t, "t2", all[0].TaskName)
	assert.Equal(t, "t4", all[2].TaskName)

	last := bus.History(1)
	require.Len(t, last, 1)
	assert.Equal(t, "t4", last[0].TaskName)
}

func TestObserverPublishesOutcomes(t *testing.T) {
	bus := NewBus()
	obs := NewObserver(bus)

	now := time.Now()
	obs.TaskDone("a1", "doc-agent", &agent.Task{ID: "t1", Name: "extract_text", CompletedAt: &now}, time.Second)
	obs.TaskDone("a1", "doc-agent", &agent.Task{ID: "t2", Name: "extract_text", Error: "boom", CompletedAt: &now}, time.Second)

	hist := bus.History(0)
	require.Len(t, hist, 2)
	assert.Equal(t, TypeTaskDone, hist[0].Type)
	assert.Equal(t, TypeTaskFailed, hist[1].Type)
	assert.Equal(t, "boom", hist[1].Detail["error"])
	assert.Equal(t, "doc-agent", hist[0].AgentName)
}
