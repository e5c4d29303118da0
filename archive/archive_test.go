package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichub/agenthub/agent"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func finishedTask(id string, result any, taskErr string) *agent.Task {
	created := time.Now().Add(-time.Minute).UTC()
	started := created.Add(time.Second)
	completed := started.Add(time.Second)
	return &agent.Task{
		ID:          id,
		Name:        "extract_text",
		Priority:    agent.PriorityHigh,
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
		Result:      result,
		Error:       taskErr,
	}
}

func TestArchiveAndGet(t *testing.T) {
	s := openTestStore(t)

	task := finishedTask("task-1", map[string]any{"text": "hola mundo", "word_count": 2}, "")
	require.NoError(t, s.Archive("agent-1", task))

	e, err := s.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", e.AgentID)
	assert.Equal(t, "extract_text", e.Name)
	assert.Equal(t, "high", e.Priority)
	assert.Empty(t, e.Error)
	require.NotNil(t, e.CompletedAt)

	result, ok := e.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hola mundo", result["text"])
}

func TestGetUnknownTask(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, agent.ErrTaskNotFound)
}

func TestArchiveReplacesSameID(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Archive("agent-1", finishedTask("task-1", "v1", "")))
	require.NoError(t, s.Archive("agent-1", finishedTask("task-1", "v2", "")))

	e, err := s.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", e.Result)

	n, err := s.Count("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListFilters(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Archive("agent-1", finishedTask("t1", "ok", "")))
	require.NoError(t, s.Archive("agent-1", finishedTask("t2", nil, "timeout after 5s")))
	require.NoError(t, s.Archive("agent-2", finishedTask("t3", "ok", "")))

	all, err := s.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byAgent, err := s.List(Filter{AgentID: "agent-1"})
	require.NoError(t, err)
	assert.Len(t, byAgent, 2)

	failed := true
	failures, err := s.List(Filter{Failed: &failed})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "t2", failures[0].ID)

	limited, err := s.List(Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := s.Count("")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
