package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentichub/agenthub/agent"
	"github.com/agentichub/agenthub/ai"
	"github.com/agentichub/agenthub/docproc"
	"github.com/agentichub/agenthub/events"
	"github.com/agentichub/agenthub/server/api"
)

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(devNull{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type env struct {
	srv *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()

	logger := quietLogger()
	reg := agent.NewRegistry()
	factory := agent.NewFactory()
	bus := events.NewBus()
	svc := ai.NewService(ai.NewMock(), logger)

	mgr := api.NewManager(reg, factory, bus, svc, nil)
	docproc.RegisterType(factory, docproc.Deps{
		AI:       svc,
		Logger:   logger,
		Observer: events.NewObserver(bus),
	}, mgr.TrackProcessor)

	h := &api.Handlers{
		Manager:   mgr,
		Logger:    logger,
		Version:   "test",
		UploadDir: t.TempDir(),
		StartAt:   time.Now(),
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		for _, a := range reg.Clear() {
			a.Close()
		}
	})
	return &env{srv: srv}
}

func (e *env) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (e *env) createAgent(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/agents", map[string]any{
		"type":        docproc.Type,
		"name":        "doc-agent",
		"description": "test agent",
		"settings": map[string]any{
			"supported_formats": []string{"txt", "pdf"},
			"max_file_size":     1048576,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestAgentLifecycle(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/agents/types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["types"], docproc.Type)

	id := e.createAgent(t)

	resp, body = e.do(t, http.MethodGet, "/api/agents/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "doc-agent", body["name"])
	assert.Equal(t, "idle", body["status"])

	resp, _ = e.do(t, http.MethodPost, "/api/agents/"+id+"/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = e.do(t, http.MethodGet, "/api/agents/"+id, nil)
	assert.Equal(t, "stopped", body["status"])

	resp, _ = e.do(t, http.MethodPost, "/api/agents/"+id+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = e.do(t, http.MethodGet, "/api/agents/"+id, nil)
	assert.Equal(t, "idle", body["status"])

	resp, _ = e.do(t, http.MethodDelete, "/api/agents/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/agents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAgentValidation(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/agents", map[string]any{
		"type": "warehouse_robot",
		"name": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown agent type")

	resp, body = e.do(t, http.MethodPost, "/api/agents", map[string]any{
		"type": docproc.Type,
		"name": "incomplete",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "missing required settings")
}

func TestDocumentUploadAndResult(t *testing.T) {
	e := newEnv(t)
	id := e.createAgent(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "saludo.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hola mundo"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/agents/"+id+"/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(raw))

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(raw, &accepted))
	taskID := accepted["task_id"]
	require.NotEmpty(t, taskID)

	deadline := time.Now().Add(2 * time.Second)
	var body map[string]any
	for time.Now().Before(deadline) {
		_, body = e.do(t, http.MethodGet, "/api/agents/"+id+"/tasks/"+taskID, nil)
		if body["status"] == "completed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, "completed", body["status"])

	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hola mundo", result["text"])
	assert.Equal(t, float64(2), result["word_count"])
	assert.Equal(t, "plain_text", result["extraction_method"])

	// Processor counters show up in the stats endpoint.
	_, stats := e.do(t, http.MethodGet, "/api/agents/"+id+"/stats", nil)
	processing, ok := stats["processing"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), processing["documents_processed"])
}

func (e *env) uploadText(t *testing.T, agentID, name, content string, fields map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/agents/"+agentID+"/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(raw))

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(raw, &accepted))
	require.NotEmpty(t, accepted["task_id"])
	return accepted["task_id"]
}

func (e *env) waitForResult(t *testing.T, agentID, taskID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var body map[string]any
	for time.Now().Before(deadline) {
		_, body = e.do(t, http.MethodGet, "/api/agents/"+agentID+"/tasks/"+taskID, nil)
		if body["status"] == "completed" {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not complete: %v", taskID, body)
	return nil
}

func (e *env) listTaskNames(t *testing.T, agentID string) map[string]string {
	t.Helper()
	_, body := e.do(t, http.MethodGet, "/api/agents/"+agentID+"/tasks", nil)
	tasks, ok := body["tasks"].([]any)
	require.True(t, ok)
	names := make(map[string]string, len(tasks))
	for _, raw := range tasks {
		entry, ok := raw.(map[string]any)
		require.True(t, ok)
		names[entry["name"].(string)] = entry["id"].(string)
	}
	return names
}

func TestUploadQueuesClassificationFollowUp(t *testing.T) {
	e := newEnv(t)
	id := e.createAgent(t)

	extractID := e.uploadText(t, id, "informe.txt", "Informe trimestral con conclusiones y resultados", nil)
	e.waitForResult(t, id, extractID)

	// The follow-up is queued by a watcher once extraction finishes.
	deadline := time.Now().Add(2 * time.Second)
	var classifyID string
	for time.Now().Before(deadline) {
		if tid, ok := e.listTaskNames(t, id)[docproc.OpClassify]; ok {
			classifyID = tid
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotEmpty(t, classifyID, "classify_document follow-up never queued")

	body := e.waitForResult(t, id, classifyID)
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	basic, ok := result["basic_classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "informe", basic["type"])
	aiClassification, ok := result["ai_classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "informe", aiClassification["category"])
}

func TestUploadAutoClassifyOptOut(t *testing.T) {
	e := newEnv(t)
	id := e.createAgent(t)

	extractID := e.uploadText(t, id, "saludo.txt", "hola mundo",
		map[string]string{"auto_classify": "false"})
	e.waitForResult(t, id, extractID)

	// Give a disabled watcher time to misbehave before asserting.
	time.Sleep(300 * time.Millisecond)
	names := e.listTaskNames(t, id)
	assert.NotContains(t, names, docproc.OpClassify)
	assert.Len(t, names, 1)
}

func TestTaskResultStates(t *testing.T) {
	e := newEnv(t)
	id := e.createAgent(t)

	resp, _ := e.do(t, http.MethodGet, "/api/agents/"+id+"/tasks/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A stopped agent holds the task pending.
	_, _ = e.do(t, http.MethodPost, "/api/agents/"+id+"/stop", nil)
	resp, body := e.do(t, http.MethodPost, "/api/agents/"+id+"/tasks", map[string]any{
		"name":     docproc.OpExtractText,
		"payload":  map[string]any{"file_path": "/tmp/nope.txt"},
		"priority": "critical",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	taskID := body["task_id"].(string)

	_, body = e.do(t, http.MethodGet, "/api/agents/"+id+"/tasks/"+taskID, nil)
	assert.Equal(t, "pending", body["status"])

	_, body = e.do(t, http.MethodGet, "/api/agents/"+id+"/tasks", nil)
	tasks, ok := body["tasks"].([]any)
	require.True(t, ok)
	assert.Len(t, tasks, 1)
}

func TestCancelTask(t *testing.T) {
	e := newEnv(t)
	id := e.createAgent(t)
	_, _ = e.do(t, http.MethodPost, "/api/agents/"+id+"/stop", nil)

	_, body := e.do(t, http.MethodPost, "/api/agents/"+id+"/tasks", map[string]any{
		"name": docproc.OpExtractText,
	})
	taskID := body["task_id"].(string)

	resp, _ := e.do(t, http.MethodDelete, "/api/agents/"+id+"/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/api/agents/"+id+"/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAIEndpoints(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/api/ai/generate", map[string]any{"prompt": "hola"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["text"], "AgentHub")

	resp, _ = e.do(t, http.MethodPost, "/api/ai/generate", map[string]any{"prompt": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/api/ai/analyze", map[string]any{
		"text": "Informe trimestral con conclusiones",
		"type": "classification",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "informe", body["category"])
}

func TestSystemStatsAndEvents(t *testing.T) {
	e := newEnv(t)
	id := e.createAgent(t)

	_, body := e.do(t, http.MethodGet, "/api/stats", nil)
	agents, ok := body["agents"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), agents["total"])
	assert.Contains(t, body, "ai")

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/api/events/history?limit=10", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hist []map[string]any
	require.NoError(t, json.Unmarshal(raw, &hist))
	require.NotEmpty(t, hist)
	found := false
	for _, ev := range hist {
		if ev["type"] == string(events.TypeAgentCreated) && ev["agent_id"] == id {
			found = true
		}
	}
	assert.True(t, found, fmt.Sprintf("agent_created event for %s not in history", id))
}

func TestVersionEndpoint(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test", body["version"])
}
