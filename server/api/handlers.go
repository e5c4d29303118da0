package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentichub/agenthub/agent"
	"github.com/agentichub/agenthub/ai"
	"github.com/agentichub/agenthub/docproc"
	"github.com/agentichub/agenthub/events"
)

const (
	maxUploadBytes = 100 << 20

	// extractFollowUpWait bounds how long the auto-classify watcher
	// polls for the extraction result.
	extractFollowUpWait = 2 * time.Minute
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Manager   *Manager
	Logger    *slog.Logger
	Version   string
	UploadDir string
	StartAt   time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/agents", h.listAgents)
	mux.HandleFunc("POST /api/agents", h.createAgent)
	mux.HandleFunc("GET /api/agents/types", h.agentTypes)
	mux.HandleFunc("GET /api/agents/{id}", h.getAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", h.deleteAgent)
	mux.HandleFunc("POST /api/agents/{id}/start", h.startAgent)
	mux.HandleFunc("POST /api/agents/{id}/stop", h.stopAgent)
	mux.HandleFunc("POST /api/agents/{id}/restart", h.restartAgent)
	mux.HandleFunc("GET /api/agents/{id}/stats", h.agentStats)

	mux.HandleFunc("POST /api/agents/{id}/tasks", h.submitTask)
	mux.HandleFunc("GET /api/agents/{id}/tasks", h.listTasks)
	mux.HandleFunc("GET /api/agents/{id}/tasks/{taskID}", h.taskResult)
	mux.HandleFunc("DELETE /api/agents/{id}/tasks/{taskID}", h.cancelTask)

	mux.HandleFunc("POST /api/agents/{id}/documents", h.uploadDocument)
	mux.HandleFunc("POST /api/agents/{id}/documents/batch", h.uploadBatch)

	mux.HandleFunc("POST /api/ai/generate", h.aiGenerate)
	mux.HandleFunc("POST /api/ai/analyze", h.aiAnalyze)

	mux.HandleFunc("GET /api/stats", h.systemStats)
	mux.HandleFunc("GET /api/events/history", h.eventHistory)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) agentOr404(w http.ResponseWriter, r *http.Request) *agent.Agent {
	a, ok := h.Manager.Registry.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return nil
	}
	return a
}

// --- Agent handlers ---

func (h *Handlers) listAgents(w http.ResponseWriter, _ *http.Request) {
	list := h.Manager.Registry.List()
	out := make([]agent.StatusSnapshot, 0, len(list))
	for _, a := range list {
		out = append(out, a.Status())
	}
	writeJSON(w, http.StatusOK, out)
}

type createAgentRequest struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings"`
}

func (h *Handlers) createAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "type and name are required")
		return
	}

	a, err := h.Manager.CreateAgent(req.Type, req.Name, req.Description, req.Settings)
	if err != nil {
		var serr *agent.SettingsError
		switch {
		case errors.Is(err, agent.ErrUnknownType), errors.As(err, &serr):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, a.Status())
}

func (h *Handlers) agentTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": h.Manager.Factory.Types()})
}

func (h *Handlers) getAgent(w http.ResponseWriter, r *http.Request) {
	if a := h.agentOr404(w, r); a != nil {
		writeJSON(w, http.StatusOK, a.Status())
	}
}

func (h *Handlers) deleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.DeleteAgent(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) startAgent(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}
	a.Start()
	h.Manager.Bus.Publish(events.Event{Type: events.TypeAgentStarted, AgentID: a.ID(), AgentName: a.Name()})
	writeJSON(w, http.StatusOK, map[string]string{"status": string(agent.StatusIdle)})
}

func (h *Handlers) stopAgent(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}
	a.Stop()
	h.Manager.Bus.Publish(events.Event{Type: events.TypeAgentStopped, AgentID: a.ID(), AgentName: a.Name()})
	writeJSON(w, http.StatusOK, map[string]string{"status": string(agent.StatusStopped)})
}

func (h *Handlers) restartAgent(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}
	a.Restart()
	h.Manager.Bus.Publish(events.Event{Type: events.TypeAgentStarted, AgentID: a.ID(), AgentName: a.Name()})
	writeJSON(w, http.StatusOK, map[string]string{"status": string(agent.StatusIdle)})
}

func (h *Handlers) agentStats(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}
	snapshot := a.Status()
	out := map[string]any{
		"agent":   snapshot,
		"metrics": snapshot.Metrics,
	}
	if p, ok := h.Manager.Processor(a.ID()); ok {
		out["processing"] = p.Stats()
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Task handlers ---

type submitTaskRequest struct {
	Name     string         `json:"name"`
	Payload  map[string]any `json:"payload"`
	Priority string         `json:"priority"`
}

func (h *Handlers) submitTask(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}

	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "task name is required")
		return
	}

	taskID, err := a.Submit(req.Name, req.Payload, agent.ParsePriority(req.Priority))
	if err != nil {
		if errors.Is(err, agent.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.Manager.Bus.Publish(events.Event{
		Type: events.TypeTaskQueued, AgentID: a.ID(), AgentName: a.Name(),
		TaskID: taskID, TaskName: req.Name,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}
	queue := a.Queue()
	if queue == nil {
		queue = []agent.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": a.ID(),
		"tasks":    queue,
	})
}

func (h *Handlers) taskResult(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}
	taskID := r.PathValue("taskID")

	result, err := a.Result(taskID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"task_id": taskID,
			"status":  "completed",
			"result":  result,
		})
	case errors.Is(err, agent.ErrTaskNotDone):
		writeJSON(w, http.StatusOK, map[string]any{
			"task_id": taskID,
			"status":  "pending",
		})
	case errors.Is(err, agent.ErrTaskNotFound):
		if h.Manager.Archive != nil {
			if entry, aerr := h.Manager.Archive.Get(taskID); aerr == nil {
				status := "completed"
				if entry.Error != "" {
					status = "failed"
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"task_id":  taskID,
					"status":   status,
					"result":   entry.Result,
					"error":    entry.Error,
					"archived": true,
				})
				return
			}
		}
		writeError(w, http.StatusNotFound, "task not found")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"task_id": taskID,
			"status":  "failed",
			"error":   err.Error(),
		})
	}
}

func (h *Handlers) cancelTask(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}

	err := a.Cancel(r.PathValue("taskID"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, agent.ErrTaskRunning):
		writeError(w, http.StatusConflict, "task is currently running")
	case errors.Is(err, agent.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Document handlers ---

func (h *Handlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	path, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.Logger.Error("save upload", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	taskID, err := a.Submit(docproc.OpExtractText, map[string]any{"file_path": path}, agent.PriorityHigh)
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	h.Manager.Bus.Publish(events.Event{
		Type: events.TypeTaskQueued, AgentID: a.ID(), AgentName: a.Name(),
		TaskID: taskID, TaskName: docproc.OpExtractText,
	})

	if h.autoClassifyEnabled(a.ID(), r.FormValue("auto_classify")) {
		go h.classifyWhenExtracted(a, taskID, header.Filename)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id":   taskID,
		"file_name": header.Filename,
	})
}

// autoClassifyEnabled resolves the classification follow-up toggle: the
// processor's auto_classify setting, overridden by the form field when
// the client sends one.
func (h *Handlers) autoClassifyEnabled(agentID, formValue string) bool {
	enabled := false
	if p, ok := h.Manager.Processor(agentID); ok {
		enabled = p.AutoClassify()
	}
	switch strings.ToLower(formValue) {
	case "true", "1":
		enabled = true
	case "false", "0":
		enabled = false
	}
	return enabled
}

// classifyWhenExtracted waits for an extraction task to finish and
// queues a classify_document follow-up over the extracted text.
func (h *Handlers) classifyWhenExtracted(a *agent.Agent, extractID, fileName string) {
	deadline := time.Now().Add(extractFollowUpWait)
	for {
		result, err := a.Result(extractID)
		switch {
		case errors.Is(err, agent.ErrTaskNotDone):
			if time.Now().After(deadline) {
				h.Logger.Warn("auto-classify follow-up timed out",
					slog.String("task_id", extractID))
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		case err != nil:
			// Extraction failed or the task is gone; nothing to classify.
			return
		}

		doc, ok := result.(map[string]any)
		if !ok {
			return
		}
		text, _ := doc["text"].(string)
		if strings.TrimSpace(text) == "" {
			return
		}

		classifyID, err := a.Submit(docproc.OpClassify, map[string]any{
			"text":      text,
			"file_name": fileName,
		}, agent.PriorityMedium)
		if err != nil {
			h.Logger.Error("queue auto-classify follow-up", slog.Any("err", err))
			return
		}
		h.Manager.Bus.Publish(events.Event{
			Type: events.TypeTaskQueued, AgentID: a.ID(), AgentName: a.Name(),
			TaskID: classifyID, TaskName: docproc.OpClassify,
		})
		h.Logger.Info("auto-classify follow-up queued",
			slog.String("extract_task", extractID), slog.String("classify_task", classifyID))
		return
	}
}

func (h *Handlers) uploadBatch(w http.ResponseWriter, r *http.Request) {
	a := h.agentOr404(w, r)
	if a == nil {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "missing files field")
		return
	}

	paths := make([]string, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable upload "+header.Filename)
			return
		}
		path, err := h.saveUpload(f, header.Filename)
		f.Close()
		if err != nil {
			h.Logger.Error("save upload", slog.Any("err", err))
			writeError(w, http.StatusInternalServerError, "could not store upload")
			return
		}
		paths = append(paths, path)
	}

	payload := map[string]any{"file_paths": paths}
	taskID, err := a.Submit(docproc.OpProcessBatch, payload, agent.PriorityMedium)
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	h.Manager.Bus.Publish(events.Event{
		Type: events.TypeTaskQueued, AgentID: a.ID(), AgentName: a.Name(),
		TaskID: taskID, TaskName: docproc.OpProcessBatch,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id":    taskID,
		"file_count": len(paths),
	})
}

// saveUpload stores an uploaded file under a unique name in the upload
// directory and returns its path.
func (h *Handlers) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	base := filepath.Base(name)
	path := filepath.Join(h.UploadDir, uuid.NewString()[:8]+"_"+base)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, nil
}

// --- AI handlers ---

func (h *Handlers) aiGenerate(w http.ResponseWriter, r *http.Request) {
	if h.Manager.AI == nil {
		writeError(w, http.StatusServiceUnavailable, "ai service not configured")
		return
	}
	var req ai.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	text, err := h.Manager.AI.Generate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type analyzeRequest struct {
	Text string `json:"text"`
	Type string `json:"type"` // general | sentiment | entities | classification
}

func (h *Handlers) aiAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.Manager.AI == nil {
		writeError(w, http.StatusServiceUnavailable, "ai service not configured")
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var (
		result any
		err    error
	)
	switch req.Type {
	case "sentiment":
		result, err = h.Manager.AI.AnalyzeSentiment(r.Context(), req.Text)
	case "entities":
		result, err = h.Manager.AI.ExtractEntities(r.Context(), req.Text)
	case "classification":
		result, err = h.Manager.AI.Classify(r.Context(), req.Text, nil)
	default:
		result, err = h.Manager.AI.Analyze(r.Context(), req.Text)
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- System handlers ---

func (h *Handlers) systemStats(w http.ResponseWriter, _ *http.Request) {
	agents := h.Manager.Registry.List()
	byStatus := map[string]int{}
	totalCompleted, totalFailed, queued := 0, 0, 0
	for _, a := range agents {
		s := a.Status()
		byStatus[string(s.Status)]++
		totalCompleted += s.Metrics.TasksCompleted
		totalFailed += s.Metrics.TasksFailed
		queued += s.TasksInQueue
	}

	out := map[string]any{
		"agents": map[string]any{
			"total":     len(agents),
			"by_status": byStatus,
		},
		"tasks": map[string]any{
			"completed": totalCompleted,
			"failed":    totalFailed,
			"queued":    queued,
		},
		"uptime_seconds": time.Since(h.StartAt).Seconds(),
	}
	if h.Manager.AI != nil {
		out["ai"] = h.Manager.AI.Stats()
	}
	if h.Manager.Archive != nil {
		if n, err := h.Manager.Archive.Count(""); err == nil {
			out["archived_tasks"] = n
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) eventHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	hist := h.Manager.Bus.History(limit)
	if hist == nil {
		hist = []events.Event{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
}
