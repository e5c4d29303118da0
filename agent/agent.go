package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of an agent.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
	StatusError   Status = "error"
	StatusStopped Status = "stopped"
)

const (
	defaultTaskTimeout     = 5 * time.Minute
	defaultMaxQueue        = 64
	defaultRetainCompleted = 128
	restartPause           = 100 * time.Millisecond
)

// HandlerFunc processes one task operation. The context carries the
// configured task deadline; handlers should honor cancellation on
// blocking calls.
type HandlerFunc func(ctx context.Context, t *Task) (any, error)

// Observer is notified once per task outcome, after metrics have been
// updated. Used to feed exporters and the event bus.
type Observer interface {
	TaskDone(agentID, agentName string, t *Task, elapsed time.Duration)
}

// Archiver receives finished tasks evicted from an agent's bounded
// completed ring.
type Archiver interface {
	Archive(agentID string, t *Task) error
}

// Config describes a single agent. Name is required; zero values for
// the limits pick the package defaults.
type Config struct {
	Name            string
	Description     string
	TaskTimeout     time.Duration
	MaxQueue        int
	RetainCompleted int
	Capabilities    []string // defaults to the sorted operation names

	Logger   *slog.Logger
	Observer Observer
	Archive  Archiver
}

func (c *Config) validate() error {
	if c.Name == "" {
		return &SettingsError{Agent: "(unnamed)", Missing: []string{"name"}}
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaultTaskTimeout
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = defaultMaxQueue
	}
	if c.RetainCompleted <= 0 {
		c.RetainCompleted = defaultRetainCompleted
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Agent owns a priority task queue and processes one task at a time
// through a table of typed operation handlers supplied at construction.
// A single consumer goroutine drains the queue; Submit never blocks on
// task completion.
type Agent struct {
	id     string
	cfg    Config
	ops    map[string]HandlerFunc
	caps   []string
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	createdAt time.Time
	startedAt *time.Time
	pending   []*Task
	current   *Task
	done      []*Task

	metrics *Metrics

	wake   chan struct{}
	cancel context.CancelFunc
}

// New validates cfg, builds the agent, and starts its consumer
// goroutine. The agent accepts work immediately; call Close to release
// the consumer when the agent is discarded.
func New(cfg Config, ops map[string]HandlerFunc) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	caps := cfg.Capabilities
	if len(caps) == 0 {
		for name := range ops {
			caps = append(caps, name)
		}
		sort.Strings(caps)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		id:        uuid.NewString(),
		cfg:       cfg,
		ops:       ops,
		caps:      caps,
		status:    StatusIdle,
		createdAt: time.Now(),
		metrics:   &Metrics{},
		wake:      make(chan struct{}, 1),
		cancel:    cancel,
	}
	a.logger = cfg.Logger.With(slog.String("agent", cfg.Name), slog.String("agent_id", a.id))

	go a.run(ctx)
	a.logger.Info("agent initialized")
	return a, nil
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's human-readable name.
func (a *Agent) Name() string { return a.cfg.Name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.cfg.Description }

// Capabilities returns a copy of the agent's capability list.
func (a *Agent) Capabilities() []string {
	out := make([]string, len(a.caps))
	copy(out, a.caps)
	return out
}

// Submit appends a new task to the queue and wakes the consumer. The
// queue stays ordered by priority descending, FIFO within a priority.
// Returns the new task's id without waiting for processing.
func (a *Agent) Submit(name string, payload map[string]any, priority Priority) (string, error) {
	a.mu.Lock()
	if len(a.pending) >= a.cfg.MaxQueue {
		a.mu.Unlock()
		return "", fmt.Errorf("agent %s: %w", a.cfg.Name, ErrQueueFull)
	}
	t := &Task{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	a.pending = append(a.pending, t)
	// Stable sort on priority alone keeps submission order within a
	// priority level.
	sort.SliceStable(a.pending, func(i, j int) bool {
		return a.pending[i].Priority > a.pending[j].Priority
	})
	a.mu.Unlock()

	a.logger.Info("task queued", slog.String("task", name), slog.String("task_id", t.ID),
		slog.String("priority", priority.String()))
	a.signal()
	return t.ID, nil
}

// Result returns the stored result of a finished task. It reports
// ErrTaskNotDone while the task is pending or running, ErrTaskNotFound
// for an unknown id, and a descriptive error for a failed task.
func (a *Agent) Result(taskID string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && a.current.ID == taskID {
		return nil, ErrTaskNotDone
	}
	for _, t := range a.pending {
		if t.ID == taskID {
			return nil, ErrTaskNotDone
		}
	}
	for _, t := range a.done {
		if t.ID == taskID {
			if t.Error != "" {
				return nil, fmt.Errorf("task failed: %s", t.Error)
			}
			return t.Result, nil
		}
	}
	return nil, ErrTaskNotFound
}

// Cancel removes a pending task from the queue. The in-flight task
// cannot be cancelled (ErrTaskRunning); an id the agent has never seen
// or has already finished reports ErrTaskNotFound.
func (a *Agent) Cancel(taskID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && a.current.ID == taskID {
		return ErrTaskRunning
	}
	for i, t := range a.pending {
		if t.ID == taskID {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			a.logger.Info("task cancelled", slog.String("task_id", taskID))
			return nil
		}
	}
	return ErrTaskNotFound
}

// Start enables processing, stamps the start time, and wakes the
// consumer if work is pending. Start also clears a STOPPED status so
// Restart behaves as stop, pause, start.
func (a *Agent) Start() {
	a.mu.Lock()
	if a.current != nil {
		a.status = StatusWorking
	} else {
		a.status = StatusIdle
	}
	now := time.Now()
	a.startedAt = &now
	hasWork := len(a.pending) > 0
	a.mu.Unlock()

	a.logger.Info("agent started")
	if hasWork {
		a.signal()
	}
}

// Stop halts new processing. A task already running finishes (or times
// out); the consumer will not pop another until Start is called again.
func (a *Agent) Stop() {
	a.mu.Lock()
	a.status = StatusStopped
	a.mu.Unlock()
	a.logger.Info("agent stopped")
}

// Restart stops the agent, pauses briefly, and starts it again.
func (a *Agent) Restart() {
	a.Stop()
	time.Sleep(restartPause)
	a.Start()
	a.logger.Info("agent restarted")
}

// Close stops the agent and releases its consumer goroutine.
func (a *Agent) Close() {
	a.Stop()
	a.cancel()
}

// CurrentTask summarizes the in-flight task in a status snapshot.
type CurrentTask struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// StatusSnapshot is a point-in-time view of the agent.
type StatusSnapshot struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CurrentTask  *CurrentTask    `json:"current_task,omitempty"`
	TasksInQueue int             `json:"tasks_in_queue"`
	Capabilities []string        `json:"capabilities"`
	Metrics      MetricsSnapshot `json:"metrics"`
}

// Status returns a snapshot of the agent's state, current task, queue
// depth, capabilities, and metrics.
func (a *Agent) Status() StatusSnapshot {
	a.mu.Lock()
	s := StatusSnapshot{
		ID:           a.id,
		Name:         a.cfg.Name,
		Description:  a.cfg.Description,
		Status:       a.status,
		CreatedAt:    a.createdAt,
		StartedAt:    a.startedAt,
		TasksInQueue: len(a.pending),
		Capabilities: a.Capabilities(),
	}
	if a.current != nil {
		s.CurrentTask = &CurrentTask{
			ID:        a.current.ID,
			Name:      a.current.Name,
			StartedAt: a.current.StartedAt,
		}
	}
	startedAt := a.startedAt
	a.mu.Unlock()

	s.Metrics = a.metrics.Snapshot()
	if startedAt != nil {
		s.Metrics.UptimeSeconds = time.Since(*startedAt).Seconds()
	}
	return s
}

// Queue lists recently finished tasks, the in-flight task, and the
// pending queue in drain order.
func (a *Agent) Queue() []QueueEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries := make([]QueueEntry, 0, len(a.done)+len(a.pending)+1)
	for _, t := range a.done {
		entries = append(entries, queueEntry(t))
	}
	if a.current != nil {
		entries = append(entries, queueEntry(a.current))
	}
	for _, t := range a.pending {
		entries = append(entries, queueEntry(t))
	}
	return entries
}

func queueEntry(t *Task) QueueEntry {
	return QueueEntry{
		ID:        t.ID,
		Name:      t.Name,
		Priority:  t.Priority.String(),
		CreatedAt: t.CreatedAt,
		State:     t.State(),
	}
}

// signal wakes the consumer without blocking. A full wake channel means
// a wakeup is already pending.
func (a *Agent) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// run is the single consumer goroutine. All queue pops happen here, so
// two submissions can never race to drain the same head entry.
func (a *Agent) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.wake:
		}
		for {
			t := a.next()
			if t == nil {
				break
			}
			a.process(ctx, t)
		}
	}
}

// next pops the queue head, or returns nil when the queue is empty or
// the agent is stopped.
func (a *Agent) next() *Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusStopped || len(a.pending) == 0 {
		return nil
	}
	t := a.pending[0]
	a.pending = a.pending[1:]
	a.current = t
	a.status = StatusWorking
	now := time.Now()
	t.StartedAt = &now
	return t
}

// process runs one task through its operation handler under the
// configured timeout and records the outcome. A failure never affects
// other queued tasks.
func (a *Agent) process(ctx context.Context, t *Task) {
	a.logger.Info("task started", slog.String("task", t.Name), slog.String("task_id", t.ID))

	var result any
	var err error
	if h, ok := a.ops[t.Name]; ok {
		result, err = a.invoke(ctx, t, h)
	} else {
		err = fmt.Errorf("unsupported operation: %s", t.Name)
	}

	now := time.Now()
	elapsed := now.Sub(*t.StartedAt)

	a.mu.Lock()
	t.CompletedAt = &now
	if err != nil {
		t.Error = err.Error()
	} else {
		t.Result = result
	}
	evicted := a.finish(t)
	a.current = nil
	if a.status == StatusWorking {
		a.status = StatusIdle
	}
	a.mu.Unlock()

	if err != nil {
		a.metrics.RecordFailure()
		a.logger.Error("task failed", slog.String("task", t.Name),
			slog.String("task_id", t.ID), slog.Any("err", err))
	} else {
		a.metrics.RecordSuccess(elapsed)
		a.logger.Info("task completed", slog.String("task", t.Name),
			slog.String("task_id", t.ID), slog.Duration("elapsed", elapsed))
	}

	a.flush(evicted)
	if a.cfg.Observer != nil {
		a.cfg.Observer.TaskDone(a.id, a.cfg.Name, t, elapsed)
	}
}

// invoke runs the handler bounded by the task timeout. On expiry the
// handler goroutine is abandoned; it is expected to notice the context
// cancellation and unwind on its own.
func (a *Agent) invoke(ctx context.Context, t *Task, h HandlerFunc) (any, error) {
	tctx, cancel := context.WithTimeout(ctx, a.cfg.TaskTimeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := h(tctx, t)
		ch <- outcome{result: r, err: err}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("timeout after %s", a.cfg.TaskTimeout)
	}
}

// finish appends t to the bounded completed ring and returns any tasks
// evicted past the retention limit. Caller holds the lock.
func (a *Agent) finish(t *Task) []*Task {
	a.done = append(a.done, t)
	if n := len(a.done) - a.cfg.RetainCompleted; n > 0 {
		evicted := make([]*Task, n)
		copy(evicted, a.done[:n])
		a.done = append(a.done[:0], a.done[n:]...)
		return evicted
	}
	return nil
}

// flush hands evicted tasks to the archive, if one is attached.
func (a *Agent) flush(evicted []*Task) {
	if a.cfg.Archive == nil || len(evicted) == 0 {
		return
	}
	for _, t := range evicted {
		if err := a.cfg.Archive.Archive(a.id, t); err != nil {
			a.logger.Error("archive task", slog.String("task_id", t.ID), slog.Any("err", err))
		}
	}
}
