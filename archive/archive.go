// Package archive persists finished tasks evicted from agents' bounded
// completed rings in a SQLite database.
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/agentichub/agenthub/agent"
)

const schema = `
CREATE TABLE IF NOT EXISTS archived_tasks (
	id           TEXT PRIMARY KEY,
	agent_id     TEXT NOT NULL,
	name         TEXT NOT NULL,
	priority     INTEGER NOT NULL DEFAULT 2,
	result       TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	started_at   DATETIME,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_archived_tasks_agent ON archived_tasks(agent_id);
`

// Store is a SQLite-backed archive of finished tasks. It implements
// agent.Archiver.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Archive persists one finished task. Re-archiving the same task id
// replaces the previous row.
func (s *Store) Archive(agentID string, t *agent.Task) error {
	resultJSON := ""
	if t.Result != nil {
		raw, err := json.Marshal(t.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		resultJSON = string(raw)
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO archived_tasks
			(id, agent_id, name, priority, result, error, created_at, started_at, completed_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, agentID, t.Name, int(t.Priority),
		resultJSON, t.Error,
		t.CreatedAt.UTC(), nullTime(t.StartedAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return nil
}

// Entry is one archived task row.
type Entry struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agent_id"`
	Name        string     `json:"name"`
	Priority    string     `json:"priority"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Get retrieves an archived task by id. Returns agent.ErrTaskNotFound
// when the id was never archived.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, agent_id, name, priority, result, error, created_at, started_at, completed_at
		FROM archived_tasks WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, agent.ErrTaskNotFound
	}
	return e, err
}

// Filter narrows List results.
type Filter struct {
	AgentID string
	Failed  *bool
	Limit   int
	Offset  int
}

// List returns archived tasks matching the filter, newest first.
func (s *Store) List(filter Filter) ([]*Entry, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT id, agent_id, name, priority, result, error, created_at, started_at, completed_at
		FROM archived_tasks WHERE 1=1`)
	args := []any{}

	if filter.AgentID != "" {
		q.WriteString(" AND agent_id=?")
		args = append(args, filter.AgentID)
	}
	if filter.Failed != nil {
		if *filter.Failed {
			q.WriteString(" AND error != ''")
		} else {
			q.WriteString(" AND error = ''")
		}
	}
	q.WriteString(" ORDER BY completed_at DESC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list archived tasks: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of archived tasks for an agent, or all
// tasks when agentID is empty.
func (s *Store) Count(agentID string) (int, error) {
	var n int
	var err error
	if agentID == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM archived_tasks`).Scan(&n)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM archived_tasks WHERE agent_id=?`, agentID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count archived tasks: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows for scanEntry.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var priority int
	var resultJSON string
	var startedAt, completedAt sql.NullTime

	err := s.Scan(
		&e.ID, &e.AgentID, &e.Name, &priority,
		&resultJSON, &e.Error,
		&e.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Priority = agent.Priority(priority).String()
	if resultJSON != "" {
		_ = json.Unmarshal([]byte(resultJSON), &e.Result)
	}
	if startedAt.Valid {
		e.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
