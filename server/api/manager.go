// Package api defines the REST API handlers for the AgentHub server.
package api

import (
	"fmt"
	"sync"

	"github.com/agentichub/agenthub/agent"
	"github.com/agentichub/agenthub/ai"
	"github.com/agentichub/agenthub/archive"
	"github.com/agentichub/agenthub/docproc"
	"github.com/agentichub/agenthub/events"
)

// Manager owns the live agents and the collaborators the handlers act
// on. It is built once by the composition root.
type Manager struct {
	Registry *agent.Registry
	Factory  *agent.Factory
	Bus      *events.Bus
	AI       *ai.Service
	Archive  *archive.Store // optional, nil disables the archive fallback

	mu    sync.Mutex
	procs map[string]*docproc.Processor
}

// NewManager creates a Manager around the given collaborators.
func NewManager(reg *agent.Registry, f *agent.Factory, bus *events.Bus, svc *ai.Service, store *archive.Store) *Manager {
	return &Manager{
		Registry: reg,
		Factory:  f,
		Bus:      bus,
		AI:       svc,
		Archive:  store,
		procs:    make(map[string]*docproc.Processor),
	}
}

// TrackProcessor remembers the document processor backing an agent so
// the stats endpoint can report its counters. Intended as the factory
// track callback.
func (m *Manager) TrackProcessor(agentID string, p *docproc.Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[agentID] = p
}

// Processor returns the document processor backing an agent, if any.
func (m *Manager) Processor(agentID string) (*docproc.Processor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.procs[agentID]
	return p, ok
}

// CreateAgent builds an agent through the factory, registers it, and
// starts it.
func (m *Manager) CreateAgent(typeName, name, description string, settings map[string]any) (*agent.Agent, error) {
	a, err := m.Factory.Create(typeName, name, description, settings)
	if err != nil {
		return nil, err
	}
	m.Registry.Register(a)
	a.Start()
	m.Bus.Publish(events.Event{Type: events.TypeAgentCreated, AgentID: a.ID(), AgentName: a.Name()})
	return a, nil
}

// DeleteAgent removes an agent from the registry and closes it.
func (m *Manager) DeleteAgent(id string) error {
	a := m.Registry.Unregister(id)
	if a == nil {
		return fmt.Errorf("agent %s not found", id)
	}
	a.Close()

	m.mu.Lock()
	delete(m.procs, id)
	m.mu.Unlock()

	m.Bus.Publish(events.Event{Type: events.TypeAgentDeleted, AgentID: id, AgentName: a.Name()})
	return nil
}
