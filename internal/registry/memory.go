package registry

import (
	"context"
	"sync"
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// MemoryRegistry implements AgentRegistry using in-memory storage.
// Suitable for testing and local development.
type MemoryRegistry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewMemoryRegistry creates a new in-memory agent registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		agents: make(map[string]*Agent),
	}
}

// DemoAgents are the specialists seeded for local development.
func DemoAgents() []*CreateAgentRequest {
	return []*CreateAgentRequest{
		{
			ID:           "agentos.weather",
			Name:         "Weather Agent",
			Version:      "1.0.0",
			Description:  "Forecasts and climate facts for a place and season",
			Capabilities: []string{"weather", "forecast", "climate", "travel"},
		},
		{
			ID:           "agentos.creative",
			Name:         "Creative Writer",
			Version:      "1.0.0",
			Description:  "Poems, stories and marketing copy",
			Capabilities: []string{"creative", "writing", "poetry", "story"},
		},
		{
			ID:           "agentos.analyst",
			Name:         "Data Analyst",
			Version:      "1.0.0",
			Description:  "Statistics, comparisons and numeric summaries",
			Capabilities: []string{"analysis", "statistics", "math", "data"},
		},
		{
			ID:           "agentos.researcher",
			Name:         "Researcher",
			Version:      "1.0.0",
			Description:  "Background research and summaries",
			Capabilities: []string{"research", "summary", "general"},
		},
		{
			ID:           "agentos.coder",
			Name:         "Code Assistant",
			Version:      "1.0.0",
			Description:  "Writes and explains code",
			Capabilities: []string{"code", "programming", "debugging"},
		},
	}
}

// NewMemoryRegistryWithDefaults creates a registry pre-populated with the demo agents.
func NewMemoryRegistryWithDefaults() *MemoryRegistry {
	r := NewMemoryRegistry()
	now := time.Now().UTC()
	for _, req := range DemoAgents() {
		r.agents[req.ID] = newAgent(req, now)
	}
	return r
}

// Create registers a new agent.
func (r *MemoryRegistry) Create(ctx context.Context, req *CreateAgentRequest) (*Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[req.ID]; exists {
		return nil, ErrAgentExists
	}

	agent := newAgent(req, time.Now().UTC())
	r.agents[req.ID] = agent
	return agent.Clone(), nil
}

// Get retrieves an agent by ID.
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return agent.Clone(), nil
}

// Update modifies an existing agent.
func (r *MemoryRegistry) Update(ctx context.Context, id string, req *UpdateAgentRequest) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}

	updated := agent.Clone()
	if err := applyUpdate(updated, req, time.Now().UTC()); err != nil {
		return nil, err
	}
	r.agents[id] = updated
	return updated.Clone(), nil
}

// SetStatus records a liveness report for an agent.
func (r *MemoryRegistry) SetStatus(ctx context.Context, id string, status types.AgentStatus) error {
	_, err := r.Update(ctx, id, &UpdateAgentRequest{Status: &status})
	return err
}

// Delete removes an agent.
func (r *MemoryRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return ErrAgentNotFound
	}

	delete(r.agents, id)
	return nil
}

// List returns all agents matching the options.
func (r *MemoryRegistry) List(ctx context.Context, opts *ListOptions) ([]*Agent, error) {
	r.mu.RLock()
	all := make([]*Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		all = append(all, agent.Clone())
	}
	r.mu.RUnlock()

	return selectAgents(all, opts), nil
}

// Exists checks if an agent with the given ID exists.
func (r *MemoryRegistry) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.agents[id]
	return ok, nil
}

// Ping always succeeds for the memory registry.
func (r *MemoryRegistry) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the memory registry.
func (r *MemoryRegistry) Close() error {
	return nil
}

var _ AgentRegistry = (*MemoryRegistry)(nil)
