// Package registry provides agent registration and discovery.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/validator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// Common errors returned by AgentRegistry implementations.
var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentExists   = errors.New("agent already exists")
	ErrReadOnly      = errors.New("registry is read-only")
	ErrInvalidAgent  = errors.New("invalid agent")
)

var schemas = validator.MustNew()

// Agent represents a registered agent in the system.
type Agent struct {
	// ID is the unique identifier (e.g., "agentos.weather")
	ID string `json:"id"`

	// Name is the human-readable name
	Name string `json:"name"`

	// Version is the agent version (semver recommended)
	Version string `json:"version,omitempty"`

	// Capabilities are tags describing what the agent can do
	Capabilities []string `json:"capabilities,omitempty"`

	// Status is the liveness last reported for the agent
	Status types.AgentStatus `json:"status"`

	// Endpoint is where the agent is invoked (empty = transport default)
	Endpoint string `json:"endpoint,omitempty"`

	// Description provides details about the agent
	Description string `json:"description,omitempty"`

	// Metadata holds additional key-value pairs
	Metadata map[string]string `json:"metadata,omitempty"`

	// LastSeen is when the agent last reported its status
	LastSeen *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	if a.Metadata != nil {
		c.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	if a.LastSeen != nil {
		t := *a.LastSeen
		c.LastSeen = &t
	}
	return &c
}

// Descriptor returns the engine's read-only view of the agent.
func (a *Agent) Descriptor() types.AgentDescriptor {
	status := a.Status
	if status == "" {
		status = types.AgentStatusOnline
	}
	d := types.AgentDescriptor{
		ID:             a.ID,
		Name:           a.Name,
		CapabilityTags: types.NormalizeTags(a.Capabilities),
		Status:         status,
		Endpoint:       a.Endpoint,
	}
	if len(a.Metadata) > 0 {
		d.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			d.Metadata[k] = v
		}
	}
	return d
}

// CreateAgentRequest is the input for registering a new agent.
type CreateAgentRequest struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Version      string            `json:"version,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Status       types.AgentStatus `json:"status,omitempty"`
	Endpoint     string            `json:"endpoint,omitempty"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UpdateAgentRequest is the input for updating an existing agent.
type UpdateAgentRequest struct {
	Name         *string            `json:"name,omitempty"`
	Version      *string            `json:"version,omitempty"`
	Capabilities []string           `json:"capabilities,omitempty"`
	Status       *types.AgentStatus `json:"status,omitempty"`
	Endpoint     *string            `json:"endpoint,omitempty"`
	Description  *string            `json:"description,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

// ListOptions configures list queries.
type ListOptions struct {
	// Capabilities filters agents that have ALL specified capabilities
	Capabilities []string

	// Status filters agents by liveness (empty = any)
	Status types.AgentStatus

	// Limit is the maximum number of agents to return (0 = no limit)
	Limit int

	// Offset is the number of agents to skip (for pagination)
	Offset int
}

// AgentRegistry defines the interface for agent registration and discovery.
// Implementations must be safe for concurrent use.
type AgentRegistry interface {
	// Create registers a new agent. Returns ErrAgentExists if ID is taken.
	Create(ctx context.Context, req *CreateAgentRequest) (*Agent, error)

	// Get retrieves an agent by ID. Returns ErrAgentNotFound if not found.
	Get(ctx context.Context, id string) (*Agent, error)

	// Update modifies an existing agent. Returns ErrAgentNotFound if not found.
	Update(ctx context.Context, id string, req *UpdateAgentRequest) (*Agent, error)

	// Delete removes an agent. Returns ErrAgentNotFound if not found.
	Delete(ctx context.Context, id string) error

	// List returns all agents matching the options, ordered by ID.
	List(ctx context.Context, opts *ListOptions) ([]*Agent, error)

	// Exists checks if an agent with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Ping reports whether the registry backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources.
	Close() error
}

// Validate checks if a CreateAgentRequest is valid.
func (r *CreateAgentRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: agent ID is required", ErrInvalidAgent)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidAgent)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal agent: %w", err)
	}
	if res := schemas.ValidateAgentJSON(data); !res.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidAgent, res.Error())
	}
	return nil
}

// newAgent builds a stored agent from a validated request.
func newAgent(req *CreateAgentRequest, now time.Time) *Agent {
	status := req.Status
	if status == "" {
		status = types.AgentStatusOnline
	}
	a := &Agent{
		ID:           req.ID,
		Name:         req.Name,
		Version:      req.Version,
		Capabilities: append([]string(nil), req.Capabilities...),
		Status:       status,
		Endpoint:     req.Endpoint,
		Description:  req.Description,
		Metadata:     req.Metadata,
		LastSeen:     &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return a
}

// applyUpdate applies the non-nil fields of req to agent.
func applyUpdate(agent *Agent, req *UpdateAgentRequest, now time.Time) error {
	if req.Status != nil {
		switch *req.Status {
		case types.AgentStatusOnline, types.AgentStatusDegraded, types.AgentStatusOffline:
		default:
			return fmt.Errorf("%w: unknown status %q", ErrInvalidAgent, *req.Status)
		}
		agent.Status = *req.Status
		agent.LastSeen = &now
	}
	if req.Name != nil {
		agent.Name = *req.Name
	}
	if req.Version != nil {
		agent.Version = *req.Version
	}
	if req.Capabilities != nil {
		agent.Capabilities = append([]string(nil), req.Capabilities...)
	}
	if req.Endpoint != nil {
		agent.Endpoint = *req.Endpoint
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.Metadata != nil {
		agent.Metadata = req.Metadata
	}
	agent.UpdatedAt = now
	return nil
}

// selectAgents filters, orders and pages agents per opts.
func selectAgents(all []*Agent, opts *ListOptions) []*Agent {
	if opts == nil {
		opts = &ListOptions{}
	}

	agents := make([]*Agent, 0, len(all))
	for _, agent := range all {
		if len(opts.Capabilities) > 0 && !hasAllCapabilities(agent.Capabilities, opts.Capabilities) {
			continue
		}
		if opts.Status != "" && agent.Status != opts.Status {
			continue
		}
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

	// Apply offset and limit
	if opts.Offset > 0 {
		if opts.Offset >= len(agents) {
			return []*Agent{}
		}
		agents = agents[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(agents) {
		agents = agents[:opts.Limit]
	}
	return agents
}

// hasAllCapabilities checks if agent has all required capabilities.
func hasAllCapabilities(agentCaps, required []string) bool {
	capSet := make(map[string]bool, len(agentCaps))
	for _, c := range types.NormalizeTags(agentCaps) {
		capSet[c] = true
	}
	for _, req := range types.NormalizeTags(required) {
		if !capSet[req] {
			return false
		}
	}
	return true
}
