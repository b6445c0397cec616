package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// Client is the orchestrator's read-only view of a registry.
type Client struct {
	registry AgentRegistry
	filter   *Filter
	logger   *slog.Logger
}

// NewClient wraps registry. filter may be nil.
func NewClient(registry AgentRegistry, filter *Filter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{registry: registry, filter: filter, logger: logger}
}

// Registry returns the underlying registry for administration.
func (c *Client) Registry() AgentRegistry {
	return c.registry
}

// ListAgents returns a snapshot of the usable agents ordered by ID. Offline
// agents and agents rejected by the filter are excluded. An agent whose
// filter evaluation fails is excluded and logged.
func (c *Client) ListAgents(ctx context.Context) ([]types.AgentDescriptor, error) {
	agents, err := c.registry.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	out := make([]types.AgentDescriptor, 0, len(agents))
	for _, agent := range agents {
		d := agent.Descriptor()
		if d.Status == types.AgentStatusOffline {
			continue
		}
		ok, err := c.filter.Match(agent)
		if err != nil {
			c.logger.Warn("agent filter failed", slog.String("agent_id", agent.ID), slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Ping reports whether the registry is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.registry.Ping(ctx)
}
