// Package sessionstore provides orchestration session persistence and event
// streaming.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// Common errors returned by Store implementations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// Store defines the interface for session persistence and event streaming.
// Implementations must be safe for concurrent use.
type Store interface {
	// Session lifecycle
	CreateSession(ctx context.Context, session *types.OrchestrationSession) error
	GetSession(ctx context.Context, id string) (*types.OrchestrationSession, error)
	ListSessions(ctx context.Context) ([]*types.SessionMeta, error)

	// SaveSession replaces the stored snapshot of an existing session.
	SaveSession(ctx context.Context, session *types.OrchestrationSession) error

	// Live progress while the engine runs
	UpdateAssignmentState(ctx context.Context, id string, step int, status types.AssignmentStatus) error
	AppendResult(ctx context.Context, id string, result *types.AgentExecutionResult) error

	// Event streaming
	// AppendEvent adds an event to the session's stream and returns the created event.
	AppendEvent(ctx context.Context, id string, input *types.EventInput) (*types.Event, error)

	// GetEventsSince returns events after the given event ID (exclusive).
	// If lastEventID is empty, returns all events from the beginning.
	GetEventsSince(ctx context.Context, id string, lastEventID string) ([]*types.Event, error)

	// Subscribe returns a channel that receives new events for the session.
	// The cleanup function must be called when done to release resources.
	Subscribe(ctx context.Context, id string) (<-chan *types.Event, func(), error)

	// Diagnostics
	AdapterInfo(ctx context.Context) (map[string]interface{}, error)
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}

// Config holds configuration for Store implementations.
type Config struct {
	// Maximum number of events to keep per session (ring buffer)
	EventMaxLen int64

	// TTL for finished sessions (0 = keep forever)
	TTL time.Duration
}

// DefaultConfig returns sensible defaults for Store configuration.
func DefaultConfig() *Config {
	return &Config{
		EventMaxLen: 5000,
		TTL:         24 * time.Hour,
	}
}
