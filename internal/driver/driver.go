// Package driver provides the transports used to invoke agents and the
// emitter the engine uses to publish session events.
package driver

import (
	"context"
	"errors"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// ErrNoEndpoint is returned when an agent cannot be addressed by a transport.
var ErrNoEndpoint = errors.New("agent has no endpoint")

// Invoker defines the interface for invoking a single agent.
// Implementations may use HTTP, NATS request/reply, or other transports.
type Invoker interface {
	// Invoke sends the task text to the agent and blocks until it answers.
	// A transport failure is returned as an error; an agent that answered
	// but could not do the work returns a result with Success=false.
	// Timeouts are enforced by the caller through ctx.
	Invoke(ctx context.Context, agent types.AgentDescriptor, task string) (*types.InvocationResult, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, agent types.AgentDescriptor, task string) (*types.InvocationResult, error)

func (f InvokerFunc) Invoke(ctx context.Context, agent types.AgentDescriptor, task string) (*types.InvocationResult, error) {
	return f(ctx, agent, task)
}

// EventEmitter is called by the engine to publish session events.
type EventEmitter interface {
	// EmitEvent appends an event to the session's stream.
	EmitEvent(ctx context.Context, sessionID string, input *types.EventInput) error
}

// InvokeRequest is the payload sent to an agent.
type InvokeRequest struct {
	AgentID   string `json:"agent_id"`
	Task      string `json:"task"`
	SessionID string `json:"session_id,omitempty"`
	Step      int    `json:"step,omitempty"`
}

// InvokeResponse is the payload an agent answers with.
type InvokeResponse struct {
	Output     string   `json:"output"`
	Success    *bool    `json:"success,omitempty"`
	Error      string   `json:"error,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// toResult converts a wire response. A missing success flag means success
// unless an error was reported.
func (r *InvokeResponse) toResult() *types.InvocationResult {
	success := r.Error == ""
	if r.Success != nil {
		success = *r.Success
	}
	return &types.InvocationResult{
		Output:     r.Output,
		Success:    success,
		Error:      r.Error,
		Confidence: r.Confidence,
	}
}

type callKey struct{}

// CallInfo identifies the session step an invocation belongs to.
type CallInfo struct {
	SessionID string
	Step      int
}

// WithCallInfo attaches session and step identifiers for transports that
// forward them to the agent.
func WithCallInfo(ctx context.Context, sessionID string, step int) context.Context {
	return context.WithValue(ctx, callKey{}, CallInfo{SessionID: sessionID, Step: step})
}

func callInfo(ctx context.Context) CallInfo {
	info, _ := ctx.Value(callKey{}).(CallInfo)
	return info
}

func newRequest(ctx context.Context, agent types.AgentDescriptor, task string) InvokeRequest {
	info := callInfo(ctx)
	return InvokeRequest{
		AgentID:   agent.ID,
		Task:      task,
		SessionID: info.SessionID,
		Step:      info.Step,
	}
}
