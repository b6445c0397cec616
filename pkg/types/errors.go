package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match with errors.Is against an *OrchestrationError.
var (
	ErrAnalysisParse      = errors.New("analysis parse error")
	ErrNoAgentsAvailable  = errors.New("no agents available")
	ErrAgentInvocation    = errors.New("agent invocation error")
	ErrAgentTimeout       = errors.New("agent timeout")
	ErrCircularDependency = errors.New("circular dependency")
	ErrSessionTimeout     = errors.New("session timeout")
)

// OrchestrationError carries a kind plus the context needed to report it.
type OrchestrationError struct {
	Kind    error
	Msg     string
	AgentID string
	Step    int

	// Incomplete lists agents whose assignments never reached a terminal state.
	Incomplete []string

	Err error
}

func (e *OrchestrationError) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("orchestration error")
	}
	if e.Step > 0 {
		fmt.Fprintf(&b, " (step %d", e.Step)
		if e.AgentID != "" {
			fmt.Fprintf(&b, ", agent %s", e.AgentID)
		}
		b.WriteString(")")
	} else if e.AgentID != "" {
		fmt.Fprintf(&b, " (agent %s)", e.AgentID)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches on the error kind.
func (e *OrchestrationError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

// KindName returns a stable identifier for the error kind, suitable for
// API payloads and metric labels.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAnalysisParse):
		return "AnalysisParseError"
	case errors.Is(err, ErrNoAgentsAvailable):
		return "NoAgentsAvailableError"
	case errors.Is(err, ErrAgentTimeout):
		return "AgentTimeoutError"
	case errors.Is(err, ErrAgentInvocation):
		return "AgentInvocationError"
	case errors.Is(err, ErrCircularDependency):
		return "CircularDependencyError"
	case errors.Is(err, ErrSessionTimeout):
		return "SessionTimeoutError"
	default:
		return "InternalError"
	}
}

// NewAnalysisParseError wraps a failure to read model output as an analysis.
func NewAnalysisParseError(msg string, err error) error {
	return &OrchestrationError{Kind: ErrAnalysisParse, Msg: msg, Err: err}
}

// NewAgentInvocationError reports a failed agent call.
func NewAgentInvocationError(step int, agentID, msg string, err error) error {
	return &OrchestrationError{Kind: ErrAgentInvocation, Step: step, AgentID: agentID, Msg: msg, Err: err}
}

// NewAgentTimeoutError reports an agent call that exceeded its budget.
func NewAgentTimeoutError(step int, agentID string, err error) error {
	return &OrchestrationError{Kind: ErrAgentTimeout, Step: step, AgentID: agentID, Err: err}
}

// NewCircularDependencyError reports a graph that cannot make progress.
func NewCircularDependencyError(msg string, incomplete []string) error {
	return &OrchestrationError{Kind: ErrCircularDependency, Msg: msg, Incomplete: incomplete}
}

// NewSessionTimeoutError reports a session that ran out of budget.
func NewSessionTimeoutError(msg string, incomplete []string) error {
	return &OrchestrationError{Kind: ErrSessionTimeout, Msg: msg, Incomplete: incomplete}
}

// NewNoAgentsAvailableError reports a registry with no usable agents.
func NewNoAgentsAvailableError(msg string, err error) error {
	return &OrchestrationError{Kind: ErrNoAgentsAvailable, Msg: msg, Err: err}
}
