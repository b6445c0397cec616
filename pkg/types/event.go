package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType categorizes the kind of event.
type EventType string

const (
	EventTypeHello            EventType = "hello"
	EventTypeSessionStatus    EventType = "session_status"
	EventTypeAnalysis         EventType = "analysis"
	EventTypePlan             EventType = "plan"
	EventTypeAssignmentStatus EventType = "assignment_status"
	EventTypeHandoff          EventType = "handoff"
	EventTypeAgentResult      EventType = "agent_result"
	EventTypeConsolidated     EventType = "consolidated"
	EventTypeLog              EventType = "log"
	EventTypeStreamEnd        EventType = "stream_end"
)

// LogLevel represents the severity of a log event.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// Event represents a single event in a session's event stream.
type Event struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Step      int             `json:"step,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventInput is used when appending new events.
type EventInput struct {
	Type EventType   `json:"type"`
	Step int         `json:"step,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// AssignmentStatusEvent is the payload of assignment_status events.
type AssignmentStatusEvent struct {
	Step    int              `json:"step"`
	AgentID string           `json:"agent_id"`
	From    AssignmentStatus `json:"from"`
	To      AssignmentStatus `json:"to"`
}

// HandoffEvent is the payload of handoff events.
type HandoffEvent struct {
	Step       int    `json:"step"`
	AgentID    string `json:"agent_id"`
	FromSteps  []int  `json:"from_steps"`
	InputBytes int    `json:"input_bytes"`
}

// ToSSE formats the event for Server-Sent Events protocol.
// Format: id: <id>\nevent: <type>\ndata: <json>\n\n
func (e *Event) ToSSE() []byte {
	data, _ := json.Marshal(e)
	return []byte(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data))
}
