// Package types provides shared types for the orchestrator service.
package types

import (
	"strings"
	"time"
)

// SessionStatus represents the current state of an orchestration session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusPartial   SessionStatus = "partial"
)

// IsTerminal reports whether the session has finished.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusPartial
}

// AssignmentStatus is the execution state of a single agent assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentReady     AssignmentStatus = "ready"
	AssignmentRunning   AssignmentStatus = "running"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentFailed    AssignmentStatus = "failed"
)

// IsTerminal reports whether the assignment has finished (successfully or not).
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentCompleted || s == AssignmentFailed
}

// Complexity is the analyzer's estimate of how hard a query is.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// WorkflowPattern says whether a query needs one or several agents.
type WorkflowPattern string

const (
	PatternSingleAgent WorkflowPattern = "single_agent"
	PatternMultiAgent  WorkflowPattern = "multi_agent"
)

// Strategy is the execution strategy derived from the dependency graph.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyParallel   Strategy = "parallel"
	StrategyHybrid     Strategy = "hybrid"
)

// AgentStatus is the liveness reported by the capability registry.
type AgentStatus string

const (
	AgentStatusOnline   AgentStatus = "online"
	AgentStatusDegraded AgentStatus = "degraded"
	AgentStatusOffline  AgentStatus = "offline"
)

// AnalysisResult is the structured reading of a query. Immutable once produced.
type AnalysisResult struct {
	Domain            string          `json:"domain"`
	Complexity        Complexity      `json:"complexity"`
	WorkflowPattern   WorkflowPattern `json:"workflow_pattern"`
	RequiredExpertise []string        `json:"required_expertise"`
	Confidence        float64         `json:"confidence"`
	Reasoning         string          `json:"reasoning,omitempty"`

	// Fallback is set when the result came from the heuristic default.
	Fallback bool `json:"fallback,omitempty"`
}

// AgentDescriptor is the engine's read-only view of a registered agent.
type AgentDescriptor struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	CapabilityTags []string          `json:"capability_tags"`
	Status         AgentStatus       `json:"status"`
	Endpoint       string            `json:"endpoint,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// DisplayName returns the agent name, or its ID when no name is set.
func (a AgentDescriptor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// WorkflowStep is one unit of work produced by the decomposer.
// Index is 1-based and equals the step's position in the plan.
type WorkflowStep struct {
	Index             int      `json:"index"`
	Task              string   `json:"task"`
	RequiredExpertise []string `json:"required_expertise,omitempty"`

	// Parallel marks a step that does not depend on its predecessor.
	Parallel bool `json:"parallel,omitempty"`

	// DependsOn lists explicit earlier step indices. When empty the
	// dependency is derived from Parallel.
	DependsOn []int `json:"depends_on,omitempty"`
}

// AgentAssignment binds one workflow step to one agent.
type AgentAssignment struct {
	Step      int      `json:"step"`
	Task      string   `json:"task"`
	AgentID   string   `json:"agent_id"`
	AgentName string   `json:"agent_name,omitempty"`
	Score     float64  `json:"score"`
	DependsOn []int    `json:"depends_on"`
	Fallback  bool     `json:"fallback,omitempty"` // chosen by round-robin
	Expertise []string `json:"required_expertise,omitempty"`
}

// ExecutionPlan is the planner's output.
type ExecutionPlan struct {
	Strategy Strategy `json:"strategy"`
	Levels   [][]int  `json:"levels"`
}

// AgentExecutionResult records the outcome of one assignment.
type AgentExecutionResult struct {
	Step       int           `json:"step"`
	AgentID    string        `json:"agent_id"`
	AgentName  string        `json:"agent_name,omitempty"`
	Output     string        `json:"output"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Confidence *float64      `json:"confidence,omitempty"`
	Attempts   int           `json:"attempts"`
}

// InvocationResult is what an agent endpoint returns for one call.
type InvocationResult struct {
	Output     string        `json:"output"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Confidence *float64      `json:"confidence,omitempty"`
}

// Category buckets a result by the shape of its text.
type Category string

const (
	CategoryCode       Category = "code"
	CategoryCreative   Category = "creative"
	CategoryAnalytical Category = "analytical"
	CategoryGeneral    Category = "general"
)

// Segment is one agent's contribution inside a category bucket.
type Segment struct {
	Step      int    `json:"step"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
	Text      string `json:"text"`
}

// ConsolidatedOutput is the categorized, synthesized view of all results.
type ConsolidatedOutput struct {
	Categories    map[Category][]Segment `json:"categories"`
	FinalResponse string                 `json:"final_response"`
	Contributors  []string               `json:"contributors"`
}

// OrchestrationSession is the full state of one orchestration request.
type OrchestrationSession struct {
	ID               string                   `json:"id"`
	Query            string                   `json:"query"`
	Context          map[string]interface{}   `json:"context,omitempty"`
	Status           SessionStatus            `json:"status"`
	Analysis         *AnalysisResult          `json:"analysis,omitempty"`
	Agents           []AgentDescriptor        `json:"agents,omitempty"`
	Steps            []WorkflowStep           `json:"steps,omitempty"`
	Assignments      []AgentAssignment        `json:"assignments,omitempty"`
	States           map[int]AssignmentStatus `json:"assignment_states,omitempty"`
	Plan             *ExecutionPlan           `json:"plan,omitempty"`
	Results          []AgentExecutionResult   `json:"results,omitempty"`
	Consolidated     *ConsolidatedOutput      `json:"consolidated,omitempty"`
	Error            string                   `json:"error,omitempty"`
	ErrorKind        string                   `json:"error_kind,omitempty"`
	IncompleteAgents []string                 `json:"incomplete_agents,omitempty"`
	Metadata         map[string]string        `json:"metadata,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	FinishedAt       *time.Time               `json:"finished_at,omitempty"`
}

// SessionMeta is a lightweight representation of a session for listing.
type SessionMeta struct {
	ID         string        `json:"id"`
	Query      string        `json:"query"`
	Status     SessionStatus `json:"status"`
	Strategy   Strategy      `json:"strategy,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Meta returns the listing view of the session.
func (s *OrchestrationSession) Meta() *SessionMeta {
	m := &SessionMeta{
		ID:         s.ID,
		Query:      s.Query,
		Status:     s.Status,
		Error:      s.Error,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Plan != nil {
		m.Strategy = s.Plan.Strategy
	}
	return m
}

// Clone returns a deep copy suitable for handing to callers.
func (s *OrchestrationSession) Clone() *OrchestrationSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.Context != nil {
		c.Context = make(map[string]interface{}, len(s.Context))
		for k, v := range s.Context {
			c.Context[k] = v
		}
	}
	if s.Analysis != nil {
		a := *s.Analysis
		a.RequiredExpertise = append([]string(nil), s.Analysis.RequiredExpertise...)
		c.Analysis = &a
	}
	c.Agents = append([]AgentDescriptor(nil), s.Agents...)
	c.Steps = append([]WorkflowStep(nil), s.Steps...)
	c.Assignments = append([]AgentAssignment(nil), s.Assignments...)
	if s.States != nil {
		c.States = make(map[int]AssignmentStatus, len(s.States))
		for k, v := range s.States {
			c.States[k] = v
		}
	}
	if s.Plan != nil {
		p := *s.Plan
		p.Levels = make([][]int, len(s.Plan.Levels))
		for i, l := range s.Plan.Levels {
			p.Levels[i] = append([]int(nil), l...)
		}
		c.Plan = &p
	}
	c.Results = append([]AgentExecutionResult(nil), s.Results...)
	if s.Consolidated != nil {
		co := *s.Consolidated
		c.Consolidated = &co
	}
	c.IncompleteAgents = append([]string(nil), s.IncompleteAgents...)
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// NormalizeTags lowercases, trims and dedupes tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
