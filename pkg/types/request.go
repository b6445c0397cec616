package types

// OrchestrateRequest is the body of POST /api/v1/orchestrate.
type OrchestrateRequest struct {
	Query     string                 `json:"query"`
	SessionID string                 `json:"session_id,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// OrchestrateResponse is returned for every orchestration, successful or not.
type OrchestrateResponse struct {
	SessionID      string             `json:"session_id"`
	Success        bool               `json:"success"`
	Status         SessionStatus      `json:"status"`
	Analysis       AnalysisView       `json:"analysis"`
	AgentSelection AgentSelectionView `json:"agent_selection"`
	Execution      ExecutionView      `json:"execution"`
	FinalResponse  string             `json:"final_response"`
	Consolidated   ConsolidatedView   `json:"consolidated"`
	Error          string             `json:"error,omitempty"`
	ErrorKind      string             `json:"error_kind,omitempty"`
	Incomplete     []string           `json:"incomplete_agents,omitempty"`
}

// AnalysisView is the analysis section of the response.
type AnalysisView struct {
	Domain            string          `json:"domain"`
	Complexity        Complexity      `json:"complexity"`
	WorkflowPattern   WorkflowPattern `json:"workflow_pattern"`
	RequiredExpertise []string        `json:"required_expertise,omitempty"`
	Confidence        float64         `json:"confidence"`
	Reasoning         string          `json:"reasoning"`
}

// AgentScore pairs a selected agent with the step it was chosen for.
type AgentScore struct {
	Step     int     `json:"step"`
	AgentID  string  `json:"agent_id"`
	Score    float64 `json:"score"`
	Fallback bool    `json:"fallback,omitempty"`
}

// AgentSelectionView is the agent_selection section of the response.
type AgentSelectionView struct {
	SelectedAgents []string     `json:"selected_agents"`
	Scores         []AgentScore `json:"scores"`
}

// ExecutionView is the execution section of the response.
type ExecutionView struct {
	Strategy        Strategy               `json:"strategy,omitempty"`
	Levels          [][]int                `json:"levels,omitempty"`
	PerAgentResults []AgentExecutionResult `json:"per_agent_results"`
	TotalDurationMs int64                  `json:"total_duration_ms"`
}

// ConsolidatedView is the consolidated section of the response.
type ConsolidatedView struct {
	Categories map[Category][]Segment `json:"categories"`
}
