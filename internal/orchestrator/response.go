package orchestrator

import (
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// buildResponse shapes a finished session into the API response.
func buildResponse(sess *types.OrchestrationSession) *types.OrchestrateResponse {
	resp := &types.OrchestrateResponse{
		SessionID:  sess.ID,
		Success:    sess.Status == types.SessionStatusCompleted,
		Status:     sess.Status,
		Error:      sess.Error,
		ErrorKind:  sess.ErrorKind,
		Incomplete: sess.IncompleteAgents,
		AgentSelection: types.AgentSelectionView{
			SelectedAgents: []string{},
			Scores:         []types.AgentScore{},
		},
		Execution: types.ExecutionView{
			PerAgentResults: sess.Results,
		},
		Consolidated: types.ConsolidatedView{
			Categories: map[types.Category][]types.Segment{},
		},
	}

	if a := sess.Analysis; a != nil {
		resp.Analysis = types.AnalysisView{
			Domain:            a.Domain,
			Complexity:        a.Complexity,
			WorkflowPattern:   a.WorkflowPattern,
			RequiredExpertise: a.RequiredExpertise,
			Confidence:        a.Confidence,
			Reasoning:         a.Reasoning,
		}
	}

	seen := make(map[string]bool)
	for _, a := range sess.Assignments {
		if !seen[a.AgentID] {
			seen[a.AgentID] = true
			resp.AgentSelection.SelectedAgents = append(resp.AgentSelection.SelectedAgents, a.AgentID)
		}
		resp.AgentSelection.Scores = append(resp.AgentSelection.Scores, types.AgentScore{
			Step:     a.Step,
			AgentID:  a.AgentID,
			Score:    a.Score,
			Fallback: a.Fallback,
		})
	}

	if sess.Plan != nil {
		resp.Execution.Strategy = sess.Plan.Strategy
		resp.Execution.Levels = sess.Plan.Levels
	}
	if resp.Execution.PerAgentResults == nil {
		resp.Execution.PerAgentResults = []types.AgentExecutionResult{}
	}
	end := sess.UpdatedAt
	if sess.FinishedAt != nil {
		end = *sess.FinishedAt
	}
	resp.Execution.TotalDurationMs = end.Sub(sess.CreatedAt).Round(time.Millisecond).Milliseconds()

	if c := sess.Consolidated; c != nil {
		resp.FinalResponse = c.FinalResponse
		if c.Categories != nil {
			resp.Consolidated.Categories = c.Categories
		}
	}
	return resp
}

// ResponseFor rebuilds the orchestrate response for a stored session.
func ResponseFor(sess *types.OrchestrationSession) *types.OrchestrateResponse {
	return buildResponse(sess)
}
