package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/llm"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/resilient"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// mockLLM returns canned responses in order, repeating the last one.
type mockLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	i := m.calls - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

func TestAnalyzer_Analyze_ParsesModelOutput(t *testing.T) {
	m := &mockLLM{responses: []string{
		"Here is my analysis:\n```json\n" +
			`{"domain":"Weather","complexity":"Medium","workflow_pattern":"Multi-Agent",` +
			`"required_expertise":["Weather"," Poetry ","weather"],"confidence":0.9,"reasoning":"two tasks"}` +
			"\n```",
	}}
	a := New(m, nil, Config{})

	got := a.Analyze(context.Background(), "weather then poem", map[string]interface{}{"user": "ana"})

	if got.Fallback {
		t.Fatalf("unexpected fallback: %s", got.Reasoning)
	}
	if got.Domain != "weather" {
		t.Errorf("Domain = %q", got.Domain)
	}
	if got.Complexity != types.ComplexityModerate {
		t.Errorf("Complexity = %q", got.Complexity)
	}
	if got.WorkflowPattern != types.PatternMultiAgent {
		t.Errorf("WorkflowPattern = %q", got.WorkflowPattern)
	}
	if strings.Join(got.RequiredExpertise, ",") != "weather,poetry" {
		t.Errorf("RequiredExpertise = %v", got.RequiredExpertise)
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence = %v", got.Confidence)
	}
	if !strings.Contains(m.prompts[0], "user: ana") {
		t.Error("prompt should include conversation context")
	}
}

func TestAnalyzer_Analyze_FallbackOnGarbage(t *testing.T) {
	m := &mockLLM{responses: []string{"I think this is about the weather."}}
	a := New(m, nil, Config{Policy: resilient.Policy{MaxRetries: 1}})

	got := a.Analyze(context.Background(), "weather?", nil)

	if !got.Fallback {
		t.Fatal("expected fallback")
	}
	if got.Domain != "general" || got.Complexity != types.ComplexityModerate || got.WorkflowPattern != types.PatternSingleAgent {
		t.Errorf("unexpected fallback analysis: %+v", got)
	}
	if m.calls != 2 {
		t.Errorf("calls = %d, want 2 (one retry)", m.calls)
	}
}

func TestAnalyzer_Analyze_FallbackOnModelError(t *testing.T) {
	m := &mockLLM{err: errors.New("connection refused")}
	a := New(m, nil, Config{})

	got := a.Analyze(context.Background(), "anything", nil)
	if !got.Fallback {
		t.Fatal("expected fallback")
	}
	if !strings.Contains(got.Reasoning, "connection refused") {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
}

func TestAnalyzer_Analyze_DisabledDoesNotRetry(t *testing.T) {
	calls := 0
	c := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		return "", llm.ErrDisabled
	})
	a := New(c, nil, Config{Policy: resilient.Policy{MaxRetries: 3}})

	if got := a.Analyze(context.Background(), "q", nil); !got.Fallback {
		t.Error("expected fallback")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestAnalyzer_Parse(t *testing.T) {
	a := New(nil, nil, Config{})

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, r *types.AnalysisResult)
	}{
		{
			name: "missing confidence defaults",
			raw:  `{"domain":"math","complexity":"simple","workflow_pattern":"single_agent"}`,
			check: func(t *testing.T, r *types.AnalysisResult) {
				if r.Confidence != 0.5 {
					t.Errorf("Confidence = %v, want 0.5", r.Confidence)
				}
			},
		},
		{
			name: "confidence clamped",
			raw:  `{"domain":"math","complexity":"hard","workflow_pattern":"single","confidence":7}`,
			check: func(t *testing.T, r *types.AnalysisResult) {
				if r.Confidence != 1 {
					t.Errorf("Confidence = %v, want 1", r.Confidence)
				}
				if r.Complexity != types.ComplexityComplex {
					t.Errorf("Complexity = %q", r.Complexity)
				}
			},
		},
		{
			name: "expertise as string",
			raw:  `{"domain":"code","complexity":"simple","workflow_pattern":"single_agent","required_expertise":"Go"}`,
			check: func(t *testing.T, r *types.AnalysisResult) {
				if len(r.RequiredExpertise) != 1 || r.RequiredExpertise[0] != "go" {
					t.Errorf("RequiredExpertise = %v", r.RequiredExpertise)
				}
			},
		},
		{name: "missing domain", raw: `{"complexity":"simple","workflow_pattern":"single_agent"}`, wantErr: true},
		{name: "unknown pattern", raw: `{"domain":"x","complexity":"simple","workflow_pattern":"swarm"}`, wantErr: true},
		{name: "not json", raw: `no`, wantErr: true},
		{name: "broken json", raw: `{"domain": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := a.Parse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, types.ErrAnalysisParse) {
					t.Errorf("error should be an analysis parse error: %v", err)
				}
				return
			}
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	got := Fallback("timeout")
	if !got.Fallback || got.Confidence != 0.3 || got.Reasoning != "fallback: timeout" {
		t.Errorf("unexpected fallback: %+v", got)
	}
}
