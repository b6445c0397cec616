package validator

import (
	"testing"
)

func TestValidator_ValidateAnalysis(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tests := []struct {
		name  string
		doc   map[string]interface{}
		valid bool
	}{
		{
			name: "complete analysis",
			doc: map[string]interface{}{
				"domain":             "weather",
				"complexity":         "moderate",
				"workflow_pattern":   "multi_agent",
				"required_expertise": []interface{}{"weather", "poetry"},
				"confidence":         0.8,
			},
			valid: true,
		},
		{
			name: "missing workflow pattern",
			doc: map[string]interface{}{
				"domain":     "weather",
				"complexity": "simple",
			},
			valid: false,
		},
		{
			name: "unknown complexity",
			doc: map[string]interface{}{
				"domain":           "weather",
				"complexity":       "extreme",
				"workflow_pattern": "single_agent",
			},
			valid: false,
		},
		{
			name: "confidence wrong type",
			doc: map[string]interface{}{
				"domain":           "general",
				"complexity":       "simple",
				"workflow_pattern": "single_agent",
				"confidence":       "high",
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateAnalysis(tt.doc)
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors: %s)", res.Valid, tt.valid, res.Error())
			}
			if !res.Valid && len(res.Errors) == 0 {
				t.Error("invalid result should carry errors")
			}
		})
	}
}

func TestValidator_ValidatePlanJSON(t *testing.T) {
	v := MustNew()

	tests := []struct {
		name  string
		data  string
		valid bool
	}{
		{"two steps", `{"steps":[{"task":"get weather"},{"task":"write poem","depends_on":[1]}]}`, true},
		{"parallel flag", `{"steps":[{"task":"a","parallel":true}]}`, true},
		{"empty steps", `{"steps":[]}`, false},
		{"blank task", `{"steps":[{"task":""}]}`, false},
		{"zero dependency", `{"steps":[{"task":"a","depends_on":[0]}]}`, false},
		{"not json", `steps: a, b`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidatePlanJSON([]byte(tt.data))
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors: %s)", res.Valid, tt.valid, res.Error())
			}
		})
	}
}

func TestValidator_ValidateAgentJSON(t *testing.T) {
	v := MustNew()

	valid := v.ValidateAgentJSON([]byte(`{"id":"weather-agent","name":"Weather","capabilities":["weather"],"status":"online"}`))
	if !valid.Valid {
		t.Errorf("expected valid agent, got %s", valid.Error())
	}

	invalid := v.ValidateAgentJSON([]byte(`{"id":"bad id!","status":"sleeping"}`))
	if invalid.Valid {
		t.Error("expected invalid agent")
	}
	if len(invalid.Errors) < 2 {
		t.Errorf("expected errors for id and status, got %v", invalid.Errors)
	}
}
