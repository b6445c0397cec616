// Package validator provides JSON schema validation for model output and
// agent registrations.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates analyses, decomposition plans and agent records.
type Validator struct {
	analysisSchema *jsonschema.Schema
	planSchema     *jsonschema.Schema
	agentSchema    *jsonschema.Schema
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult holds the result of a validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Error joins the failures into one line.
func (r *ValidationResult) Error() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Path, e.Message))
	}
	return strings.Join(parts, "; ")
}

// New creates a new validator with embedded schemas.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	resources := map[string]string{
		"analysis.json": analysisSchemaJSON,
		"plan.json":     planSchemaJSON,
		"agent.json":    agentSchemaJSON,
	}
	for name, src := range resources {
		if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", name, err)
		}
	}

	v := &Validator{}
	var err error
	if v.analysisSchema, err = compiler.Compile("analysis.json"); err != nil {
		return nil, fmt.Errorf("compile analysis schema: %w", err)
	}
	if v.planSchema, err = compiler.Compile("plan.json"); err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	if v.agentSchema, err = compiler.Compile("agent.json"); err != nil {
		return nil, fmt.Errorf("compile agent schema: %w", err)
	}
	return v, nil
}

// MustNew is New for package-level defaults. The schemas are constants, so
// a failure is a programming error.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateAnalysis validates a decoded query analysis.
func (v *Validator) ValidateAnalysis(doc interface{}) *ValidationResult {
	return v.validate(v.analysisSchema, doc)
}

// ValidatePlan validates a decoded decomposition plan ({"steps": [...]}).
func (v *Validator) ValidatePlan(doc interface{}) *ValidationResult {
	return v.validate(v.planSchema, doc)
}

// ValidateAgent validates a decoded agent registration.
func (v *Validator) ValidateAgent(doc interface{}) *ValidationResult {
	return v.validate(v.agentSchema, doc)
}

// ValidateAgentJSON validates a JSON-encoded agent registration.
func (v *Validator) ValidateAgentJSON(data []byte) *ValidationResult {
	doc, res := decode(data)
	if res != nil {
		return res
	}
	return v.ValidateAgent(doc)
}

// ValidatePlanJSON validates a JSON-encoded decomposition plan.
func (v *Validator) ValidatePlanJSON(data []byte) *ValidationResult {
	doc, res := decode(data)
	if res != nil {
		return res
	}
	return v.ValidatePlan(doc)
}

func decode(data []byte) (interface{}, *ValidationResult) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)},
			},
		}
	}
	return doc, nil
}

// validate runs schema validation and converts errors.
func (v *Validator) validate(schema *jsonschema.Schema, data interface{}) *ValidationResult {
	err := schema.Validate(data)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	result := &ValidationResult{Valid: false}
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		result.Errors = extractErrors(verr)
	}
	if len(result.Errors) == 0 {
		result.Errors = []ValidationError{{Path: "$", Message: err.Error()}}
	}
	return result
}

// extractErrors flattens the leaf causes of a validation error.
func extractErrors(verr *jsonschema.ValidationError) []ValidationError {
	if len(verr.Causes) == 0 {
		path := verr.InstanceLocation
		if path == "" {
			path = "$"
		}
		return []ValidationError{{Path: path, Message: verr.Message}}
	}

	var errs []ValidationError
	for _, cause := range verr.Causes {
		errs = append(errs, extractErrors(cause)...)
	}
	return errs
}

// Embedded JSON schemas

const analysisSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "analysis.json",
  "title": "Query Analysis",
  "type": "object",
  "required": ["domain", "complexity", "workflow_pattern"],
  "properties": {
    "domain": {"type": "string", "minLength": 1},
    "complexity": {"enum": ["simple", "moderate", "complex"]},
    "workflow_pattern": {"enum": ["single_agent", "multi_agent"]},
    "required_expertise": {
      "type": "array",
      "items": {"type": "string"}
    },
    "confidence": {"type": "number"},
    "reasoning": {"type": "string"}
  }
}`

const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "plan.json",
  "title": "Decomposition Plan",
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["task"],
        "properties": {
          "task": {"type": "string", "minLength": 1},
          "required_expertise": {
            "type": "array",
            "items": {"type": "string"}
          },
          "parallel": {"type": "boolean"},
          "depends_on": {
            "type": "array",
            "items": {"type": "integer", "minimum": 1}
          }
        }
      }
    }
  }
}`

const agentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "agent.json",
  "title": "Agent Registration",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "^[A-Za-z0-9][A-Za-z0-9._-]*$"
    },
    "name": {"type": "string"},
    "version": {"type": "string"},
    "description": {"type": "string"},
    "capabilities": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "status": {"enum": ["online", "degraded", "offline", ""]},
    "endpoint": {"type": "string"},
    "metadata": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`
