// Package decomposer splits a multi-agent query into ordered workflow steps.
package decomposer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/llm"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/resilient"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/tracing"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/validator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// DefaultMaxSteps caps a plan when Config.MaxSteps is unset.
const DefaultMaxSteps = 8

// ErrInvalidPlan is returned by Parse for output that is not a usable plan.
var ErrInvalidPlan = errors.New("invalid decomposition plan")

// Decomposer produces workflow steps for multi-agent queries.
type Decomposer struct {
	llm       llm.Completer
	validator *validator.Validator
	policy    resilient.Policy
	maxSteps  int
	logger    *slog.Logger
}

// Config configures a Decomposer.
type Config struct {
	Policy   resilient.Policy
	MaxSteps int
	Logger   *slog.Logger
}

// New creates a Decomposer. A nil validator uses the embedded schemas.
func New(completer llm.Completer, v *validator.Validator, cfg Config) *Decomposer {
	if completer == nil {
		completer = llm.Disabled{}
	}
	if v == nil {
		v = validator.MustNew()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy.Retryable == nil {
		cfg.Policy.Retryable = func(err error) bool { return !errors.Is(err, llm.ErrDisabled) }
	}
	return &Decomposer{
		llm:       completer,
		validator: v,
		policy:    cfg.Policy,
		maxSteps:  cfg.MaxSteps,
		logger:    cfg.Logger,
	}
}

// Decompose returns a non-empty, 1-indexed list of steps. When the model
// plan is unusable the steps come from Template.
func (d *Decomposer) Decompose(ctx context.Context, query string, analysis *types.AnalysisResult, agents []types.AgentDescriptor) []types.WorkflowStep {
	ctx, span := tracing.Start(ctx, "decomposer.Decompose")
	defer span.End()

	prompt := buildPrompt(query, analysis, agents, d.maxSteps)
	res := resilient.Call(ctx, d.policy, func(ctx context.Context, attempt int) ([]types.WorkflowStep, error) {
		raw, err := d.llm.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return d.Parse(raw)
	}, func(err error) []types.WorkflowStep {
		return Template(query, analysis, agents)
	})

	steps := res.Value
	if !res.OK() {
		metrics.FallbacksTotal.WithLabelValues("decomposer").Inc()
		d.logger.Warn("decomposition fell back to template",
			slog.String("error", res.Err.Error()),
			slog.Int("steps", len(steps)),
		)
	}
	if len(steps) > d.maxSteps {
		steps = steps[:d.maxSteps]
	}
	span.SetAttributes(
		attribute.Int("decomposer.steps", len(steps)),
		attribute.Bool("decomposer.fallback", res.Fallback),
	)
	return steps
}

type rawStep struct {
	Task              string   `json:"task"`
	RequiredExpertise []string `json:"required_expertise"`
	Parallel          bool     `json:"parallel"`
	DependsOn         []int    `json:"depends_on"`
}

// Parse reads a model plan. Both a bare JSON array of steps and an object
// with a "steps" array are accepted.
func (d *Decomposer) Parse(raw string) ([]types.WorkflowStep, error) {
	js, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(js), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidPlan, err)
	}
	if arr, ok := doc.([]interface{}); ok {
		doc = map[string]interface{}{"steps": arr}
	}
	if res := d.validator.ValidatePlan(doc); !res.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, res.Error())
	}

	normalized, _ := json.Marshal(doc)
	var plan struct {
		Steps []rawStep `json:"steps"`
	}
	if err := json.Unmarshal(normalized, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	steps := make([]types.WorkflowStep, 0, len(plan.Steps))
	for _, rs := range plan.Steps {
		task := strings.TrimSpace(rs.Task)
		if task == "" {
			continue
		}
		idx := len(steps) + 1
		steps = append(steps, types.WorkflowStep{
			Index:             idx,
			Task:              task,
			RequiredExpertise: types.NormalizeTags(rs.RequiredExpertise),
			Parallel:          rs.Parallel,
			DependsOn:         earlierOnly(rs.DependsOn, idx),
		})
		if len(steps) == d.maxSteps {
			break
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	return steps, nil
}

// Single wraps the whole query as one step.
func Single(query string, analysis *types.AnalysisResult) []types.WorkflowStep {
	step := types.WorkflowStep{Index: 1, Task: strings.TrimSpace(query)}
	if analysis != nil {
		step.RequiredExpertise = append([]string(nil), analysis.RequiredExpertise...)
	}
	return []types.WorkflowStep{step}
}

// earlierOnly keeps references to steps before idx, deduplicated and sorted.
func earlierOnly(deps []int, idx int) []int {
	if len(deps) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(deps))
	out := make([]int, 0, len(deps))
	for _, dep := range deps {
		if dep < 1 || dep >= idx || seen[dep] {
			continue
		}
		seen[dep] = true
		out = append(out, dep)
	}
	sort.Ints(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func buildPrompt(query string, analysis *types.AnalysisResult, agents []types.AgentDescriptor, maxSteps int) string {
	var b strings.Builder
	b.WriteString("Split the user query into an ordered list of discrete tasks, one per specialist agent.\n\n")
	if analysis != nil {
		fmt.Fprintf(&b, "Domain: %s\nComplexity: %s\n", analysis.Domain, analysis.Complexity)
		if len(analysis.RequiredExpertise) > 0 {
			fmt.Fprintf(&b, "Required expertise: %s\n", strings.Join(analysis.RequiredExpertise, ", "))
		}
	}
	if len(agents) > 0 {
		b.WriteString("\nAvailable agents:\n")
		for _, a := range agents {
			fmt.Fprintf(&b, "- %s: %s\n", a.DisplayName(), strings.Join(a.CapabilityTags, ", "))
		}
	}
	fmt.Fprintf(&b, "\nUse at most %d tasks. Respond with JSON only:\n", maxSteps)
	b.WriteString(`{"steps": [{"task": "<self-contained instruction>", "required_expertise": ["<tag>"], "parallel": <true if it does not need the previous task's output>, "depends_on": [<earlier task numbers, 1-based>]}]}`)
	fmt.Fprintf(&b, "\n\nQuery: %s\n", query)
	return b.String()
}
