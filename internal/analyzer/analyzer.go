// Package analyzer turns a raw query into a structured analysis using the
// language model, falling back to a fixed default when the model output
// cannot be used.
package analyzer

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

const (
	fallbackDomain     = "general"
	fallbackConfidence = 0.3
	defaultConfidence  = 0.5
)

// Analyzer produces an AnalysisResult for a query.
type Analyzer struct {
	llm       llm.Completer
	validator *validator.Validator
	policy    resilient.Policy
	logger    *slog.Logger
}

// Config configures an Analyzer.
type Config struct {
	// Policy controls retries of the model call. Parse failures are retried too.
	Policy resilient.Policy
	Logger *slog.Logger
}

// New creates an Analyzer. A nil validator uses the embedded schemas.
func New(completer llm.Completer, v *validator.Validator, cfg Config) *Analyzer {
	if completer == nil {
		completer = llm.Disabled{}
	}
	if v == nil {
		v = validator.MustNew()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Policy.Retryable == nil {
		cfg.Policy.Retryable = func(err error) bool { return !errors.Is(err, llm.ErrDisabled) }
	}
	return &Analyzer{
		llm:       completer,
		validator: v,
		policy:    cfg.Policy,
		logger:    cfg.Logger,
	}
}

// Analyze never fails: model errors and unusable output both degrade to
// Fallback.
func (a *Analyzer) Analyze(ctx context.Context, query string, convCtx map[string]interface{}) *types.AnalysisResult {
	ctx, span := tracing.Start(ctx, "analyzer.Analyze")
	defer span.End()

	prompt := buildPrompt(query, convCtx)
	res := resilient.Call(ctx, a.policy, func(ctx context.Context, attempt int) (*types.AnalysisResult, error) {
		raw, err := a.llm.Complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return a.Parse(raw)
	}, func(err error) *types.AnalysisResult {
		return Fallback(err.Error())
	})

	if !res.OK() {
		metrics.FallbacksTotal.WithLabelValues("analyzer").Inc()
		a.logger.Warn("analysis fell back to default",
			slog.String("error", res.Err.Error()),
			slog.Int("attempts", res.Attempts),
		)
	}
	span.SetAttributes(
		attribute.String("analysis.domain", res.Value.Domain),
		attribute.String("analysis.pattern", string(res.Value.WorkflowPattern)),
		attribute.Bool("analysis.fallback", res.Value.Fallback),
	)
	return res.Value
}

// rawAnalysis mirrors the model's JSON. Pointers distinguish missing fields.
type rawAnalysis struct {
	Domain            *string  `json:"domain"`
	Complexity        *string  `json:"complexity"`
	WorkflowPattern   *string  `json:"workflow_pattern"`
	RequiredExpertise []string `json:"required_expertise"`
	Confidence        *float64 `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
}

// Parse reads model output into an AnalysisResult. Errors wrap
// types.ErrAnalysisParse.
func (a *Analyzer) Parse(raw string) (*types.AnalysisResult, error) {
	js, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, types.NewAnalysisParseError("extract json", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(js), &doc); err != nil {
		return nil, types.NewAnalysisParseError("decode json", err)
	}
	normalizeDoc(doc)

	if res := a.validator.ValidateAnalysis(doc); !res.Valid {
		return nil, types.NewAnalysisParseError(res.Error(), nil)
	}

	normalized, _ := json.Marshal(doc)
	var ra rawAnalysis
	if err := json.Unmarshal(normalized, &ra); err != nil {
		return nil, types.NewAnalysisParseError("decode analysis", err)
	}

	out := &types.AnalysisResult{
		Domain:            strings.TrimSpace(*ra.Domain),
		Complexity:        types.Complexity(*ra.Complexity),
		WorkflowPattern:   types.WorkflowPattern(*ra.WorkflowPattern),
		RequiredExpertise: types.NormalizeTags(ra.RequiredExpertise),
		Confidence:        defaultConfidence,
		Reasoning:         strings.TrimSpace(ra.Reasoning),
	}
	if ra.Confidence != nil {
		out.Confidence = clamp(*ra.Confidence)
	}
	return out, nil
}

// Fallback is the deterministic default analysis.
func Fallback(reason string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Domain:          fallbackDomain,
		Complexity:      types.ComplexityModerate,
		WorkflowPattern: types.PatternSingleAgent,
		Confidence:      fallbackConfidence,
		Reasoning:       fmt.Sprintf("fallback: %s", reason),
		Fallback:        true,
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

var (
	complexityAliases = map[string]string{
		"low": "simple", "easy": "simple", "basic": "simple",
		"medium": "moderate", "intermediate": "moderate",
		"high": "complex", "hard": "complex", "advanced": "complex",
	}
	patternAliases = map[string]string{
		"single": "single_agent", "single_agent": "single_agent", "singleagent": "single_agent",
		"multi": "multi_agent", "multiple": "multi_agent", "multi_agent": "multi_agent",
		"multiagent": "multi_agent", "multiple_agents": "multi_agent",
	}
)

// normalizeDoc folds common spellings onto the enum values before validation.
func normalizeDoc(doc map[string]interface{}) {
	if s, ok := doc["complexity"].(string); ok {
		s = strings.ToLower(strings.TrimSpace(s))
		if alias, ok := complexityAliases[s]; ok {
			s = alias
		}
		doc["complexity"] = s
	}
	if s, ok := doc["workflow_pattern"].(string); ok {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
		if alias, ok := patternAliases[s]; ok {
			s = alias
		}
		doc["workflow_pattern"] = s
	}
	if s, ok := doc["domain"].(string); ok {
		doc["domain"] = strings.ToLower(strings.TrimSpace(s))
	}
	// A bare string is accepted as a one-element expertise list.
	if s, ok := doc["required_expertise"].(string); ok {
		doc["required_expertise"] = []interface{}{s}
	}
}

func buildPrompt(query string, convCtx map[string]interface{}) string {
	var b strings.Builder
	b.WriteString("Analyze the user query below and decide how it should be handled by a team of specialist agents.\n\n")
	b.WriteString("Respond with a single JSON object and nothing else:\n")
	b.WriteString(`{"domain": "<primary domain>", "complexity": "simple|moderate|complex", "workflow_pattern": "single_agent|multi_agent", "required_expertise": ["<tag>", ...], "confidence": <0..1>, "reasoning": "<one sentence>"}`)
	b.WriteString("\n\nUse multi_agent only when the query clearly contains several distinct tasks.\n")

	if len(convCtx) > 0 {
		keys := make([]string, 0, len(convCtx))
		for k := range convCtx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\nConversation context:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, convCtx[k])
		}
	}

	fmt.Fprintf(&b, "\nQuery: %s\n", query)
	return b.String()
}
