package registry

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// MaxFilterLength limits the size of an eligibility expression.
const MaxFilterLength = 4096

// Filter selects usable agents with an expr-lang boolean expression evaluated
// over {id, name, tags, status, version, endpoint, metadata}.
//
//	status != "degraded" && !("experimental" in tags)
type Filter struct {
	expression string
	program    *vm.Program
}

// filterEnv builds the evaluation environment for one agent.
func filterEnv(a *Agent) map[string]interface{} {
	d := a.Descriptor()
	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	tags := d.CapabilityTags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"id":       d.ID,
		"name":     d.Name,
		"tags":     tags,
		"status":   string(d.Status),
		"version":  a.Version,
		"endpoint": d.Endpoint,
		"metadata": metadata,
	}
}

// NewFilter compiles expression. An empty expression yields a nil filter,
// which accepts every agent.
func NewFilter(expression string) (*Filter, error) {
	if expression == "" {
		return nil, nil
	}
	if len(expression) > MaxFilterLength {
		return nil, fmt.Errorf("agent filter exceeds maximum length of %d characters", MaxFilterLength)
	}

	prog, err := expr.Compile(expression, expr.Env(filterEnv(&Agent{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile agent filter %q: %w", expression, err)
	}
	return &Filter{
		expression: expression,
		program:    prog,
	}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Match reports whether agent passes the filter.
func (f *Filter) Match(agent *Agent) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, err := expr.Run(f.program, filterEnv(agent))
	if err != nil {
		return false, fmt.Errorf("evaluate agent filter for %s: %w", agent.ID, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
