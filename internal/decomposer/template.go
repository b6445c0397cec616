package decomposer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

var (
	// "A, then B" / "A and then B" / "A; then B"
	thenSplit = regexp.MustCompile(`(?i)\s*[,;]?\s*\b(?:and\s+)?then\b[,:]?\s*`)

	// "Summarize A, B, and C" -> verb + list
	listHead  = regexp.MustCompile(`^(\w+)\s+(.+?)[.?!]?$`)
	listSplit = regexp.MustCompile(`(?i)\s*,\s*(?:and\s+)?|\s+and\s+`)
)

const maxListItemWords = 6

// Template builds a deterministic decomposition from the query alone. It
// always returns at least one step.
//
// Sequencing words produce a chain, a short enumeration after a leading verb
// produces independent steps, and anything else becomes a two or three step
// research/produce pipeline sized by the number of plausible agents.
func Template(query string, analysis *types.AnalysisResult, agents []types.AgentDescriptor) []types.WorkflowStep {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.WorkflowStep{{Index: 1, Task: "Respond to the user."}}
	}

	var expertise []string
	if analysis != nil {
		expertise = analysis.RequiredExpertise
	}

	if parts := splitSequential(query); len(parts) >= 2 {
		steps := make([]types.WorkflowStep, len(parts))
		for i, p := range parts {
			steps[i] = types.WorkflowStep{Index: i + 1, Task: p}
		}
		assignExpertise(steps, expertise)
		return steps
	}

	if parts := splitEnumeration(query); len(parts) >= 2 {
		steps := make([]types.WorkflowStep, len(parts))
		for i, p := range parts {
			steps[i] = types.WorkflowStep{Index: i + 1, Task: p, Parallel: true}
		}
		assignExpertise(steps, expertise)
		return steps
	}

	n := plausibleAgents(expertise, agents)
	switch {
	case n < 2:
		n = 2
	case n > 3:
		n = 3
	}

	var tasks []string
	if n == 2 {
		tasks = []string{
			fmt.Sprintf("Research and gather the information needed for: %s", query),
			fmt.Sprintf("Using the findings above, produce the final answer to: %s", query),
		}
	} else {
		tasks = []string{
			fmt.Sprintf("Research and gather the information needed for: %s", query),
			fmt.Sprintf("Analyze the gathered information in the context of: %s", query),
			fmt.Sprintf("Synthesize a final response to: %s", query),
		}
	}
	steps := make([]types.WorkflowStep, len(tasks))
	for i, t := range tasks {
		steps[i] = types.WorkflowStep{Index: i + 1, Task: t}
	}
	assignExpertise(steps, expertise)
	return steps
}

func splitSequential(query string) []string {
	var parts []string
	for _, p := range thenSplit.Split(query, -1) {
		if p = strings.Trim(strings.TrimSpace(p), ",;."); p != "" {
			parts = append(parts, capitalize(p))
		}
	}
	return parts
}

func splitEnumeration(query string) []string {
	m := listHead.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	verb, rest := m[1], m[2]
	if !strings.Contains(rest, ",") {
		return nil
	}
	items := listSplit.Split(rest, -1)
	if len(items) < 2 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || len(strings.Fields(it)) > maxListItemWords {
			return nil
		}
		out = append(out, capitalize(verb)+" "+it)
	}
	return out
}

// plausibleAgents counts agents sharing a tag with the required expertise,
// or all agents when no expertise is known.
func plausibleAgents(expertise []string, agents []types.AgentDescriptor) int {
	if len(expertise) == 0 {
		return len(agents)
	}
	want := make(map[string]bool, len(expertise))
	for _, e := range expertise {
		want[strings.ToLower(e)] = true
	}
	n := 0
	for _, a := range agents {
		for _, t := range a.CapabilityTags {
			if want[strings.ToLower(t)] {
				n++
				break
			}
		}
	}
	return n
}

// assignExpertise gives each step the expertise tags its text mentions, or
// one tag round-robin when it mentions none.
func assignExpertise(steps []types.WorkflowStep, expertise []string) {
	if len(expertise) == 0 {
		return
	}
	for i := range steps {
		lower := strings.ToLower(steps[i].Task)
		var hits []string
		for _, e := range expertise {
			if strings.Contains(lower, strings.ToLower(e)) {
				hits = append(hits, e)
			}
		}
		if len(hits) == 0 {
			hits = []string{expertise[i%len(expertise)]}
		}
		steps[i].RequiredExpertise = hits
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
