// Package consolidator categorizes agent results and synthesizes the final
// response. Every function here is deterministic: the same results always
// produce byte-identical output.
package consolidator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

const (
	analyticalDigitRatio = 0.15
	creativeMaxAvgLine   = 60
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Categorize buckets text by its shape. Checks run in order: code, then
// analytical, then creative.
func Categorize(text string) types.Category {
	if isCode(text) {
		return types.CategoryCode
	}
	if isAnalytical(text) {
		return types.CategoryAnalytical
	}
	if isCreative(text) {
		return types.CategoryCreative
	}
	return types.CategoryGeneral
}

func isCode(text string) bool {
	if strings.Contains(text, "```") {
		return true
	}
	indented := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			indented++
			if indented >= 2 {
				return true
			}
		}
	}
	return false
}

func isAnalytical(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	numeric := 0
	for _, w := range words {
		if strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			numeric++
		}
	}
	return float64(numeric)/float64(len(words)) >= analyticalDigitRatio
}

func isCreative(text string) bool {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return false
	}
	total := 0
	for _, l := range lines {
		total += len([]rune(l))
	}
	return total/len(lines) <= creativeMaxAvgLine
}

// Clean normalizes line endings, strips trailing spaces, collapses runs of
// blank lines and trims the result.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Consolidate builds the categorized output. Results are processed in step
// order regardless of the order they were recorded in.
func Consolidate(results []types.AgentExecutionResult, assignments []types.AgentAssignment) *types.ConsolidatedOutput {
	names := make(map[int]string, len(assignments))
	for _, a := range assignments {
		names[a.Step] = a.AgentName
	}

	ordered := append([]types.AgentExecutionResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Step < ordered[j].Step })

	out := &types.ConsolidatedOutput{
		Categories:   make(map[types.Category][]types.Segment),
		Contributors: []string{},
	}
	seen := make(map[string]bool)

	type section struct {
		res      types.AgentExecutionResult
		name     string
		text     string
		category types.Category
	}
	sections := make([]section, 0, len(ordered))

	for _, r := range ordered {
		name := r.AgentName
		if name == "" {
			name = names[r.Step]
		}
		if name == "" {
			name = r.AgentID
		}
		s := section{res: r, name: name}
		if r.Success {
			s.text = Clean(r.Output)
			s.category = Categorize(s.text)
			if s.text != "" {
				out.Categories[s.category] = append(out.Categories[s.category], types.Segment{
					Step:      r.Step,
					AgentID:   r.AgentID,
					AgentName: name,
					Text:      s.text,
				})
			}
			if !seen[r.AgentID] {
				seen[r.AgentID] = true
				out.Contributors = append(out.Contributors, r.AgentID)
			}
		}
		sections = append(sections, s)
	}

	switch len(sections) {
	case 0:
		out.FinalResponse = "No agent produced a result."
	case 1:
		s := sections[0]
		if s.res.Success {
			out.FinalResponse = s.text
		} else {
			out.FinalResponse = fmt.Sprintf("%s could not complete the task: %s", s.name, errorText(s.res))
		}
	default:
		var b strings.Builder
		for i, s := range sections {
			if i > 0 {
				b.WriteString("\n\n")
			}
			if s.res.Success {
				fmt.Fprintf(&b, "## Step %d: %s (%s) [%s]\n\n%s", s.res.Step, s.name, s.res.AgentID, s.category, s.text)
			} else {
				fmt.Fprintf(&b, "## Step %d: %s (%s) [failed]\n\nError: %s", s.res.Step, s.name, s.res.AgentID, errorText(s.res))
			}
		}
		out.FinalResponse = b.String()
	}
	return out
}

func errorText(r types.AgentExecutionResult) string {
	if r.Error != "" {
		return r.Error
	}
	return "unknown error"
}
