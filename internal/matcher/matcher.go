// Package matcher assigns one agent to every workflow step.
package matcher

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/metrics"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// Score weights.
const (
	DomainOverlapWeight = 0.4
	UnusedBonus         = 0.2

	// DefaultMinScore sits above UnusedBonus so that an agent with no
	// overlap at all goes through round-robin instead of winning on the
	// bonus alone.
	DefaultMinScore = 0.3

	epsilon = 1e-9
)

// Matcher scores agents against steps.
type Matcher struct {
	minScore float64
	logger   *slog.Logger
}

// Config configures a Matcher.
type Config struct {
	// MinScore is the best-score threshold below which a step is assigned
	// round-robin. Negative disables the fallback.
	MinScore float64
	Logger   *slog.Logger
}

// New creates a Matcher.
func New(cfg Config) *Matcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Matcher{minScore: cfg.MinScore, logger: cfg.Logger}
}

// Match returns exactly one assignment per step, in step order. It fails
// only when no agent is usable.
func (m *Matcher) Match(steps []types.WorkflowStep, agents []types.AgentDescriptor) ([]types.AgentAssignment, error) {
	usable := make([]types.AgentDescriptor, 0, len(agents))
	for _, a := range agents {
		if a.Status != types.AgentStatusOffline {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return nil, &types.OrchestrationError{Kind: types.ErrNoAgentsAvailable, Msg: "registry returned no usable agents"}
	}

	profiles := make([]agentProfile, len(usable))
	for i, a := range usable {
		profiles[i] = newProfile(a)
	}

	// lastUsed holds the 1-based step an agent was last assigned; 0 = never.
	lastUsed := make(map[string]int, len(usable))
	out := make([]types.AgentAssignment, 0, len(steps))

	for i, step := range steps {
		idx := step.Index
		if idx == 0 {
			idx = i + 1
		}
		stepTokens := tokenSet(step.Task)

		best, bestScore := -1, 0.0
		for j, p := range profiles {
			s := p.score(step, stepTokens, lastUsed[p.desc.ID] > 0)
			if best == -1 || s > bestScore+epsilon ||
				(s > bestScore-epsilon && lastUsed[p.desc.ID] < lastUsed[profiles[best].desc.ID]) {
				best, bestScore = j, s
			}
		}

		fallback := false
		if bestScore < m.minScore {
			best = leastRecentlyUsed(profiles, lastUsed)
			fallback = true
			bestScore = profiles[best].score(step, stepTokens, lastUsed[profiles[best].desc.ID] > 0)
			metrics.FallbacksTotal.WithLabelValues("matcher").Inc()
			m.logger.Debug("step assigned round-robin",
				slog.Int("step", idx),
				slog.String("agent_id", profiles[best].desc.ID),
			)
		}

		agent := profiles[best].desc
		lastUsed[agent.ID] = idx
		out = append(out, types.AgentAssignment{
			Step:      idx,
			Task:      step.Task,
			AgentID:   agent.ID,
			AgentName: agent.DisplayName(),
			Score:     bestScore,
			DependsOn: dependencies(step, idx),
			Fallback:  fallback,
			Expertise: append([]string(nil), step.RequiredExpertise...),
		})
	}
	return out, nil
}

// leastRecentlyUsed rotates through agents by last assignment; never-used
// agents come first and ties go to profile order.
func leastRecentlyUsed(profiles []agentProfile, lastUsed map[string]int) int {
	pick := 0
	for j := 1; j < len(profiles); j++ {
		if lastUsed[profiles[j].desc.ID] < lastUsed[profiles[pick].desc.ID] {
			pick = j
		}
	}
	return pick
}

// Score computes the relevance of agent for step. used reports whether the
// agent already holds an assignment in this decomposition.
func Score(step types.WorkflowStep, agent types.AgentDescriptor, used bool) float64 {
	return newProfile(agent).score(step, tokenSet(step.Task), used)
}

// dependencies resolves the depends_on set for a step: explicit earlier
// references win, a parallel step has none, otherwise it follows the
// previous step.
func dependencies(step types.WorkflowStep, idx int) []int {
	if len(step.DependsOn) > 0 {
		deps := make([]int, 0, len(step.DependsOn))
		for _, d := range step.DependsOn {
			if d >= 1 && d < idx {
				deps = append(deps, d)
			}
		}
		if len(deps) > 0 {
			return deps
		}
	}
	if step.Parallel || idx == 1 {
		return []int{}
	}
	return []int{idx - 1}
}

type agentProfile struct {
	desc      types.AgentDescriptor
	tags      map[string]bool // normalized tags
	tagStems  map[string]bool // stems of whole tags
	tagTokens map[string]bool // stems of every word inside the tags
}

func newProfile(a types.AgentDescriptor) agentProfile {
	p := agentProfile{
		desc:      a,
		tags:      make(map[string]bool, len(a.CapabilityTags)),
		tagStems:  make(map[string]bool, len(a.CapabilityTags)),
		tagTokens: make(map[string]bool),
	}
	for _, t := range types.NormalizeTags(a.CapabilityTags) {
		p.tags[t] = true
		p.tagStems[stem(t)] = true
		for tok := range tokenSet(t) {
			p.tagTokens[tok] = true
		}
	}
	return p
}

func (p agentProfile) score(step types.WorkflowStep, stepTokens map[string]bool, used bool) float64 {
	var s float64
	for tok := range stepTokens {
		if p.tagTokens[tok] {
			s += DomainOverlapWeight
			break
		}
	}
	if !used {
		s += UnusedBonus
	}
	if req := types.NormalizeTags(step.RequiredExpertise); len(req) > 0 {
		hits := 0
		for _, r := range req {
			if p.tags[r] || p.tagStems[stem(r)] {
				hits++
			}
		}
		s += float64(hits) / float64(len(req))
	}
	return s
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"this": true, "that": true, "from": true, "into": true, "your": true,
	"then": true, "them": true, "its": true, "are": true, "was": true,
}

// tokenSet lowercases text, splits on anything that is not a letter or
// digit and stems each word. Short words and stop words are dropped.
func tokenSet(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		out[stem(w)] = true
	}
	return out
}

var suffixes = []string{"ing", "ers", "er", "ed", "es", "s", "e"}

// stem strips one common English suffix, keeping at least three letters.
func stem(w string) string {
	for _, suf := range suffixes {
		if strings.HasSuffix(w, suf) && len(w)-len(suf) >= 3 {
			return w[:len(w)-len(suf)]
		}
	}
	return w
}
