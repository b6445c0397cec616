// Package planner builds the dependency graph over agent assignments and
// classifies the execution strategy.
package planner

import (
	"fmt"
	"sort"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// Graph is a read-only DAG over assignment steps.
type Graph struct {
	steps      []int         // sorted step indices
	deps       map[int][]int // step -> sorted dependencies
	dependents map[int][]int // step -> sorted dependents
	levels     [][]int
}

// Build validates the assignments and computes topological levels with
// Kahn's algorithm. A cycle or a reference to an unknown step yields a
// CircularDependencyError listing the agents that could never run.
func Build(assignments []types.AgentAssignment) (*Graph, error) {
	g := &Graph{
		deps:       make(map[int][]int, len(assignments)),
		dependents: make(map[int][]int, len(assignments)),
	}
	agentOf := make(map[int]string, len(assignments))

	for _, a := range assignments {
		if _, dup := agentOf[a.Step]; dup {
			return nil, fmt.Errorf("duplicate assignment for step %d", a.Step)
		}
		agentOf[a.Step] = a.AgentID
		g.steps = append(g.steps, a.Step)
	}
	sort.Ints(g.steps)

	for _, a := range assignments {
		seen := make(map[int]bool, len(a.DependsOn))
		for _, d := range a.DependsOn {
			if seen[d] {
				continue
			}
			seen[d] = true
			if _, ok := agentOf[d]; !ok {
				return nil, types.NewCircularDependencyError(
					fmt.Sprintf("step %d depends on unknown step %d", a.Step, d),
					[]string{a.AgentID})
			}
			g.deps[a.Step] = append(g.deps[a.Step], d)
			g.dependents[d] = append(g.dependents[d], a.Step)
		}
		sort.Ints(g.deps[a.Step])
	}
	for k := range g.dependents {
		sort.Ints(g.dependents[k])
	}

	// Kahn's algorithm, grouping by depth.
	inDegree := make(map[int]int, len(g.steps))
	depth := make(map[int]int, len(g.steps))
	var queue []int
	for _, s := range g.steps {
		inDegree[s] = len(g.deps[s])
		if inDegree[s] == 0 {
			queue = append(queue, s)
		}
	}

	processed := make(map[int]bool, len(g.steps))
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		processed[s] = true

		for _, next := range g.dependents[s] {
			inDegree[next]--
			if d := depth[s] + 1; d > depth[next] {
				depth[next] = d
			}
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(processed) != len(g.steps) {
		var stuck []string
		for _, s := range g.steps {
			if !processed[s] {
				stuck = append(stuck, agentOf[s])
			}
		}
		return nil, types.NewCircularDependencyError("dependency graph contains a cycle", stuck)
	}

	maxDepth := -1
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	if len(g.steps) > 0 && maxDepth < 0 {
		maxDepth = 0
	}
	g.levels = make([][]int, maxDepth+1)
	for _, s := range g.steps {
		g.levels[depth[s]] = append(g.levels[depth[s]], s)
	}
	return g, nil
}

// Steps returns all step indices in ascending order.
func (g *Graph) Steps() []int {
	return append([]int(nil), g.steps...)
}

// depsOf returns the steps s waits for.
func (g *Graph) depsOf(s int) []int {
	return append([]int(nil), g.deps[s]...)
}

// dependentsOf returns the steps waiting for s.
func (g *Graph) dependentsOf(s int) []int {
	return append([]int(nil), g.dependents[s]...)
}

// Levels returns the topological levels. Every dependency of a step lies
// in a strictly earlier level.
func (g *Graph) Levels() [][]int {
	out := make([][]int, len(g.levels))
	for i, l := range g.levels {
		out[i] = append([]int(nil), l...)
	}
	return out
}

// Strategy classifies the graph: a single chain is sequential, a graph with
// no edges is parallel, anything else is hybrid.
func (g *Graph) Strategy() types.Strategy {
	if len(g.steps) <= 1 {
		return types.StrategySequential
	}

	edges := 0
	for _, d := range g.deps {
		edges += len(d)
	}
	if edges == 0 {
		return types.StrategyParallel
	}

	for i, s := range g.steps {
		d := g.deps[s]
		if i == 0 {
			if len(d) != 0 {
				return types.StrategyHybrid
			}
			continue
		}
		if len(d) != 1 || d[0] != g.steps[i-1] {
			return types.StrategyHybrid
		}
	}
	return types.StrategySequential
}

// Plan builds the graph and returns its strategy and levels.
func Plan(assignments []types.AgentAssignment) (*types.ExecutionPlan, error) {
	g, err := Build(assignments)
	if err != nil {
		return nil, err
	}
	return &types.ExecutionPlan{Strategy: g.Strategy(), Levels: g.Levels()}, nil
}
