package planner

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

func assign(step int, deps ...int) types.AgentAssignment {
	if deps == nil {
		deps = []int{}
	}
	return types.AgentAssignment{Step: step, AgentID: "agent-" + string(rune('a'+step-1)), DependsOn: deps}
}

func TestPlan_Strategies(t *testing.T) {
	tests := []struct {
		name         string
		assignments  []types.AgentAssignment
		wantStrategy types.Strategy
		wantLevels   [][]int
	}{
		{
			name:         "single step",
			assignments:  []types.AgentAssignment{assign(1)},
			wantStrategy: types.StrategySequential,
			wantLevels:   [][]int{{1}},
		},
		{
			name:         "chain",
			assignments:  []types.AgentAssignment{assign(1), assign(2, 1), assign(3, 2)},
			wantStrategy: types.StrategySequential,
			wantLevels:   [][]int{{1}, {2}, {3}},
		},
		{
			name:         "independent",
			assignments:  []types.AgentAssignment{assign(1), assign(2), assign(3)},
			wantStrategy: types.StrategyParallel,
			wantLevels:   [][]int{{1, 2, 3}},
		},
		{
			name:         "hybrid: step 3 runs alongside step 1",
			assignments:  []types.AgentAssignment{assign(1), assign(2, 1), assign(3)},
			wantStrategy: types.StrategyHybrid,
			wantLevels:   [][]int{{1, 3}, {2}},
		},
		{
			name:         "diamond",
			assignments:  []types.AgentAssignment{assign(1), assign(2, 1), assign(3, 1), assign(4, 2, 3)},
			wantStrategy: types.StrategyHybrid,
			wantLevels:   [][]int{{1}, {2, 3}, {4}},
		},
		{
			name:         "fan-in needs longest path",
			assignments:  []types.AgentAssignment{assign(1), assign(2, 1), assign(3, 1, 2)},
			wantStrategy: types.StrategyHybrid,
			wantLevels:   [][]int{{1}, {2}, {3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan(tt.assignments)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			if plan.Strategy != tt.wantStrategy {
				t.Errorf("Strategy = %s, want %s", plan.Strategy, tt.wantStrategy)
			}
			if !reflect.DeepEqual(plan.Levels, tt.wantLevels) {
				t.Errorf("Levels = %v, want %v", plan.Levels, tt.wantLevels)
			}
		})
	}
}

func TestBuild_LevelsRespectDependencies(t *testing.T) {
	g, err := Build([]types.AgentAssignment{assign(1), assign(2, 1), assign(3), assign(4, 3), assign(5, 2, 4)})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	levelOf := map[int]int{}
	for i, l := range g.Levels() {
		for _, s := range l {
			levelOf[s] = i
		}
	}
	for _, s := range g.Steps() {
		for _, d := range g.depsOf(s) {
			if levelOf[d] >= levelOf[s] {
				t.Errorf("step %d (level %d) depends on %d (level %d)", s, levelOf[s], d, levelOf[d])
			}
		}
	}
	if !reflect.DeepEqual(g.dependentsOf(1), []int{2}) {
		t.Errorf("dependentsOf(1) = %v", g.dependentsOf(1))
	}
}

func TestBuild_Cycle(t *testing.T) {
	_, err := Build([]types.AgentAssignment{assign(1), assign(2, 3), assign(3, 2)})
	if !errors.Is(err, types.ErrCircularDependency) {
		t.Fatalf("expected circular dependency, got %v", err)
	}

	var oe *types.OrchestrationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OrchestrationError, got %T", err)
	}
	if !reflect.DeepEqual(oe.Incomplete, []string{"agent-b", "agent-c"}) {
		t.Errorf("Incomplete = %v", oe.Incomplete)
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	_, err := Build([]types.AgentAssignment{assign(1, 1)})
	if !errors.Is(err, types.ErrCircularDependency) {
		t.Errorf("expected circular dependency, got %v", err)
	}
}

func TestBuild_UnknownDependency(t *testing.T) {
	_, err := Build([]types.AgentAssignment{assign(1), assign(2, 7)})
	if !errors.Is(err, types.ErrCircularDependency) {
		t.Errorf("expected circular dependency, got %v", err)
	}
}

func TestBuild_DuplicateStep(t *testing.T) {
	if _, err := Build([]types.AgentAssignment{assign(1), assign(1)}); err == nil {
		t.Error("expected error for duplicate step")
	}
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(g.Levels()) != 0 {
		t.Errorf("Levels = %v, want none", g.Levels())
	}
	if g.Strategy() != types.StrategySequential {
		t.Errorf("Strategy = %s", g.Strategy())
	}
}
