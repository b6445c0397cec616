// Package memory holds the append-only result log of one session.
package memory

import (
	"sort"
	"sync"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// Memory is an append-only list of agent results. Appends are serialized;
// once sealed, late results are dropped.
type Memory struct {
	mu      sync.RWMutex
	results []types.AgentExecutionResult
	byStep  map[int]int // step -> index into results
	sealed  bool
}

// New creates an empty Memory.
func New() *Memory {
	return &Memory{byStep: make(map[int]int)}
}

// Append records a result. It returns false when the memory is sealed or the
// step already has a result.
func (m *Memory) Append(r types.AgentExecutionResult) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return false
	}
	if _, ok := m.byStep[r.Step]; ok {
		return false
	}
	m.byStep[r.Step] = len(m.results)
	m.results = append(m.results, r)
	return true
}

// Seal stops further appends.
func (m *Memory) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (m *Memory) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// Get returns the result recorded for step.
func (m *Memory) Get(step int) (types.AgentExecutionResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byStep[step]
	if !ok {
		return types.AgentExecutionResult{}, false
	}
	return m.results[i], true
}

// Len returns the number of recorded results.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results)
}

// Snapshot returns a copy of all results in append order.
func (m *Memory) Snapshot() []types.AgentExecutionResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.AgentExecutionResult(nil), m.results...)
}

// ByStep returns a copy of all results ordered by step.
func (m *Memory) ByStep() []types.AgentExecutionResult {
	out := m.Snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}
