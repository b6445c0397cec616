package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/config"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/driver"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/llm"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/registry"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/sessionstore"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "ask": false, "agents": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestBuildRegistry(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
		wantLen int
	}{
		{"memory", config.Config{RegistryType: "memory"}, false, 0},
		{"memory with demo agents", config.Config{RegistryType: "memory", SeedDemoAgents: true}, false, len(registry.DemoAgents())},
		{"remote without url", config.Config{RegistryType: "remote"}, true, 0},
		{"unknown", config.Config{RegistryType: "etcd"}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := buildRegistry(&tt.cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer reg.Close()
			agents, _ := reg.List(context.Background(), nil)
			if len(agents) != tt.wantLen {
				t.Errorf("len(agents) = %d, want %d", len(agents), tt.wantLen)
			}
		})
	}
}

func TestBuildInvoker(t *testing.T) {
	inv, err := buildInvoker(&config.Config{InvokerType: "http"}, testLogger())
	if err != nil {
		t.Fatalf("http invoker: %v", err)
	}
	if _, ok := inv.(*driver.HTTPInvoker); !ok {
		t.Errorf("invoker = %T", inv)
	}
	if _, err := buildInvoker(&config.Config{InvokerType: "carrier-pigeon"}, testLogger()); err == nil {
		t.Error("expected error for unknown invoker")
	}
}

func TestBuildSessionStore_FallsBackToMemory(t *testing.T) {
	store := buildSessionStore(&config.Config{SessionStoreType: "memory", EventMaxLen: 10}, testLogger())
	defer store.Close()
	if _, ok := store.(*sessionstore.MemoryStore); !ok {
		t.Errorf("store = %T", store)
	}
}

func TestBuildCompleter_NoKey(t *testing.T) {
	if _, ok := buildCompleter(&config.Config{}, testLogger()).(llm.Disabled); !ok {
		t.Error("expected disabled completer without an API key")
	}
}

func TestBuildRuntime_Memory(t *testing.T) {
	cfg := config.Load()
	cfg.RegistryType = "memory"
	cfg.SeedDemoAgents = true
	cfg.SessionStoreType = "memory"
	cfg.InvokerType = "http"
	cfg.ArchiveType = "memory"
	cfg.AnthropicAPIKey = ""
	cfg.AgentFilter = `!("code" in tags)`

	rt, err := buildRuntime(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	defer rt.Close()

	agents, err := rt.agents.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("ListAgents: %v", err)
	}
	if len(agents) != len(registry.DemoAgents())-1 {
		t.Errorf("len(agents) = %d, want filter to drop the coder", len(agents))
	}
	if !rt.orch.Health(context.Background()).Ready {
		t.Error("runtime should be ready")
	}
}

func TestBuildRuntime_BadFilter(t *testing.T) {
	cfg := config.Load()
	cfg.RegistryType = "memory"
	cfg.SessionStoreType = "memory"
	cfg.ArchiveType = "none"
	cfg.AgentFilter = "status ==="

	if _, err := buildRuntime(context.Background(), cfg, testLogger()); err == nil {
		t.Error("expected error for invalid filter")
	}
}

func TestRenderResponse(t *testing.T) {
	color.NoColor = true

	resp := &types.OrchestrateResponse{
		SessionID: "s-1",
		Status:    types.SessionStatusPartial,
		Execution: types.ExecutionView{
			Strategy: types.StrategyParallel,
			Levels:   [][]int{{1, 2}},
			PerAgentResults: []types.AgentExecutionResult{
				{Step: 1, AgentID: "weather", Success: true, Duration: 1500 * time.Millisecond},
				{Step: 2, AgentID: "creative", Success: false, Error: "agent timeout"},
			},
			TotalDurationMs: 1500,
		},
		Consolidated: types.ConsolidatedView{Categories: map[types.Category][]types.Segment{
			types.CategoryGeneral: {{Step: 1, AgentID: "weather", AgentName: "Weather Agent", Text: "Hot."}},
		}},
		FinalResponse: "Hot.",
		Error:         "1 of 2 agents failed",
		ErrorKind:     "AgentInvocationError",
		Incomplete:    []string{"creative"},
	}

	var buf bytes.Buffer
	renderResponse(&buf, resp)
	out := buf.String()

	for _, want := range []string{
		"Session s-1",
		"status:   partial",
		"strategy: parallel",
		"✓ step 1 weather 1.5s",
		"✗ step 2 creative agent timeout",
		"incomplete: creative",
		"Weather Agent",
		"Hot.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
