package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/analyzer"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/archive"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/auth"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/config"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/decomposer"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/driver"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/llm"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/matcher"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/orchestrator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/registry"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/scheduler"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/sessionstore"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	router   http.Handler
	registry *registry.MemoryRegistry
	store    *sessionstore.MemoryStore
}

func newTestServer(t *testing.T, opts *ServerOptions) *testServer {
	t.Helper()
	return newTestServerWithArchive(t, opts, nil)
}

func newTestServerWithArchive(t *testing.T, opts *ServerOptions, archiver *archive.Archiver) *testServer {
	t.Helper()

	reg := registry.NewMemoryRegistry()
	if _, err := reg.Create(context.Background(), &registry.CreateAgentRequest{
		ID:           "agentos.researcher",
		Name:         "Researcher",
		Capabilities: []string{"research", "general"},
	}); err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	store := sessionstore.NewMemoryStore(nil)
	t.Cleanup(func() { store.Close() })

	invoker := driver.InvokerFunc(func(ctx context.Context, a types.AgentDescriptor, task string) (*types.InvocationResult, error) {
		return &types.InvocationResult{Output: "Answer from " + a.ID, Success: true}, nil
	})

	cfg := scheduler.DefaultConfig()
	cfg.AgentTimeout = 2 * time.Second
	cfg.SessionTimeout = 10 * time.Second

	orch := orchestrator.New(orchestrator.Deps{
		Agents:     registry.NewClient(reg, nil, testLogger()),
		Analyzer:   analyzer.New(llm.Disabled{}, nil, analyzer.Config{Logger: testLogger()}),
		Decomposer: decomposer.New(llm.Disabled{}, nil, decomposer.Config{Logger: testLogger()}),
		Matcher:    matcher.New(matcher.Config{MinScore: matcher.DefaultMinScore}),
		Engine:     scheduler.New(invoker, driver.NewStoreEmitter(store), store, cfg),
		Store:      store,
		Archiver:   archiver,
		Logger:     testLogger(),
	})

	appCfg := config.Load()
	appCfg.CORSOrigins = []string{"http://localhost:5173"}

	h := NewHandlers(orch, reg, appCfg, testLogger())
	return &testServer{
		router:   NewServer(h, opts).Router(),
		registry: reg,
		store:    store,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) orchestrate(t *testing.T, query string) *types.OrchestrateResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/orchestrate", types.OrchestrateRequest{Query: query})
	if rec.Code != http.StatusOK {
		t.Fatalf("orchestrate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp types.OrchestrateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &resp
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/health", "/healthz", "/ready"} {
		rec := s.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}

	rec := s.do(t, http.MethodGet, "/ready", nil)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "ready" || body.Checks["registry"] != "ok" || body.Checks["sessionstore"] != "ok" {
		t.Errorf("ready body = %+v", body)
	}
}

func TestOrchestrate_Success(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.orchestrate(t, "Summarize the history of Bangkok")
	if !resp.Success || resp.Status != types.SessionStatusCompleted {
		t.Fatalf("Success = %v, Status = %s, Error = %q", resp.Success, resp.Status, resp.Error)
	}
	if resp.SessionID == "" {
		t.Fatal("missing session id")
	}
	if !strings.Contains(resp.FinalResponse, "Answer from agentos.researcher") {
		t.Errorf("FinalResponse = %q", resp.FinalResponse)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session = %d", rec.Code)
	}
	var sess types.OrchestrationSession
	json.Unmarshal(rec.Body.Bytes(), &sess)
	if sess.ID != resp.SessionID || sess.Status != types.SessionStatusCompleted {
		t.Errorf("session = %s/%s", sess.ID, sess.Status)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"?view=response", nil)
	var view types.OrchestrateResponse
	json.Unmarshal(rec.Body.Bytes(), &view)
	if view.FinalResponse != resp.FinalResponse {
		t.Errorf("response view FinalResponse = %q", view.FinalResponse)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/sessions", nil)
	var list struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Count != 1 {
		t.Errorf("session count = %d", list.Count)
	}
}

func TestOrchestrate_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"empty query", types.OrchestrateRequest{Query: "  "}, http.StatusBadRequest},
		{"malformed json", "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/orchestrate", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var er ErrorResponse
			json.Unmarshal(rec.Body.Bytes(), &er)
			if er.Error != ErrCodeBadRequest {
				t.Errorf("error code = %q", er.Error)
			}
		})
	}

	t.Run("duplicate session id", func(t *testing.T) {
		req := types.OrchestrateRequest{Query: "first", SessionID: "fixed-id"}
		if rec := s.do(t, http.MethodPost, "/api/v1/orchestrate", req); rec.Code != http.StatusOK {
			t.Fatalf("first = %d", rec.Code)
		}
		if rec := s.do(t, http.MethodPost, "/api/v1/orchestrate", req); rec.Code != http.StatusConflict {
			t.Errorf("second = %d, want 409", rec.Code)
		}
	})
}

func TestOrchestrate_NoAgents(t *testing.T) {
	s := newTestServer(t, nil)
	s.registry.Delete(context.Background(), "agentos.researcher")

	resp := s.orchestrate(t, "anything")
	if resp.Success || resp.Status != types.SessionStatusFailed {
		t.Errorf("Success = %v, Status = %s", resp.Success, resp.Status)
	}
	if resp.ErrorKind != "NoAgentsAvailableError" {
		t.Errorf("ErrorKind = %s", resp.ErrorKind)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return er.Error
}

func TestSessionEndpoints_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	for _, tc := range []struct{ method, path, code string }{
		{http.MethodGet, "/api/v1/sessions/missing", ErrCodeSessionNotFound},
		{http.MethodPost, "/api/v1/sessions/missing/cancel", ErrCodeSessionNotFound},
		{http.MethodGet, "/api/v1/sessions/missing/events", ErrCodeSessionNotFound},
		{http.MethodGet, "/api/v1/sessions/missing/ws", ErrCodeSessionNotFound},
		{http.MethodGet, "/api/v1/agents/missing", ErrCodeAgentNotFound},
	} {
		rec := s.do(t, tc.method, tc.path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tc.method, tc.path, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != tc.code {
			t.Errorf("%s %s error = %q, want %q", tc.method, tc.path, code, tc.code)
		}
	}
}

func TestCancelSession_Finished(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.orchestrate(t, "quick question")

	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+resp.SessionID+"/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel finished session = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeSessionFinished {
		t.Errorf("error = %q, want %q", code, ErrCodeSessionFinished)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		ok     bool
	}{
		{"invalid request", fmt.Errorf("%w: query is empty", orchestrator.ErrInvalidRequest), http.StatusBadRequest, ErrCodeBadRequest, true},
		{"duplicate session", fmt.Errorf("save: %w", sessionstore.ErrSessionExists), http.StatusConflict, ErrCodeSessionExists, true},
		{"unknown session", sessionstore.ErrSessionNotFound, http.StatusNotFound, ErrCodeSessionNotFound, true},
		{"finished session", orchestrator.ErrSessionFinished, http.StatusConflict, ErrCodeSessionFinished, true},
		{"other replica", orchestrator.ErrNotRunningHere, http.StatusConflict, ErrCodeSessionNotLocal, true},
		{"unknown agent", registry.ErrAgentNotFound, http.StatusNotFound, ErrCodeAgentNotFound, true},
		{"read-only registry", registry.ErrReadOnly, http.StatusMethodNotAllowed, ErrCodeRegistryReadOnly, true},
		{"not archived", archive.ErrNotFound, http.StatusNotFound, ErrCodeNotArchived, true},
		{"archiving off", orchestrator.ErrArchiveDisabled, http.StatusNotImplemented, ErrCodeArchiveDisabled, true},
		{"no presign", archive.ErrPresignUnsupported, http.StatusNotImplemented, ErrCodeNotImplemented, true},
		{"unrecognized", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, msg, ok := classifyError(tt.err)
			if status != tt.status || code != tt.code || ok != tt.ok {
				t.Errorf("classifyError = (%d, %q, ok=%v), want (%d, %q, ok=%v)", status, code, ok, tt.status, tt.code, tt.ok)
			}
			if ok && msg == "" {
				t.Error("empty message for a recognized error")
			}
		})
	}

	_, _, msg, _ := classifyError(fmt.Errorf("%w: query is empty", orchestrator.ErrInvalidRequest))
	if !strings.Contains(msg, "query is empty") {
		t.Errorf("message = %q, want wrapped detail", msg)
	}
}

// presigningBackend issues fake download links over the in-memory store.
type presigningBackend struct {
	*archive.MemoryBackend
}

func (b presigningBackend) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://archive.example.test/%s?expires=%s", key, expiry), nil
}

func TestArchiveLink(t *testing.T) {
	t.Run("archiving disabled", func(t *testing.T) {
		s := newTestServer(t, nil)
		resp := s.orchestrate(t, "quick question")
		rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"/archive", nil)
		if rec.Code != http.StatusNotImplemented || errorCode(t, rec) != ErrCodeArchiveDisabled {
			t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("backend without presign", func(t *testing.T) {
		s := newTestServerWithArchive(t, nil, archive.NewArchiver(archive.NewMemoryBackend(""), testLogger()))
		resp := s.orchestrate(t, "quick question")
		rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"/archive", nil)
		if rec.Code != http.StatusNotImplemented || errorCode(t, rec) != ErrCodeNotImplemented {
			t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	backend := presigningBackend{archive.NewMemoryBackend("")}
	s := newTestServerWithArchive(t, nil, archive.NewArchiver(backend, testLogger()))
	resp := s.orchestrate(t, "quick question")

	t.Run("download link", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"/archive?expiry=5m", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var body struct {
			SessionID string    `json:"session_id"`
			URL       string    `json:"url"`
			ExpiresAt time.Time `json:"expires_at"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.SessionID != resp.SessionID {
			t.Errorf("session_id = %q", body.SessionID)
		}
		if !strings.Contains(body.URL, "sessions/"+resp.SessionID+".json") || !strings.Contains(body.URL, "expires=5m0s") {
			t.Errorf("url = %q", body.URL)
		}
		if body.ExpiresAt.IsZero() {
			t.Error("missing expires_at")
		}
	})

	t.Run("bad expiry", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"/archive?expiry=soon", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("never archived", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/v1/sessions/never-ran/archive", nil)
		if rec.Code != http.StatusNotFound || errorCode(t, rec) != ErrCodeNotArchived {
			t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})
}

// readSSE parses id/event pairs from an SSE body.
func readSSE(t *testing.T, body io.Reader) (ids []string, kinds []string) {
	t.Helper()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			ids = append(ids, strings.TrimPrefix(line, "id: "))
		case strings.HasPrefix(line, "event: "):
			kinds = append(kinds, strings.TrimPrefix(line, "event: "))
		}
	}
	return ids, kinds
}

func TestStreamEvents_ReplayFinishedSession(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.orchestrate(t, "tell me something")

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	ids, kinds := readSSE(t, rec.Body)
	if len(kinds) < 3 || kinds[0] != "hello" || kinds[len(kinds)-1] != "stream_end" {
		t.Fatalf("kinds = %v", kinds)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate event id %s", id)
		}
		seen[id] = true
	}
}

func TestStreamEvents_LastEventID(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.orchestrate(t, "tell me something")

	all, _ := s.store.GetEventsSince(context.Background(), resp.SessionID, "")
	if len(all) < 3 {
		t.Fatalf("only %d events stored", len(all))
	}
	resumeAfter := all[1].ID

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+resp.SessionID+"/events", nil)
	req.Header.Set("Last-Event-ID", resumeAfter)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	ids, _ := readSSE(t, rec.Body)
	// hello + every event after the resume point
	if len(ids) != 1+len(all)-2 {
		t.Errorf("got %d events, want %d: %v", len(ids), 1+len(all)-2, ids)
	}
	for _, id := range ids {
		if id == all[0].ID || id == all[1].ID {
			t.Errorf("replayed event %s at or before Last-Event-ID", id)
		}
	}
}

func TestStreamEventsWS_FinishedSession(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.orchestrate(t, "tell me something")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + resp.SessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var kinds []types.EventType
	for {
		var evt types.Event
		if err := conn.ReadJSON(&evt); err != nil {
			break
		}
		kinds = append(kinds, evt.Type)
		if evt.Type == types.EventTypeStreamEnd {
			break
		}
	}
	if len(kinds) < 2 || kinds[0] != types.EventTypeHello || kinds[len(kinds)-1] != types.EventTypeStreamEnd {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestStreamEventsWS_RejectsOrigin(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.orchestrate(t, "tell me something")

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + resp.SessionID + "/ws"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, httpResp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected dial to fail for foreign origin")
	}
	if httpResp == nil || httpResp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %+v", httpResp)
	}
}

func TestAgentsCRUD(t *testing.T) {
	s := newTestServer(t, nil)

	create := registry.CreateAgentRequest{ID: "agentos.weather", Name: "Weather", Capabilities: []string{"weather"}}
	if rec := s.do(t, http.MethodPost, "/api/v1/agents", create); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/agents", create); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/agents", registry.CreateAgentRequest{ID: "nameless"}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/agents?capability=weather", nil)
	var list struct {
		Agents []registry.Agent `json:"agents"`
		Count  int              `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Count != 1 || list.Agents[0].ID != "agentos.weather" {
		t.Errorf("filtered list = %+v", list)
	}

	name := "Weather Agent"
	rec = s.do(t, http.MethodPut, "/api/v1/agents/agentos.weather", registry.UpdateAgentRequest{Name: &name})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d", rec.Code)
	}
	var updated registry.Agent
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Name != name {
		t.Errorf("Name = %q", updated.Name)
	}

	if rec := s.do(t, http.MethodDelete, "/api/v1/agents/agentos.weather", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/agents/agentos.weather", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", rec.Code)
	}
}

func TestSessionStoreInfo(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/sessionstore/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &info)
	if info["adapter"] != "memory" {
		t.Errorf("info = %v", info)
	}
}

func TestMiddleware_CORSAndRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/orchestrate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("preflight = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var er ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &er)
	if er.RequestID != "req-123" || rec.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("request id = %q / %q", er.RequestID, rec.Header().Get("X-Request-ID"))
	}
}

type stubVerifier struct{}

func (stubVerifier) VerifyToken(ctx context.Context, raw string) (*auth.Claims, error) {
	if raw == "good" {
		return &auth.Claims{Subject: "user-1"}, nil
	}
	return nil, errors.New("bad token")
}

func (stubVerifier) VerifyAccessToken(ctx context.Context, raw string) (*auth.Claims, error) {
	return nil, errors.New("bad token")
}

func TestServer_AuthAndRateLimit(t *testing.T) {
	limiter := auth.NewPerIPRateLimiter(1, 2)
	defer limiter.Stop()

	s := newTestServer(t, &ServerOptions{
		Auth:        auth.NewMiddleware(stubVerifier{}, &auth.MiddlewareConfig{Enabled: true}),
		RateLimiter: limiter,
	})

	if rec := s.do(t, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("public path = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/sessions", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429 after burst", rec.Code)
	}
}
