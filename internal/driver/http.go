package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// maxResponseBytes bounds how much of an agent reply is read.
const maxResponseBytes = 8 << 20

// HTTPInvoker invokes agents by POSTing the task to their endpoint.
type HTTPInvoker struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// HTTPConfig holds configuration for the HTTP invoker.
type HTTPConfig struct {
	// BaseURL is used for agents without an endpoint:
	// <BaseURL>/agents/<id>/invoke
	BaseURL string

	// Client overrides the default instrumented client.
	Client *http.Client

	Logger *slog.Logger
}

// NewHTTPInvoker creates a new HTTP invoker.
func NewHTTPInvoker(cfg *HTTPConfig) *HTTPInvoker {
	if cfg == nil {
		cfg = &HTTPConfig{}
	}
	client := cfg.Client
	if client == nil {
		// Per-call deadlines come from ctx.
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPInvoker{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// endpoint resolves the URL to POST to for an agent.
func (h *HTTPInvoker) endpoint(agent types.AgentDescriptor) (string, error) {
	if agent.Endpoint != "" {
		return agent.Endpoint, nil
	}
	if h.baseURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoEndpoint, agent.ID)
	}
	return h.baseURL + "/agents/" + url.PathEscape(agent.ID) + "/invoke", nil
}

// Invoke posts the task and decodes the agent's reply.
func (h *HTTPInvoker) Invoke(ctx context.Context, agent types.AgentDescriptor, task string) (*types.InvocationResult, error) {
	target, err := h.endpoint(agent)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(newRequest(ctx, agent, task))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent %s returned HTTP %d: %s", agent.ID, resp.StatusCode, snippet(data))
	}

	var out InvokeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		// Plain-text agents answer with the output itself.
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			return &types.InvocationResult{Output: string(data), Success: true, Duration: elapsed}, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := out.toResult()
	result.Duration = elapsed

	h.logger.Debug("agent invoked",
		slog.String("agent_id", agent.ID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	)
	return result, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

var _ Invoker = (*HTTPInvoker)(nil)
