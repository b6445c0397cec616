package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RemoteRegistry reads agents from an external capability registry over HTTP.
// It expects GET <base>/agents and GET <base>/agents/{id}. It is read-only.
type RemoteRegistry struct {
	baseURL string
	client  *http.Client
}

// NewRemoteRegistry creates a registry client for baseURL.
func NewRemoteRegistry(baseURL string, client *http.Client) (*RemoteRegistry, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("registry url: %w", err)
	}
	if client == nil {
		client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &RemoteRegistry{baseURL: strings.TrimRight(baseURL, "/"), client: client}, nil
}

func (r *RemoteRegistry) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrAgentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("registry returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	return nil
}

func (r *RemoteRegistry) Create(ctx context.Context, req *CreateAgentRequest) (*Agent, error) {
	return nil, ErrReadOnly
}

func (r *RemoteRegistry) Get(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	if err := r.get(ctx, "/agents/"+url.PathEscape(id), &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *RemoteRegistry) Update(ctx context.Context, id string, req *UpdateAgentRequest) (*Agent, error) {
	return nil, ErrReadOnly
}

func (r *RemoteRegistry) Delete(ctx context.Context, id string) error {
	return ErrReadOnly
}

// List accepts either a bare array or an {"agents": [...]} envelope.
func (r *RemoteRegistry) List(ctx context.Context, opts *ListOptions) ([]*Agent, error) {
	var raw json.RawMessage
	if err := r.get(ctx, "/agents", &raw); err != nil {
		return nil, err
	}

	var agents []*Agent
	if err := json.Unmarshal(raw, &agents); err != nil {
		var envelope struct {
			Agents []*Agent `json:"agents"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("decode agent list: %w", err)
		}
		agents = envelope.Agents
	}
	return selectAgents(agents, opts), nil
}

func (r *RemoteRegistry) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.Get(ctx, id)
	if err == ErrAgentNotFound {
		return false, nil
	}
	return err == nil, err
}

// Ping lists agents to confirm the registry answers.
func (r *RemoteRegistry) Ping(ctx context.Context) error {
	return r.get(ctx, "/agents", nil)
}

func (r *RemoteRegistry) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

var _ AgentRegistry = (*RemoteRegistry)(nil)
