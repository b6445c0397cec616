package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// DefaultSubjectPrefix is the subject namespace agents listen on.
const DefaultSubjectPrefix = "agents"

// NATSInvoker invokes agents with NATS request/reply on <prefix>.<agent id>.
type NATSInvoker struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NATSConfig holds configuration for the NATS invoker.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Logger        *slog.Logger
}

// NewNATSInvoker connects to NATS and returns an invoker.
func NewNATSInvoker(cfg NATSConfig) (*NATSInvoker, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("agentos-orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return newNATSInvoker(conn, cfg), nil
}

func newNATSInvoker(conn *nats.Conn, cfg NATSConfig) *NATSInvoker {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSInvoker{conn: conn, prefix: prefix, logger: logger}
}

// Subject returns the request subject for an agent.
func (n *NATSInvoker) Subject(agentID string) string {
	return n.prefix + "." + agentID
}

// Invoke sends the task as a request and waits for the reply or ctx.
func (n *NATSInvoker) Invoke(ctx context.Context, agent types.AgentDescriptor, task string) (*types.InvocationResult, error) {
	data, err := json.Marshal(newRequest(ctx, agent, task))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	msg, err := n.conn.RequestWithContext(ctx, n.Subject(agent.ID), data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("%w: no responders on %s", ErrNoEndpoint, n.Subject(agent.ID))
		}
		return nil, fmt.Errorf("nats request %s: %w", n.Subject(agent.ID), err)
	}

	var out InvokeResponse
	if err := json.Unmarshal(msg.Data, &out); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	result := out.toResult()
	result.Duration = time.Since(start)

	n.logger.Debug("agent invoked over nats",
		slog.String("agent_id", agent.ID),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// Ping reports whether the connection is usable.
func (n *NATSInvoker) Ping(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats: %s", n.conn.Status())
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATSInvoker) Close() error {
	return n.conn.Drain()
}

var _ Invoker = (*NATSInvoker)(nil)
