package driver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// RateLimitedInvoker throttles invocations per agent.
type RateLimitedInvoker struct {
	next     Invoker
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitedInvoker wraps next with a per-agent token bucket.
// A non-positive rps returns next unchanged.
func NewRateLimitedInvoker(next Invoker, rps float64, burst int) Invoker {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedInvoker{
		next:     next,
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (r *RateLimitedInvoker) limiter(agentID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[agentID]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[agentID] = l
	}
	return l
}

// Invoke waits for the agent's limiter, then delegates.
func (r *RateLimitedInvoker) Invoke(ctx context.Context, agent types.AgentDescriptor, task string) (*types.InvocationResult, error) {
	if err := r.limiter(agent.ID).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Invoke(ctx, agent, task)
}
