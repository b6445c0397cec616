// Package resilient wraps unreliable calls with bounded retries and a
// deterministic fallback.
package resilient

import (
	"context"
	"errors"
	"math"
	"time"
)

// Policy controls how Call retries.
type Policy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int

	// Initial and Max bound the exponential backoff between attempts.
	Initial time.Duration
	Max     time.Duration

	// Timeout bounds each attempt. Zero means the caller's context only.
	Timeout time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error except context cancellation.
	Retryable func(error) bool
}

// Result is the outcome of Call.
type Result[T any] struct {
	Value    T
	Attempts int

	// Err is the last error seen. It is set even when Fallback produced Value.
	Err error

	// Fallback is true when Value came from the fallback function.
	Fallback bool
}

// OK reports whether the call succeeded without falling back.
func (r Result[T]) OK() bool {
	return r.Err == nil && !r.Fallback
}

// Backoff returns the delay before the given retry (1-based).
func (p Policy) Backoff(retry int) time.Duration {
	if p.Initial <= 0 || retry <= 0 {
		return 0
	}
	d := float64(p.Initial) * math.Pow(2, float64(retry-1))
	if p.Max > 0 && d > float64(p.Max) {
		return p.Max
	}
	return time.Duration(d)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// Call runs fn until it succeeds, the retry budget is spent or ctx is done.
// A ctx that is already done skips fn entirely. When every attempt fails and fallback is non-nil, its value is returned
// with Fallback set.
func Call[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), fallback func(err error) T) Result[T] {
	var res Result[T]
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Backoff(attempt-1)); err != nil {
				res.Err = err
				break
			}
		} else if err := ctx.Err(); err != nil {
			res.Err = context.Cause(ctx)
			break
		}

		res.Attempts = attempt
		v, err := runAttempt(ctx, p.Timeout, attempt, fn)
		if err == nil {
			res.Value = v
			res.Err = nil
			return res
		}
		res.Err = err

		if ctx.Err() != nil || !p.retryable(err) {
			break
		}
	}

	if fallback != nil {
		res.Value = fallback(res.Err)
		res.Fallback = true
	}
	return res
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, fn func(context.Context, int) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx, attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
