package resilient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCall_SucceedsFirstTry(t *testing.T) {
	res := Call(context.Background(), Policy{MaxRetries: 3}, func(ctx context.Context, attempt int) (string, error) {
		return "ok", nil
	}, nil)

	if !res.OK() {
		t.Fatalf("expected success, got err=%v fallback=%v", res.Err, res.Fallback)
	}
	if res.Value != "ok" {
		t.Errorf("Value = %q, want ok", res.Value)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestCall_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	res := Call(context.Background(), Policy{MaxRetries: 2, Initial: time.Millisecond}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		if attempt < 3 {
			return 0, errors.New("flaky")
		}
		return attempt, nil
	}, nil)

	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if calls != 3 || res.Attempts != 3 || res.Value != 3 {
		t.Errorf("calls=%d attempts=%d value=%d, want 3/3/3", calls, res.Attempts, res.Value)
	}
}

func TestCall_FallbackAfterExhaustion(t *testing.T) {
	boom := errors.New("boom")
	res := Call(context.Background(), Policy{MaxRetries: 1}, func(ctx context.Context, attempt int) (string, error) {
		return "", boom
	}, func(err error) string {
		return "default: " + err.Error()
	})

	if !res.Fallback {
		t.Fatal("expected fallback")
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("Err = %v, want boom", res.Err)
	}
	if res.Value != "default: boom" {
		t.Errorf("Value = %q", res.Value)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
}

func TestCall_NoFallbackKeepsZeroValue(t *testing.T) {
	res := Call(context.Background(), Policy{}, func(ctx context.Context, attempt int) (*int, error) {
		return nil, errors.New("nope")
	}, nil)

	if res.Fallback || res.Err == nil || res.Value != nil {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCall_NonRetryableStopsEarly(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	p := Policy{
		MaxRetries: 5,
		Retryable:  func(err error) bool { return !errors.Is(err, permanent) },
	}
	res := Call(context.Background(), p, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, permanent
	}, nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(res.Err, permanent) {
		t.Errorf("Err = %v", res.Err)
	}
}

func TestCall_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res := Call(ctx, Policy{MaxRetries: 10, Initial: time.Hour}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		cancel()
		return 0, errors.New("failed")
	}, func(err error) int { return -1 })

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !res.Fallback || res.Value != -1 {
		t.Errorf("expected fallback value, got %+v", res)
	}
}

func TestCall_ExpiredContextSkipsAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := Call(ctx, Policy{MaxRetries: 3}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 1, nil
	}, func(err error) int { return -1 })

	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if res.OK() || !res.Fallback || res.Value != -1 {
		t.Errorf("expected fallback value, got %+v", res)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", res.Err)
	}
}

func TestCall_AttemptTimeout(t *testing.T) {
	start := time.Now()
	res := Call(context.Background(), Policy{Timeout: 20 * time.Millisecond}, func(ctx context.Context, attempt int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil)

	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want deadline exceeded", res.Err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("attempt was not bounded by timeout")
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Second}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.retry); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}
