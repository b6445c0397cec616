package sessionstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// newTestRedisStore connects to ORCH_TEST_REDIS_URL or skips.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	url := os.Getenv("ORCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ORCH_TEST_REDIS_URL not set")
	}
	cfg := DefaultRedisConfig()
	cfg.URL = url
	cfg.Prefix = "test-" + uuid.NewString()
	cfg.TTL = time.Minute
	store, err := NewRedisStore(cfg)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.CreateSession(ctx, newSession("s1", time.Now().UTC())); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateSession(ctx, newSession("s1", time.Now().UTC())); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}

	store.UpdateAssignmentState(ctx, "s1", 2, types.AssignmentCompleted)
	store.AppendResult(ctx, "s1", &types.AgentExecutionResult{Step: 2, AgentID: "b", Success: true})

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.States[2] != types.AssignmentCompleted || len(got.Results) != 1 {
		t.Errorf("progress not overlaid: %+v", got)
	}

	metas, _ := store.ListSessions(ctx)
	if len(metas) != 1 {
		t.Errorf("expected 1 session, got %d", len(metas))
	}
}

func TestRedisStore_EventsAndSubscribe(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	store.CreateSession(ctx, newSession("s1", time.Now().UTC()))

	ch, cleanup, err := store.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cleanup()

	// Give XREAD a moment to block on "$".
	time.Sleep(200 * time.Millisecond)
	store.AppendEvent(ctx, "s1", &types.EventInput{Type: types.EventTypeHello})
	store.AppendEvent(ctx, "s1", &types.EventInput{Type: types.EventTypeStreamEnd, Step: 3})

	events, _ := store.GetEventsSince(ctx, "s1", "1")
	if len(events) != 1 || events[0].Step != 3 {
		t.Errorf("unexpected events: %+v", events)
	}

	select {
	case evt := <-ch:
		if evt.Type != types.EventTypeHello {
			t.Errorf("first event = %s", evt.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisStore_RefreshTTLLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	store := &RedisStore{
		client: client,
		prefix: "sessions",
		ttl:    time.Minute,
		logger: slog.New(slog.NewTextHandler(&buf, nil)),
	}
	store.refreshTTL(context.Background(), "s1")

	out := buf.String()
	if !strings.Contains(out, "session ttl refresh failed") || !strings.Contains(out, "session_id=s1") {
		t.Errorf("log output = %q", out)
	}

	buf.Reset()
	store.ttl = 0
	store.refreshTTL(context.Background(), "s1")
	if buf.Len() != 0 {
		t.Errorf("no refresh expected without a TTL, got %q", buf.String())
	}
}
