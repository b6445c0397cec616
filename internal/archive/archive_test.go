package archive

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

func TestNew(t *testing.T) {
	for _, typ := range []string{"", "none"} {
		a, err := New(&Config{Type: typ})
		if err != nil || a != nil {
			t.Errorf("New(%q) = %v, %v; want disabled", typ, a, err)
		}
	}
	if _, err := New(&Config{Type: "tape"}); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := New(&Config{Type: "s3"}); err == nil {
		t.Error("expected error for missing bucket")
	}
	if a, err := New(&Config{Type: "memory"}); err != nil || a == nil {
		t.Errorf("New(memory) = %v, %v", a, err)
	}
}

func TestArchiver_RoundTrip(t *testing.T) {
	backend := NewMemoryBackend("orchestrator")
	a := NewArchiver(backend, nil)
	ctx := context.Background()

	sess := &types.OrchestrationSession{
		ID:        "abc",
		Query:     "weather then poem",
		Status:    types.SessionStatusCompleted,
		Results:   []types.AgentExecutionResult{{Step: 1, AgentID: "weather", Output: "hot", Success: true}},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	ref, err := a.ArchiveSession(ctx, sess)
	if err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	if ref.URI != "memory://orchestrator/sessions/abc.json" {
		t.Errorf("URI = %q", ref.URI)
	}
	if ref.Size == 0 || len(ref.Checksum) != 64 {
		t.Errorf("ref = %+v", ref)
	}

	got, err := a.LoadSession(ctx, "abc")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if got.Query != sess.Query || !reflect.DeepEqual(got.Results, sess.Results) {
		t.Errorf("LoadSession() = %+v", got)
	}

	ids, err := a.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"abc"}) {
		t.Errorf("ListSessions() = %v", ids)
	}

	if _, err := a.LoadSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := a.DownloadURL(ctx, "abc", time.Minute); !errors.Is(err, ErrPresignUnsupported) {
		t.Errorf("expected ErrPresignUnsupported, got %v", err)
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey("s-1"); got != "sessions/s-1.json" {
		t.Errorf("SessionKey() = %q", got)
	}
}
