package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "prose around object", in: "Sure! Here you go:\n{\"a\":{\"b\":2}}\nHope that helps.", want: `{"a":{"b":2}}`},
		{name: "code fence", in: "```json\n[1,2,3]\n```", want: `[1,2,3]`},
		{name: "array of objects", in: `steps: [{"task":"x"},{"task":"y"}]`, want: `[{"task":"x"},{"task":"y"}]`},
		{name: "no json", in: "I cannot help with that", wantErr: true},
		{name: "unterminated", in: `{"a":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNoJSON) {
				t.Errorf("error should wrap ErrNoJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicClient(AnthropicConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestAnthropicClient_Complete(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "world"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(AnthropicConfig{APIKey: "test", BaseURL: srv.URL, Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatalf("NewAnthropicClient failed: %v", err)
	}

	out, err := c.Complete(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != "hello world" {
		t.Errorf("Complete() = %q, want %q", out, "hello world")
	}
	if gotModel != "claude-sonnet-4-20250514" {
		t.Errorf("model sent = %q", gotModel)
	}
}
