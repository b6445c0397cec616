// Package llm provides the language-model collaborator used by the analyzer
// and the decomposer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("language model disabled")

// ErrNoJSON is returned by ExtractJSON when the text holds no JSON value.
var ErrNoJSON = errors.New("no JSON found in model output")

// Completer turns a prompt into untrusted model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Disabled is used when no API key is configured. Every caller falls back to
// its heuristic path.
type Disabled struct{}

// Complete always fails with ErrDisabled.
func (Disabled) Complete(context.Context, string) (string, error) {
	return "", ErrDisabled
}

// ExtractJSON returns the outermost JSON object or array embedded in text.
// Model output often wraps JSON in prose or code fences.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", fmt.Errorf("%w: unterminated %q", ErrNoJSON, text[start])
	}
	return text[start : end+1], nil
}

// Truncate shortens s for log lines.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
