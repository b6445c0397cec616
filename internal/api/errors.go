package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/archive"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/orchestrator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/registry"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/sessionstore"
)

// Generic error codes, derived from the HTTP status.
const (
	ErrCodeAuthRequired     = "auth_required"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeConflict         = "conflict"
	ErrCodeNotImplemented   = "not_implemented"
	ErrCodeInternalError    = "internal_error"
	ErrCodeServiceUnavail   = "service_unavailable"
)

// Domain error codes, one per engine sentinel error.
const (
	ErrCodeSessionNotFound  = "session_not_found"
	ErrCodeSessionExists    = "session_exists"
	ErrCodeSessionFinished  = "session_finished"
	ErrCodeSessionNotLocal  = "session_not_local"
	ErrCodeAgentNotFound    = "agent_not_found"
	ErrCodeAgentExists      = "agent_exists"
	ErrCodeInvalidAgent     = "invalid_agent"
	ErrCodeRegistryReadOnly = "registry_read_only"
	ErrCodeNotArchived      = "session_not_archived"
	ErrCodeArchiveDisabled  = "archive_disabled"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

type requestIDContextKey struct{}

// RequestIDKey is the context key LoggingMiddleware stores the request ID under.
var RequestIDKey = requestIDContextKey{}

// GetRequestID returns the request ID from ctx, or the X-Request-ID header.
func GetRequestID(ctx context.Context, r *http.Request) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// domainError describes how one sentinel error is reported. An empty message
// shows err.Error(), which carries the wrapped detail.
type domainError struct {
	target  error
	status  int
	code    string
	message string
}

// domainErrors is checked in order with errors.Is.
var domainErrors = []domainError{
	{orchestrator.ErrInvalidRequest, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{sessionstore.ErrSessionExists, http.StatusConflict, ErrCodeSessionExists, "session already exists"},
	{sessionstore.ErrSessionNotFound, http.StatusNotFound, ErrCodeSessionNotFound, "session not found"},
	{orchestrator.ErrSessionFinished, http.StatusConflict, ErrCodeSessionFinished, ""},
	{orchestrator.ErrNotRunningHere, http.StatusConflict, ErrCodeSessionNotLocal, ""},
	{registry.ErrAgentNotFound, http.StatusNotFound, ErrCodeAgentNotFound, "agent not found"},
	{registry.ErrAgentExists, http.StatusConflict, ErrCodeAgentExists, "agent already exists"},
	{registry.ErrInvalidAgent, http.StatusBadRequest, ErrCodeInvalidAgent, ""},
	{registry.ErrReadOnly, http.StatusMethodNotAllowed, ErrCodeRegistryReadOnly, "agent registry is read-only"},
	{archive.ErrNotFound, http.StatusNotFound, ErrCodeNotArchived, "session is not archived"},
	{orchestrator.ErrArchiveDisabled, http.StatusNotImplemented, ErrCodeArchiveDisabled, "session archiving is disabled"},
	{archive.ErrPresignUnsupported, http.StatusNotImplemented, ErrCodeNotImplemented, "archive backend cannot issue download links"},
}

// classifyError resolves err against domainErrors. ok is false for errors the
// API does not recognize.
func classifyError(err error) (status int, code, message string, ok bool) {
	for _, d := range domainErrors {
		if !errors.Is(err, d.target) {
			continue
		}
		message = d.message
		if message == "" {
			message = err.Error()
		}
		return d.status, d.code, message, true
	}
	return http.StatusInternalServerError, ErrCodeInternalError, "", false
}

// HTTPStatusToErrorCode maps a status to its generic error code.
func HTTPStatusToErrorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return ErrCodeAuthRequired
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusMethodNotAllowed:
		return ErrCodeMethodNotAllowed
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusConflict:
		return ErrCodeConflict
	case http.StatusNotImplemented:
		return ErrCodeNotImplemented
	case http.StatusServiceUnavailable:
		return ErrCodeServiceUnavail
	default:
		return ErrCodeInternalError
	}
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]interface{}) {
	requestID := GetRequestID(r.Context(), r)
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	})
}
