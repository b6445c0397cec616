package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/config"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/orchestrator"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/registry"
	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/pkg/types"
)

// maxRequestBytes bounds orchestrate and agent request bodies.
const maxRequestBytes = 1 << 20

const (
	defaultArchiveLinkExpiry = 15 * time.Minute
	maxArchiveLinkExpiry     = 24 * time.Hour
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	orch     *orchestrator.Orchestrator
	registry registry.AgentRegistry
	config   *config.Config
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(orch *orchestrator.Orchestrator, reg registry.AgentRegistry, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Load()
	}
	return &Handlers{
		orch:     orch,
		registry: reg,
		config:   cfg,
		logger:   logger,
	}
}

// --- Health Endpoints ---

// Health handles the /health and /healthz endpoints.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles the /ready endpoint, checking the registry and session store.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	report := h.orch.Health(r.Context())
	status := http.StatusOK
	state := "ready"
	if !report.Ready {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	}
	h.respondJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": report.Checks,
	})
}

// --- Orchestration ---

// Orchestrate handles POST /api/v1/orchestrate. It blocks until the session
// finishes; progress is available on the session's event stream meanwhile.
func (h *Handlers) Orchestrate(w http.ResponseWriter, r *http.Request) {
	var req types.OrchestrateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.orch.Handle(r.Context(), &req)
	if err != nil {
		h.respondDomainError(w, r, err, "orchestration failed")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// --- Session Management ---

// ListSessions handles GET /api/v1/sessions
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.orch.ListSessions(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []*types.SessionMeta{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession handles GET /api/v1/sessions/{id}. Adding ?view=response
// returns the session in the orchestrate response shape.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sess, err := h.orch.GetSession(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err, "failed to get session")
		return
	}

	if r.URL.Query().Get("view") == "response" {
		h.respondJSON(w, http.StatusOK, orchestrator.ResponseFor(sess))
		return
	}
	h.respondJSON(w, http.StatusOK, sess)
}

// CancelSession handles POST /api/v1/sessions/{id}/cancel
func (h *Handlers) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.orch.CancelSession(r.Context(), id); err != nil {
		h.respondDomainError(w, r, err, "failed to cancel session")
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"session_id": id,
		"status":     "cancelling",
	})
}

// ArchiveLink handles GET /api/v1/sessions/{id}/archive. ?expiry=30m sets the
// link lifetime, capped at maxArchiveLinkExpiry.
func (h *Handlers) ArchiveLink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	expiry := defaultArchiveLinkExpiry
	if v := r.URL.Query().Get("expiry"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			h.respondError(w, r, http.StatusBadRequest, "invalid expiry", nil)
			return
		}
		expiry = min(d, maxArchiveLinkExpiry)
	}

	url, err := h.orch.ArchiveURL(r.Context(), id, expiry)
	if err != nil {
		h.respondDomainError(w, r, err, "failed to create archive link")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"url":        url,
		"expires_at": time.Now().UTC().Add(expiry),
	})
}

// --- Agent Registry ---

// ListAgents handles GET /api/v1/agents. Supports ?capability=a,b,
// ?status=online, ?limit and ?offset.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := &registry.ListOptions{
		Status: types.AgentStatus(q.Get("status")),
	}
	if caps := q.Get("capability"); caps != "" {
		opts.Capabilities = strings.Split(caps, ",")
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}

	agents, err := h.registry.List(r.Context(), opts)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "failed to list agents", err)
		return
	}
	if agents == nil {
		agents = []*registry.Agent{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"count":  len(agents),
	})
}

// CreateAgent handles POST /api/v1/agents
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req registry.CreateAgentRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	agent, err := h.registry.Create(r.Context(), &req)
	if err != nil {
		h.respondDomainError(w, r, err, "failed to create agent")
		return
	}
	h.respondJSON(w, http.StatusCreated, agent)
}

// GetAgent handles GET /api/v1/agents/{id}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.registry.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondDomainError(w, r, err, "failed to get agent")
		return
	}
	h.respondJSON(w, http.StatusOK, agent)
}

// UpdateAgent handles PUT /api/v1/agents/{id}
func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req registry.UpdateAgentRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	agent, err := h.registry.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		h.respondDomainError(w, r, err, "failed to update agent")
		return
	}
	h.respondJSON(w, http.StatusOK, agent)
}

// DeleteAgent handles DELETE /api/v1/agents/{id}
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondDomainError(w, r, err, "failed to delete agent")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Diagnostics ---

// SessionStoreInfo handles GET /api/v1/sessionstore/info
func (h *Handlers) SessionStoreInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.orch.Store().AdapterInfo(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, "failed to get session store info", err)
		return
	}
	h.respondJSON(w, http.StatusOK, info)
}

// --- Helper Methods ---

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// respondDomainError reports a known engine error with its own code, and
// anything else as a logged 500 with the fallback message.
func (h *Handlers) respondDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, code, message, ok := classifyError(err)
	if !ok {
		h.respondError(w, r, http.StatusInternalServerError, fallback, err)
		return
	}
	writeErrorResponse(w, r, status, code, message, nil)
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		h.logger.Error(message,
			"error", err,
			"status", status,
			"request_id", GetRequestID(r.Context(), r),
		)
	}
	writeErrorResponse(w, r, status, HTTPStatusToErrorCode(status), message, nil)
}
