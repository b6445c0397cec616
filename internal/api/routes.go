// Package api provides HTTP handlers and routing for the orchestrator service.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ashfrnndz21/AgentOS-Latest-Release-sub001/internal/auth"
)

// ServerOptions configures optional request guards.
type ServerOptions struct {
	// Auth enforces bearer tokens when non-nil.
	Auth *auth.Middleware

	// RateLimiter throttles clients per IP when non-nil.
	RateLimiter *auth.PerIPRateLimiter
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	router   *mux.Router
	handlers *Handlers
	opts     ServerOptions
}

// NewServer creates a new API server with the given handlers.
func NewServer(h *Handlers, opts *ServerOptions) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
	}
	if opts != nil {
		s.opts = *opts
	}
	s.setupRoutes()
	return s
}

// Router returns the configured router for use with http.Server.
func (s *Server) Router() http.Handler {
	return otelhttp.NewHandler(s.router, "orchestrator",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics" && r.URL.Path != "/healthz"
		}),
	)
}

func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/healthz", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/ready", s.handlers.Ready).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Orchestration
	api.HandleFunc("/orchestrate", s.handlers.Orchestrate).Methods("POST")

	// Session management
	api.HandleFunc("/sessions", s.handlers.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handlers.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/cancel", s.handlers.CancelSession).Methods("POST")
	api.HandleFunc("/sessions/{id}/archive", s.handlers.ArchiveLink).Methods("GET")
	api.HandleFunc("/sessions/{id}/events", s.handlers.StreamEvents).Methods("GET")
	api.HandleFunc("/sessions/{id}/ws", s.handlers.StreamEventsWS).Methods("GET")

	// Agent registry
	api.HandleFunc("/agents", s.handlers.ListAgents).Methods("GET")
	api.HandleFunc("/agents", s.handlers.CreateAgent).Methods("POST")
	api.HandleFunc("/agents/{id}", s.handlers.GetAgent).Methods("GET")
	api.HandleFunc("/agents/{id}", s.handlers.UpdateAgent).Methods("PUT")
	api.HandleFunc("/agents/{id}", s.handlers.DeleteAgent).Methods("DELETE")

	// Session store diagnostics
	api.HandleFunc("/sessionstore/info", s.handlers.SessionStoreInfo).Methods("GET")

	// CORS preflight for any path; CORSMiddleware answers it
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Apply middleware
	s.router.Use(s.handlers.CORSMiddleware)
	s.router.Use(s.handlers.LoggingMiddleware)
	s.router.Use(s.handlers.RecoveryMiddleware)
	if s.opts.RateLimiter != nil {
		s.router.Use(s.opts.RateLimiter.Handler)
	}
	if s.opts.Auth != nil {
		s.router.Use(s.opts.Auth.Handler)
	}
}
