// Package handlers exposes the gateway's HTTP surface.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/praxishq/agent-gateway/internal/agent"
	"github.com/praxishq/agent-gateway/internal/config"
	"github.com/praxishq/agent-gateway/internal/eventbus"
	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/stream"
	"github.com/praxishq/agent-gateway/pkg/api"
)

type Server struct {
	sessions  *session.Manager
	broker    stream.Broker
	bus       eventbus.Bus
	providers *agent.Registry

	heartbeat     time.Duration
	lookupRetries int
	lookupDelay   time.Duration
	startedAt     time.Time
}

func NewServer(cfg *config.Config, sessions *session.Manager, broker stream.Broker, bus eventbus.Bus, providers *agent.Registry) *Server {
	return &Server{
		sessions:      sessions,
		broker:        broker,
		bus:           bus,
		providers:     providers,
		heartbeat:     cfg.HeartbeatInterval,
		lookupRetries: cfg.StreamLookupRetries,
		lookupDelay:   cfg.StreamLookupDelay,
		startedAt:     time.Now(),
	}
}

// Router wires every endpoint of the gateway.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/restore", s.handleRestoreSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/extend", s.handleExtendSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/messages", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/cancel", s.handleCancelStream).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthStatus{
		Service:      "agent-gateway",
		Status:       "healthy",
		SessionStore: s.sessions.Mode(),
		Broker:       s.broker.Mode(),
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		Timestamp:    time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
