package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/stream"
	"github.com/praxishq/agent-gateway/pkg/api"
)

// handleStream attaches an SSE byte stream to the session's channel. The
// session lookup retries briefly: a client often opens the stream right
// after creating the session, before a durable-store write is visible.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if _, err := s.lookupWithRetry(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	log.Printf("[%s] SSE stream opened", sessionID)

	if err := stream.ServeSSE(r.Context(), w, s.broker, sessionID, s.heartbeat); err != nil {
		log.Printf("[%s] SSE stream error: %v", sessionID, err)
	}
}

func (s *Server) lookupWithRetry(ctx context.Context, sessionID string) (*session.ChatSession, error) {
	var lastErr error
	for attempt := 0; attempt <= s.lookupRetries; attempt++ {
		chat, err := s.sessions.GetSession(ctx, sessionID)
		if err == nil {
			return chat, nil
		}
		lastErr = err
		if !errors.Is(err, session.ErrSessionNotFound) {
			return nil, err
		}
		if attempt < s.lookupRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.lookupDelay):
			}
		}
	}
	return nil, lastErr
}

func (s *Server) handleCancelStream(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if _, err := s.sessions.GetSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	var req api.CancelStreamRequest
	if r.Body != nil {
		// The body is optional; a bare POST cancels with the default reason.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := stream.Cancel(r.Context(), s.broker, sessionID, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel stream")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
