package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/praxishq/agent-gateway/internal/events"
	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/pkg/api"
)

// handlePostMessage appends the user message and emits a generation job.
// The caller always gets an immediate acknowledgment; generation outcome is
// only visible on the stream or in the finalized session.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req api.PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "userId and content are required")
		return
	}

	chat, err := s.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	if chat.UserID != req.UserID {
		writeError(w, http.StatusForbidden, "session belongs to a different user")
		return
	}
	if _, err := s.providers.Get(chat.AgentID); err != nil {
		writeError(w, http.StatusNotFound, "unknown agent: "+chat.AgentID)
		return
	}

	userMsg := session.AgentMessage{
		ID:        session.NewMessageID(),
		Type:      session.MessageTypeUser,
		Content:   req.Content,
		Timestamp: time.Now().UTC(),
	}
	if err := s.sessions.AddMessage(r.Context(), sessionID, userMsg); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to append message")
		return
	}

	job := events.GenerateRequestEvent{
		SessionID:     sessionID,
		AgentID:       chat.AgentID,
		UserMessageID: userMsg.ID,
		UserMessage:   req.Content,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.bus.Emit(job); err != nil {
		log.Printf("[%s] Failed to emit generation job: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "failed to schedule generation")
		return
	}

	writeJSON(w, http.StatusAccepted, api.PostMessageResponse{
		Accepted:  true,
		SessionID: sessionID,
		MessageID: userMsg.ID,
		StreamURL: fmt.Sprintf("/api/sessions/%s/stream", sessionID),
	})
}
