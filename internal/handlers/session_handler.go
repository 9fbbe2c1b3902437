package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/pkg/api"
)

const defaultSessionLimit = 20

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "userId and agentId are required")
		return
	}
	if _, err := s.providers.Get(req.AgentID); err != nil {
		writeError(w, http.StatusNotFound, "unknown agent: "+req.AgentID)
		return
	}

	chat, err := s.sessions.CreateSession(r.Context(), req.UserID, req.AgentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if len(req.Metadata) > 0 {
		chat.Metadata = req.Metadata
		if err := s.sessions.SaveSession(r.Context(), chat); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save session metadata")
			return
		}
	}

	writeJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	chat, err := s.sessions.GetSession(r.Context(), id)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, chat)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	sessions, err := s.sessions.GetUserSessions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*session.ChatSession{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.sessions.DeleteSession(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExtendSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := s.sessions.ExtendSessionTTL(r.Context(), id)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to extend session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestoreSession(w http.ResponseWriter, r *http.Request) {
	var req api.RestoreSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.UserID == "" || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "sessionId, userId and agentId are required")
		return
	}

	chat, err := s.sessions.CreateSessionWithID(r.Context(), req.SessionID, req.UserID, req.AgentID)
	if errors.Is(err, session.ErrSessionExists) {
		writeJSON(w, http.StatusOK, api.RestoreSessionResponse{Restored: false, SessionID: req.SessionID})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to restore session")
		return
	}

	if len(req.Messages) > 0 {
		chat.Messages = make([]session.AgentMessage, 0, len(req.Messages))
		for _, msg := range req.Messages {
			chat.Messages = append(chat.Messages, restoredMessage(msg))
		}
		chat.UpdatedAt = chat.Messages[len(chat.Messages)-1].Timestamp
		if err := s.sessions.SaveSession(r.Context(), chat); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to back-fill messages")
			return
		}
	}

	writeJSON(w, http.StatusCreated, api.RestoreSessionResponse{Restored: true, SessionID: chat.ID})
}

func restoredMessage(msg api.Message) session.AgentMessage {
	restored := session.AgentMessage{
		ID:        msg.ID,
		Type:      session.MessageType(msg.Type),
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		AgentID:   msg.AgentID,
	}
	if restored.ID == "" {
		restored.ID = session.NewMessageID()
	}
	for _, tc := range msg.ToolCalls {
		restored.ToolCalls = append(restored.ToolCalls, session.ToolCall{
			ID:         tc.ID,
			Name:       tc.Name,
			Parameters: tc.Parameters,
			Status:     session.ToolCallStatus(tc.Status),
			Result:     tc.Result,
		})
	}
	return restored
}
