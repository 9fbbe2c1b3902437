// Package api holds the gateway's wire types and an HTTP client for them.
package api

import "time"

// CreateSessionRequest starts a new chat session for a user/agent pair.
type CreateSessionRequest struct {
	UserID   string         `json:"userId"`
	AgentID  string         `json:"agentId"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PostMessageRequest appends a user message and triggers generation.
type PostMessageRequest struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// PostMessageResponse acknowledges receipt. Generation outcome is only
// visible on the stream or in the finalized session.
type PostMessageResponse struct {
	Accepted  bool   `json:"accepted"`
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	StreamURL string `json:"streamUrl"`
}

// Message mirrors a persisted session message on the wire.
type Message struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	AgentID   string     `json:"agentId,omitempty"`
	Streaming bool       `json:"streaming,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

type ToolCall struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     string         `json:"status"`
	Result     string         `json:"result,omitempty"`
}

// Session is the wire shape of a chat session.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	AgentID   string         `json:"agentId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Messages  []Message      `json:"messages"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RestoreSessionRequest recreates a historical session with back-filled
// messages under its original id.
type RestoreSessionRequest struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	AgentID   string    `json:"agentId"`
	Messages  []Message `json:"messages,omitempty"`
}

type RestoreSessionResponse struct {
	Restored  bool   `json:"restored"`
	SessionID string `json:"sessionId"`
}

// CancelStreamRequest carries the optional cancellation reason.
type CancelStreamRequest struct {
	Reason string `json:"reason,omitempty"`
}

// StreamEvent is one SSE payload: the streaming response variants plus the
// wire-only connected and heartbeat markers.
type StreamEvent struct {
	SessionID string    `json:"sessionId"`
	MessageID string    `json:"messageId,omitempty"`
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	ToolCall  *ToolCall `json:"toolCall,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthStatus reports service health and the selected backend modes.
type HealthStatus struct {
	Service      string    `json:"service"`
	Status       string    `json:"status"`
	SessionStore string    `json:"sessionStore"`
	Broker       string    `json:"broker"`
	Uptime       string    `json:"uptime"`
	Timestamp    time.Time `json:"timestamp"`
}

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}
