// Package session owns chat session state: the data model, the dual-backend
// persistence layer, and the manager that serializes mutations.
package session

import "time"

type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeAgent  MessageType = "agent"
	MessageTypeSystem MessageType = "system"
)

type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallError     ToolCallStatus = "error"
)

// ToolCall records one tool invocation inside an agent message. It is
// appended when the provider announces the call and updated in place by ID
// when the result arrives.
type ToolCall struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     ToolCallStatus `json:"status"`
	Result     string         `json:"result,omitempty"`
}

// AgentMessage is one turn in a chat session. Content is mutable while
// Streaming is true; once the stream finalizes the message is never touched
// again.
type AgentMessage struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	AgentID   string      `json:"agentId,omitempty"`
	Streaming bool        `json:"streaming,omitempty"`
	ToolCalls []ToolCall  `json:"toolCalls,omitempty"`
}

// ChatSession is a persisted multi-turn conversation. Metadata carries opaque
// per-session values such as the bearer token forwarded to tool calls.
type ChatSession struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	AgentID   string         `json:"agentId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Messages  []AgentMessage `json:"messages"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MessageUpdate is a partial update merged into an existing message. Nil
// fields are left untouched; ToolCalls are upserted by ID.
type MessageUpdate struct {
	Content   *string
	Streaming *bool
	ToolCalls []ToolCall
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing store-held state.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Messages = make([]AgentMessage, len(s.Messages))
	for i, msg := range s.Messages {
		clone.Messages[i] = msg
		if len(msg.ToolCalls) > 0 {
			clone.Messages[i].ToolCalls = append([]ToolCall(nil), msg.ToolCalls...)
		}
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// AuthToken returns the bearer token stored in session metadata, if any.
func (s *ChatSession) AuthToken() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	token, _ := s.Metadata["authToken"].(string)
	return token
}
