// Package stream decouples the production of incremental agent responses
// from their delivery to clients: a per-session publish/subscribe broker plus
// the SSE writer that turns subscriptions into a byte stream.
package stream

import "github.com/praxishq/agent-gateway/internal/session"

type EventType string

const (
	EventStart      EventType = "start"
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventEnd        EventType = "end"
	EventError      EventType = "error"

	// Wire-only events. These never enter the broker's business state
	// machine; consumers tracking message content must ignore them.
	EventConnected EventType = "connected"
	EventHeartbeat EventType = "heartbeat"
)

// Response is one incremental unit of an agent's reply. It is transported,
// never persisted: only its side effects on the open AgentMessage survive.
type Response struct {
	SessionID string            `json:"sessionId"`
	MessageID string            `json:"messageId,omitempty"`
	Type      EventType         `json:"type"`
	Content   string            `json:"content,omitempty"`
	ToolCall  *session.ToolCall `json:"toolCall,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (r Response) Terminal() bool {
	return r.Type == EventEnd || r.Type == EventError
}
