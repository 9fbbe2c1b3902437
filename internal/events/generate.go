// Package events defines the typed jobs carried by the event bus.
package events

import "time"

const (
	GenerateRequestEventName = "chat-generate"

	// GenerateQueueName is the queue group shared by all generation
	// consumers so each job is handled exactly once per deployment.
	GenerateQueueName = "gateway-generate"
)

// GenerateRequestEvent asks a consumer to drive one agent turn for a
// session. It is emitted when a user message is accepted and survives the
// request/response boundary: any process in the queue group may pick it up.
type GenerateRequestEvent struct {
	SessionID     string    `json:"session_id"`
	AgentID       string    `json:"agent_id"`
	UserMessageID string    `json:"user_message_id"`
	UserMessage   string    `json:"user_message"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e GenerateRequestEvent) Subject() string { return GenerateRequestEventName }
