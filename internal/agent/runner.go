package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/praxishq/agent-gateway/internal/eventbus"
	"github.com/praxishq/agent-gateway/internal/events"
	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/stream"
)

// Runner drives one provider event sequence per generation job: every
// response is published to the broker for live consumers, and its side
// effects are mirrored into the open agent message so the session converges
// to the same content a subscriber saw. Provider failures are converted into
// a terminal error event and a finalized partial message, never a crashed
// task.
type Runner struct {
	sessions  *session.Manager
	broker    stream.Broker
	providers *Registry
}

func NewRunner(sessions *session.Manager, broker stream.Broker, providers *Registry) *Runner {
	return &Runner{
		sessions:  sessions,
		broker:    broker,
		providers: providers,
	}
}

// HandleGenerate is the event-bus entry point for generation jobs.
func (r *Runner) HandleGenerate(ctx context.Context, data []byte) {
	ev, ok := eventbus.UnmarshalEvent[events.GenerateRequestEvent](data, events.GenerateRequestEventName)
	if !ok {
		return
	}
	r.Run(ctx, ev)
}

// Run executes one agent turn to completion.
func (r *Runner) Run(ctx context.Context, ev events.GenerateRequestEvent) {
	provider, err := r.providers.Get(ev.AgentID)
	if err != nil {
		r.publishError(ctx, ev.SessionID, "", fmt.Sprintf("provider unavailable: %v", err))
		return
	}

	chat, err := r.sessions.GetSession(ctx, ev.SessionID)
	if err != nil {
		r.publishError(ctx, ev.SessionID, "", fmt.Sprintf("session unavailable: %v", err))
		return
	}

	// Tool calls made during this turn authenticate with the session's own
	// bearer token when one was stored at creation.
	ctx = session.WithAuthToken(ctx, chat.AuthToken())

	ch, err := provider.Stream(ctx, ev.UserMessage, chat)
	if err != nil {
		r.publishError(ctx, ev.SessionID, "", fmt.Sprintf("provider failed to start: %v", err))
		return
	}

	log.Printf("[%s] Generation started with agent %s", ev.SessionID, ev.AgentID)

	var (
		messageID string
		content   strings.Builder
		finished  bool
	)

	for resp := range ch {
		resp.SessionID = ev.SessionID

		if err := r.broker.Publish(ctx, ev.SessionID, resp); err != nil {
			log.Printf("[%s] Failed to publish %s event: %v", ev.SessionID, resp.Type, err)
		}

		switch resp.Type {
		case stream.EventStart:
			messageID = r.openMessage(ctx, ev, resp.MessageID)

		case stream.EventToken:
			if messageID == "" {
				messageID = r.openMessage(ctx, ev, "")
			}
			content.WriteString(resp.Content)
			c := content.String()
			r.updateMessage(ctx, ev.SessionID, messageID, session.MessageUpdate{Content: &c})

		case stream.EventToolCall:
			if resp.ToolCall == nil {
				continue
			}
			if messageID == "" {
				messageID = r.openMessage(ctx, ev, "")
			}
			tc := *resp.ToolCall
			if tc.Status == "" {
				tc.Status = session.ToolCallPending
			}
			r.updateMessage(ctx, ev.SessionID, messageID, session.MessageUpdate{ToolCalls: []session.ToolCall{tc}})

		case stream.EventToolResult:
			if resp.ToolCall == nil || messageID == "" {
				continue
			}
			tc := *resp.ToolCall
			if tc.Status == "" {
				tc.Status = session.ToolCallCompleted
			}
			r.updateMessage(ctx, ev.SessionID, messageID, session.MessageUpdate{ToolCalls: []session.ToolCall{tc}})

		case stream.EventEnd:
			r.finalizeMessage(ctx, ev.SessionID, messageID, content.String())
			finished = true
			log.Printf("[%s] Generation completed, message %s", ev.SessionID, messageID)

		case stream.EventError:
			r.finalizeMessage(ctx, ev.SessionID, messageID, errorContent(content.String(), resp.Error))
			finished = true
			log.Printf("[%s] Generation failed: %s", ev.SessionID, resp.Error)
		}
	}

	// A channel that closes without a terminal event is a provider fault:
	// close the loop for subscribers and persist the partial content.
	if !finished {
		reason := "provider stream ended unexpectedly"
		r.publishError(ctx, ev.SessionID, messageID, reason)
		r.finalizeMessage(ctx, ev.SessionID, messageID, errorContent(content.String(), reason))
	}
}

// openMessage creates the in-flight agent message. The provider assigns the
// message id on start; a fresh one is minted if it did not.
func (r *Runner) openMessage(ctx context.Context, ev events.GenerateRequestEvent, messageID string) string {
	if messageID == "" {
		messageID = session.NewMessageID()
	}

	msg := session.AgentMessage{
		ID:        messageID,
		Type:      session.MessageTypeAgent,
		AgentID:   ev.AgentID,
		Timestamp: time.Now().UTC(),
		Streaming: true,
	}
	if err := r.sessions.AddMessage(ctx, ev.SessionID, msg); err != nil {
		log.Printf("[%s] Failed to open agent message: %v", ev.SessionID, err)
	}

	return messageID
}

func (r *Runner) updateMessage(ctx context.Context, sessionID, messageID string, update session.MessageUpdate) {
	if err := r.sessions.UpdateMessage(ctx, sessionID, messageID, update); err != nil {
		log.Printf("[%s] Failed to update message %s: %v", sessionID, messageID, err)
	}
}

func (r *Runner) finalizeMessage(ctx context.Context, sessionID, messageID, content string) {
	if messageID == "" {
		return
	}
	streaming := false
	r.updateMessage(ctx, sessionID, messageID, session.MessageUpdate{
		Content:   &content,
		Streaming: &streaming,
	})
}

func (r *Runner) publishError(ctx context.Context, sessionID, messageID, errMsg string) {
	resp := stream.Response{
		SessionID: sessionID,
		MessageID: messageID,
		Type:      stream.EventError,
		Error:     errMsg,
	}
	if err := r.broker.Publish(ctx, sessionID, resp); err != nil {
		log.Printf("[%s] Failed to publish error event: %v", sessionID, err)
	}
}

func errorContent(partial, errMsg string) string {
	if partial == "" {
		return fmt.Sprintf("[generation failed: %s]", errMsg)
	}
	return fmt.Sprintf("%s\n[generation failed: %s]", partial, errMsg)
}
