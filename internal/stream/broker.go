package stream

import (
	"context"
	"fmt"
	"log"
)

// Broker fans out streaming responses per session. Delivery is at-most-once:
// events published with no subscriber present are dropped, and there is no
// replay for late subscribers.
type Broker interface {
	// Publish is fire-and-forget onto the session's channel.
	Publish(ctx context.Context, sessionID string, resp Response) error

	// Subscribe registers a listener invoked once per event for the
	// session and returns its disposer. The callback runs on the broker's
	// delivery goroutine and must not block indefinitely.
	Subscribe(ctx context.Context, sessionID string, fn func(Response)) (func(), error)

	Mode() string
	Close() error
}

// StreamChannel names the pub/sub channel carrying a session's responses.
func StreamChannel(sessionID string) string {
	return fmt.Sprintf("agent_stream:%s", sessionID)
}

// Cancel publishes a synthetic terminal error so any open stream for the
// session forwards it and closes. It is cooperative: a provider still
// generating is not stopped, its later events are simply ignored by closed
// streams.
func Cancel(ctx context.Context, b Broker, sessionID, reason string) error {
	if reason == "" {
		reason = "cancelled by client"
	}
	resp := Response{
		SessionID: sessionID,
		Type:      EventError,
		Error:     fmt.Sprintf("stream cancelled: %s", reason),
	}
	if err := b.Publish(ctx, sessionID, resp); err != nil {
		return fmt.Errorf("failed to publish cancellation: %w", err)
	}
	log.Printf("[%s] Stream cancellation published", sessionID)
	return nil
}
