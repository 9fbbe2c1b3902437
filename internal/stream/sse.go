package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// DefaultHeartbeatInterval keeps idle connections alive through proxies.
const DefaultHeartbeatInterval = 30 * time.Second

// subscriberBuffer absorbs bursts between broker delivery and the SSE write
// loop. A full buffer drops events rather than stalling the broker pump.
const subscriberBuffer = 256

// ServeSSE subscribes to the session's channel and writes events to w as a
// server-sent event stream: an immediate connected event, every broker event
// verbatim, and a heartbeat on each interval tick. It returns after
// forwarding a terminal event or when ctx is cancelled; either way the
// subscription is torn down.
func ServeSSE(ctx context.Context, w http.ResponseWriter, b Broker, sessionID string, heartbeat time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support streaming")
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events := make(chan Response, subscriberBuffer)
	unsubscribe, err := b.Subscribe(ctx, sessionID, func(resp Response) {
		select {
		case events <- resp:
		default:
			log.Printf("[%s] SSE subscriber buffer full, dropping %s event", sessionID, resp.Type)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer unsubscribe()

	if err := writeEvent(w, flusher, Response{SessionID: sessionID, Type: EventConnected}); err != nil {
		return err
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] SSE client disconnected", sessionID)
			return nil
		case <-ticker.C:
			if err := writeEvent(w, flusher, Response{SessionID: sessionID, Type: EventHeartbeat}); err != nil {
				return err
			}
		case resp := <-events:
			if err := writeEvent(w, flusher, resp); err != nil {
				return err
			}
			if resp.Terminal() {
				log.Printf("[%s] SSE stream closed on %s event", sessionID, resp.Type)
				return nil
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write SSE event: %w", err)
	}
	flusher.Flush()
	return nil
}
