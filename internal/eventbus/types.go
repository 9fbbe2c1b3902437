// Package eventbus dispatches generation jobs either across processes via
// NATS JetStream or within the process when NATS is unavailable.
package eventbus

import (
	"context"
	"encoding/json"
	"log"
)

type Event interface {
	Subject() string
}

// Handler receives the raw payload of one event. Decoding is left to the
// subscriber via UnmarshalEvent so queue handlers stay uniform.
type Handler func(ctx context.Context, data []byte)

type Bus interface {
	Emit(event Event) error
	// Subscribe joins the queue group for a subject; each event is
	// delivered to one member of the group.
	Subscribe(subject, queue string, handler Handler) error
	Close() error
}

// UnmarshalEvent decodes an event payload, logging and reporting failure
// instead of propagating it into queue handlers.
func UnmarshalEvent[T any](data []byte, eventName string) (T, bool) {
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("Failed to unmarshal %s event: %v", eventName, err)
		return event, false
	}
	return event, true
}
