package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// LocalBus dispatches events to subscribers in the same process. Queue
// semantics match the distributed bus: one delivery per queue group, so a
// subject with N distinct queues fans out N times but members of the same
// queue never both see an event.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string]map[string][]Handler
	rr       map[string]int
	wg       sync.WaitGroup
	closed   bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		handlers: make(map[string]map[string][]Handler),
		rr:       make(map[string]int),
	}
}

func (lb *LocalBus) Emit(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := event.Subject()

	lb.mu.Lock()
	if lb.closed {
		lb.mu.Unlock()
		return fmt.Errorf("event bus closed")
	}
	targets := make([]Handler, 0, len(lb.handlers[subject]))
	for queue, group := range lb.handlers[subject] {
		if len(group) == 0 {
			continue
		}
		key := subject + "/" + queue
		h := group[lb.rr[key]%len(group)]
		lb.rr[key]++
		targets = append(targets, h)
	}
	lb.wg.Add(len(targets))
	lb.mu.Unlock()

	if len(targets) == 0 {
		log.Printf("EventBus: No subscribers for %s, event dropped", subject)
		return nil
	}

	// Detach delivery from the caller, mirroring the async boundary the
	// distributed bus imposes.
	for _, h := range targets {
		go func(h Handler) {
			defer lb.wg.Done()
			h(context.Background(), data)
		}(h)
	}

	return nil
}

func (lb *LocalBus) Subscribe(subject, queue string, handler Handler) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.closed {
		return fmt.Errorf("event bus closed")
	}

	queues, ok := lb.handlers[subject]
	if !ok {
		queues = make(map[string][]Handler)
		lb.handlers[subject] = queues
	}
	queues[queue] = append(queues[queue], handler)

	log.Printf("EventBus: Subscribed to %s with queue %s (local)", subject, queue)
	return nil
}

// Close waits for in-flight deliveries to finish.
func (lb *LocalBus) Close() error {
	lb.mu.Lock()
	lb.closed = true
	lb.mu.Unlock()

	lb.wg.Wait()
	return nil
}
