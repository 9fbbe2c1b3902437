package stream

import (
	"context"
	"sync"

	"github.com/praxishq/agent-gateway/internal/session"
)

// MemoryBroker dispatches events directly to listeners registered in this
// process. It is the fallback when Redis is unavailable; cross-process
// delivery degrades away but single-process behavior is identical.
type MemoryBroker struct {
	mu        sync.RWMutex
	listeners map[string]map[int]func(Response)
	nextID    int
	closed    bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		listeners: make(map[string]map[int]func(Response)),
	}
}

func (mb *MemoryBroker) Publish(ctx context.Context, sessionID string, resp Response) error {
	mb.mu.RLock()
	fns := make([]func(Response), 0, len(mb.listeners[sessionID]))
	for _, fn := range mb.listeners[sessionID] {
		fns = append(fns, fn)
	}
	mb.mu.RUnlock()

	// Zero listeners is fine: at-most-once delivery drops the event.
	for _, fn := range fns {
		fn(resp)
	}
	return nil
}

func (mb *MemoryBroker) Subscribe(ctx context.Context, sessionID string, fn func(Response)) (func(), error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	set, ok := mb.listeners[sessionID]
	if !ok {
		set = make(map[int]func(Response))
		mb.listeners[sessionID] = set
	}
	id := mb.nextID
	mb.nextID++
	set[id] = fn

	return func() {
		mb.mu.Lock()
		defer mb.mu.Unlock()
		if set, ok := mb.listeners[sessionID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(mb.listeners, sessionID)
			}
		}
	}, nil
}

func (mb *MemoryBroker) Mode() string {
	return session.ModeInProcess
}

func (mb *MemoryBroker) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.listeners = make(map[string]map[int]func(Response))
	mb.closed = true
	return nil
}
