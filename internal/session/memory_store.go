package session

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// janitorInterval is how often the eviction loop sweeps expired sessions.
// Lazy expiry on read means the sweep only bounds memory, not correctness.
const janitorInterval = time.Minute

// MemoryStore is the in-process fallback backend used when Redis is
// unreachable. It reimplements the sliding-TTL semantics with a deadline map
// plus a janitor goroutine so callers observe the same behavior as the
// durable backend.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*ChatSession
	deadlines map[string]time.Time
	byUser    map[string]map[string]struct{}
	ttl       time.Duration
	nowFunc   func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	ms := &MemoryStore{
		sessions:  make(map[string]*ChatSession),
		deadlines: make(map[string]time.Time),
		byUser:    make(map[string]map[string]struct{}),
		ttl:       ttl,
		nowFunc:   time.Now,
		done:      make(chan struct{}),
	}
	go ms.janitor()
	return ms
}

// SetNowFunc overrides the clock, for expiry tests.
func (ms *MemoryStore) SetNowFunc(fn func() time.Time) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.nowFunc = fn
}

func (ms *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.done:
			return
		case <-ticker.C:
			ms.evictExpired()
		}
	}
}

func (ms *MemoryStore) evictExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.nowFunc()
	for id, deadline := range ms.deadlines {
		if now.After(deadline) {
			ms.removeLocked(id)
			log.Printf("[%s] Session expired, evicted from in-process store", id)
		}
	}
}

// expiredLocked reports whether the session is past its deadline. Callers
// hold at least the read lock.
func (ms *MemoryStore) expiredLocked(id string) bool {
	deadline, ok := ms.deadlines[id]
	return ok && ms.nowFunc().After(deadline)
}

func (ms *MemoryStore) removeLocked(id string) {
	if s, ok := ms.sessions[id]; ok {
		if ids, ok := ms.byUser[s.UserID]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(ms.byUser, s.UserID)
			}
		}
	}
	delete(ms.sessions, id)
	delete(ms.deadlines, id)
}

func (ms *MemoryStore) Create(ctx context.Context, s *ChatSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.sessions[s.ID]; ok && !ms.expiredLocked(s.ID) {
		return ErrSessionExists
	}

	ms.putLocked(s)
	return nil
}

func (ms *MemoryStore) putLocked(s *ChatSession) {
	clone := s.Clone()
	ms.sessions[clone.ID] = clone
	ms.deadlines[clone.ID] = ms.nowFunc().Add(ms.ttl)
	ids, ok := ms.byUser[clone.UserID]
	if !ok {
		ids = make(map[string]struct{})
		ms.byUser[clone.UserID] = ids
	}
	ids[clone.ID] = struct{}{}
}

func (ms *MemoryStore) Get(ctx context.Context, id string) (*ChatSession, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.expiredLocked(id) {
		ms.removeLocked(id)
	}

	s, ok := ms.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Sliding window, same as the durable backend's key expiry refresh.
	ms.deadlines[id] = ms.nowFunc().Add(ms.ttl)

	return s.Clone(), nil
}

func (ms *MemoryStore) Save(ctx context.Context, s *ChatSession) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.putLocked(s)
	return nil
}

func (ms *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*ChatSession, error) {
	if limit <= 0 {
		return nil, nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	sessions := make([]*ChatSession, 0, limit)
	for id := range ms.byUser[userID] {
		if ms.expiredLocked(id) {
			ms.removeLocked(id)
			continue
		}
		if s, ok := ms.sessions[id]; ok {
			sessions = append(sessions, s.Clone())
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	if len(sessions) > limit {
		sessions = sessions[:limit]
	}

	return sessions, nil
}

func (ms *MemoryStore) Delete(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.removeLocked(id)
	return nil
}

func (ms *MemoryStore) ExtendTTL(ctx context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.expiredLocked(id) {
		ms.removeLocked(id)
	}

	if _, ok := ms.sessions[id]; !ok {
		return ErrSessionNotFound
	}

	ms.deadlines[id] = ms.nowFunc().Add(ms.ttl)
	return nil
}

func (ms *MemoryStore) Mode() string {
	return ModeInProcess
}

func (ms *MemoryStore) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
	})
	return nil
}
