package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Manager owns the ChatSession lifecycle. All read-modify-write operations on
// a session are serialized under a per-session lock; the backends themselves
// stay free of message-level logic so both exhibit identical behavior.
type Manager struct {
	store Store
	locks keyedMutex
}

func NewManager(s Store) *Manager {
	return &Manager{store: s}
}

// CreateSession allocates a fresh session for the user/agent pair and
// indexes it for listing.
func (m *Manager) CreateSession(ctx context.Context, userID, agentID string) (*ChatSession, error) {
	now := time.Now().UTC()
	s := &ChatSession{
		ID:        NewSessionID(),
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []AgentMessage{},
	}

	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s, nil
}

// CreateSessionWithID restores a session under a caller-supplied id. It
// fails with ErrSessionExists when the id is already present so callers can
// report restored:false.
func (m *Manager) CreateSessionWithID(ctx context.Context, id, userID, agentID string) (*ChatSession, error) {
	now := time.Now().UTC()
	s := &ChatSession{
		ID:        id,
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []AgentMessage{},
	}

	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

func (m *Manager) GetSession(ctx context.Context, id string) (*ChatSession, error) {
	return m.store.Get(ctx, id)
}

// SaveSession is an idempotent full overwrite.
func (m *Manager) SaveSession(ctx context.Context, s *ChatSession) error {
	return m.store.Save(ctx, s)
}

// AddMessage appends a message to the session and bumps UpdatedAt.
func (m *Manager) AddMessage(ctx context.Context, id string, msg AgentMessage) error {
	unlock := m.locks.lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now().UTC()

	return m.store.Save(ctx, s)
}

// UpdateMessage merges a partial update into the identified message. Other
// messages and session fields except UpdatedAt are untouched.
func (m *Manager) UpdateMessage(ctx context.Context, id, messageID string, update MessageUpdate) error {
	unlock := m.locks.lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	idx := -1
	for i := range s.Messages {
		if s.Messages[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrMessageNotFound
	}

	msg := &s.Messages[idx]
	if update.Content != nil {
		msg.Content = *update.Content
	}
	if update.Streaming != nil {
		msg.Streaming = *update.Streaming
	}
	for _, tc := range update.ToolCalls {
		mergeToolCall(msg, tc)
	}

	s.UpdatedAt = time.Now().UTC()

	return m.store.Save(ctx, s)
}

// mergeToolCall updates an existing tool call in place by id or appends a
// new one.
func mergeToolCall(msg *AgentMessage, tc ToolCall) {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == tc.ID {
			existing := &msg.ToolCalls[i]
			if tc.Name != "" {
				existing.Name = tc.Name
			}
			if tc.Parameters != nil {
				existing.Parameters = tc.Parameters
			}
			if tc.Status != "" {
				existing.Status = tc.Status
			}
			if tc.Result != "" {
				existing.Result = tc.Result
			}
			return
		}
	}
	msg.ToolCalls = append(msg.ToolCalls, tc)
}

// GetUserSessions lists the user's sessions, most recently updated first.
func (m *Manager) GetUserSessions(ctx context.Context, userID string, limit int) ([]*ChatSession, error) {
	return m.store.ListByUser(ctx, userID, limit)
}

// DeleteSession removes the session; deleting an absent session is a no-op.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	unlock := m.locks.lock(id)
	defer unlock()

	return m.store.Delete(ctx, id)
}

// ExtendSessionTTL refreshes the expiry window while a client is actively
// viewing the session.
func (m *Manager) ExtendSessionTTL(ctx context.Context, id string) error {
	return m.store.ExtendTTL(ctx, id)
}

func (m *Manager) Mode() string {
	return m.store.Mode()
}

func (m *Manager) Close() error {
	return m.store.Close()
}

// keyedMutex hands out one mutex per session id. Entries are reference
// counted and dropped when the last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (km *keyedMutex) lock(id string) (unlock func()) {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*sessionLock)
	}
	l, ok := km.locks[id]
	if !ok {
		l = &sessionLock{}
		km.locks[id] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		km.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(km.locks, id)
		}
		km.mu.Unlock()
	}
}
