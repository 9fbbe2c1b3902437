package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreContract exercises the behavior both backends must share. The
// suite is written against the Store interface only, so it runs unmodified
// against the in-process store and, when REDIS_URL is set, the durable one.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		chat := testSession("u1", "a1")
		if err := s.Create(ctx, chat); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		loaded, err := s.Get(ctx, chat.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if loaded.ID != chat.ID || loaded.UserID != "u1" || loaded.AgentID != "a1" {
			t.Fatalf("Get() = %+v, want id/user/agent of created session", loaded)
		}
		if len(loaded.Messages) != 0 {
			t.Fatalf("expected empty message sequence, got %d", len(loaded.Messages))
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		chat := testSession("u1", "a1")
		if err := s.Create(ctx, chat); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		err := s.Create(ctx, chat)
		if !errors.Is(err, ErrSessionExists) {
			t.Fatalf("Create() duplicate error = %v, want ErrSessionExists", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		_, err := s.Get(context.Background(), "sess_missing")
		if !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Get() error = %v, want ErrSessionNotFound", err)
		}
	})

	t.Run("SaveRoundTrip", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		chat := testSession("u1", "a1")
		if err := s.Create(ctx, chat); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		ts := time.Now().UTC().Truncate(time.Millisecond)
		chat.Messages = append(chat.Messages, AgentMessage{
			ID:        "m1",
			Type:      MessageTypeUser,
			Content:   "Hi",
			Timestamp: ts,
			ToolCalls: []ToolCall{{ID: "c1", Name: "search", Status: ToolCallCompleted, Result: "ok"}},
		})
		chat.UpdatedAt = time.Now().UTC()
		if err := s.Save(ctx, chat); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		loaded, err := s.Get(ctx, chat.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(loaded.Messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(loaded.Messages))
		}
		msg := loaded.Messages[0]
		if msg.Content != "Hi" || !msg.Timestamp.Equal(ts) {
			t.Fatalf("message round-trip mismatch: %+v", msg)
		}
		if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Result != "ok" {
			t.Fatalf("tool calls not preserved: %+v", msg.ToolCalls)
		}
	})

	t.Run("ListByUserOrderAndLimit", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		base := time.Now().UTC()
		var ids []string
		for i := 0; i < 3; i++ {
			chat := testSession("u1", "a1")
			chat.UpdatedAt = base.Add(time.Duration(i) * time.Second)
			if err := s.Create(ctx, chat); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if err := s.Save(ctx, chat); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			ids = append(ids, chat.ID)
		}
		other := testSession("u2", "a1")
		if err := s.Create(ctx, other); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		sessions, err := s.ListByUser(ctx, "u1", 2)
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(sessions))
		}
		if sessions[0].ID != ids[2] || sessions[1].ID != ids[1] {
			t.Fatalf("expected most-recently-updated first, got %s, %s", sessions[0].ID, sessions[1].ID)
		}
		for _, chat := range sessions {
			if chat.UserID != "u1" {
				t.Fatalf("listing leaked session of user %s", chat.UserID)
			}
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		chat := testSession("u1", "a1")
		if err := s.Create(ctx, chat); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := s.Delete(ctx, chat.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Delete(ctx, chat.ID); err != nil {
			t.Fatalf("Delete() second call error = %v, want nil", err)
		}
		if _, err := s.Get(ctx, chat.ID); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Get() after delete error = %v, want ErrSessionNotFound", err)
		}

		sessions, err := s.ListByUser(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("ListByUser() error = %v", err)
		}
		if len(sessions) != 0 {
			t.Fatalf("expected deleted session gone from listing, got %d", len(sessions))
		}
	})

	t.Run("ExtendTTL", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		chat := testSession("u1", "a1")
		if err := s.Create(ctx, chat); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := s.ExtendTTL(ctx, chat.ID); err != nil {
			t.Fatalf("ExtendTTL() error = %v", err)
		}
		if _, err := s.Get(ctx, chat.ID); err != nil {
			t.Fatalf("Get() after extend error = %v", err)
		}
		if err := s.ExtendTTL(ctx, "sess_missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("ExtendTTL() missing error = %v, want ErrSessionNotFound", err)
		}
	})
}

func testSession(userID, agentID string) *ChatSession {
	now := time.Now().UTC()
	return &ChatSession{
		ID:        NewSessionID(),
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []AgentMessage{},
	}
}
