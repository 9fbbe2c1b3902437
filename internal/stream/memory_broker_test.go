package stream

import (
	"context"
	"strings"
	"testing"
)

func TestMemoryBrokerPublishSubscribe(t *testing.T) {
	mb := NewMemoryBroker()
	defer mb.Close()
	ctx := context.Background()

	var got []Response
	unsubscribe, err := mb.Subscribe(ctx, "s1", func(resp Response) {
		got = append(got, resp)
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	events := []Response{
		{SessionID: "s1", Type: EventStart, MessageID: "m1"},
		{SessionID: "s1", Type: EventToken, Content: "Hel"},
		{SessionID: "s1", Type: EventToken, Content: "lo"},
		{SessionID: "s1", Type: EventEnd},
	}
	for _, ev := range events {
		if err := mb.Publish(ctx, "s1", ev); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	if len(got) != len(events) {
		t.Fatalf("expected %d events, got %d", len(events), len(got))
	}
	for i, ev := range events {
		if got[i].Type != ev.Type || got[i].Content != ev.Content {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], ev)
		}
	}
}

func TestMemoryBrokerZeroSubscribers(t *testing.T) {
	mb := NewMemoryBroker()
	defer mb.Close()

	// At-most-once: publishing into the void succeeds and drops the event.
	if err := mb.Publish(context.Background(), "s1", Response{SessionID: "s1", Type: EventToken}); err != nil {
		t.Fatalf("Publish() with no subscribers error = %v", err)
	}
}

func TestMemoryBrokerSessionIsolation(t *testing.T) {
	mb := NewMemoryBroker()
	defer mb.Close()
	ctx := context.Background()

	var s1, s2 int
	u1, err := mb.Subscribe(ctx, "s1", func(Response) { s1++ })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer u1()
	u2, err := mb.Subscribe(ctx, "s2", func(Response) { s2++ })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer u2()

	if err := mb.Publish(ctx, "s1", Response{SessionID: "s1", Type: EventToken}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if s1 != 1 || s2 != 0 {
		t.Fatalf("expected per-session delivery, got s1=%d s2=%d", s1, s2)
	}
}

func TestMemoryBrokerUnsubscribe(t *testing.T) {
	mb := NewMemoryBroker()
	defer mb.Close()
	ctx := context.Background()

	count := 0
	unsubscribe, err := mb.Subscribe(ctx, "s1", func(Response) { count++ })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := mb.Publish(ctx, "s1", Response{Type: EventToken}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	unsubscribe()
	if err := mb.Publish(ctx, "s1", Response{Type: EventToken}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestCancelPublishesTerminalError(t *testing.T) {
	mb := NewMemoryBroker()
	defer mb.Close()
	ctx := context.Background()

	var got Response
	unsubscribe, err := mb.Subscribe(ctx, "s1", func(resp Response) { got = resp })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer unsubscribe()

	if err := Cancel(ctx, mb, "s1", "user closed tab"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if got.Type != EventError {
		t.Fatalf("expected terminal error event, got %+v", got)
	}
	if !got.Terminal() {
		t.Fatal("cancellation event must be terminal")
	}
	if !strings.Contains(got.Error, "user closed tab") {
		t.Fatalf("expected reason in error, got %q", got.Error)
	}
}
