package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/store"
)

// RedisBroker carries streaming responses over Redis pub/sub channels named
// agent_stream:{sessionId}, giving cross-process delivery between the
// request that accepted a message and the request serving the SSE stream.
type RedisBroker struct {
	redis *store.RedisClient

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	cancel context.CancelFunc
}

func NewRedisBroker(client *store.RedisClient) *RedisBroker {
	return &RedisBroker{
		redis: client,
		subs:  make(map[*subscription]struct{}),
	}
}

func (rb *RedisBroker) Publish(ctx context.Context, sessionID string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal streaming response: %w", err)
	}

	// No subscriber at publish time means Redis drops the payload; that is
	// the intended at-most-once contract.
	if err := rb.redis.Publish(ctx, StreamChannel(sessionID), data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", StreamChannel(sessionID), err)
	}

	return nil
}

func (rb *RedisBroker) Subscribe(ctx context.Context, sessionID string, fn func(Response)) (func(), error) {
	pubsub := rb.redis.Subscribe(ctx, StreamChannel(sessionID))

	// Force the subscription onto the wire before returning so events
	// published right after Subscribe are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", StreamChannel(sessionID), err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel}

	rb.mu.Lock()
	rb.subs[sub] = struct{}{}
	rb.mu.Unlock()

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-pumpCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var resp Response
				if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
					log.Printf("[%s] Dropping malformed streaming payload: %v", sessionID, err)
					continue
				}
				fn(resp)
			}
		}
	}()

	return func() {
		cancel()
		rb.mu.Lock()
		delete(rb.subs, sub)
		rb.mu.Unlock()
	}, nil
}

func (rb *RedisBroker) Mode() string {
	return session.ModeDurable
}

func (rb *RedisBroker) Close() error {
	rb.mu.Lock()
	for sub := range rb.subs {
		sub.cancel()
	}
	rb.subs = make(map[*subscription]struct{})
	rb.mu.Unlock()
	return nil
}
