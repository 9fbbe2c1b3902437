package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DistributedBus routes events through NATS JetStream. Each subject gets a
// work-queue stream so a generation job is processed once even when several
// gateway or worker processes share the queue group.
type DistributedBus struct {
	nats          *nats.Conn
	jetStream     nats.JetStreamContext
	subscriptions []*nats.Subscription

	mu             sync.Mutex
	createdStreams map[string]bool
}

func NewDistributedBus(natsURL string) (*DistributedBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %v", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	log.Printf("Connected to NATS at %s", natsURL)

	return &DistributedBus{
		nats:           nc,
		jetStream:      js,
		createdStreams: make(map[string]bool),
	}, nil
}

func (db *DistributedBus) ensureStreamForSubject(subject string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.createdStreams[subject] {
		return nil
	}

	if _, err := db.jetStream.StreamInfo(subject); err != nil {
		streamConfig := &nats.StreamConfig{
			Name:       subject,
			Subjects:   []string{subject},
			Retention:  nats.WorkQueuePolicy,
			Storage:    nats.FileStorage,
			Duplicates: 2 * time.Minute,
			MaxAge:     24 * time.Hour,
		}

		if _, err := db.jetStream.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", subject, err)
		}
		log.Printf("Created JetStream stream: %s", subject)
	}

	db.createdStreams[subject] = true
	return nil
}

func (db *DistributedBus) Emit(event Event) error {
	subject := event.Subject()

	if err := db.ensureStreamForSubject(subject); err != nil {
		return fmt.Errorf("failed to ensure stream for %s: %w", subject, err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := db.jetStream.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}

	return nil
}

func (db *DistributedBus) Subscribe(subject, queue string, handler Handler) error {
	if err := db.ensureStreamForSubject(subject); err != nil {
		return err
	}

	consumerName := fmt.Sprintf("%s-consumer", queue)

	sub, err := db.jetStream.QueueSubscribe(subject, queue,
		func(msg *nats.Msg) {
			handler(context.Background(), msg.Data)
			msg.Ack()
		},
		nats.Durable(consumerName),
		nats.ManualAck(),
		nats.AckWait(30*time.Second),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	db.subscriptions = append(db.subscriptions, sub)

	log.Printf("EventBus: Subscribed to %s with queue %s", subject, queue)
	return nil
}

func (db *DistributedBus) Close() error {
	log.Println("Closing EventBus connections...")

	for _, sub := range db.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("Error unsubscribing: %v", err)
		}
	}

	if db.nats != nil {
		db.nats.Close()
	}

	return nil
}

func (db *DistributedBus) IsConnected() bool {
	return db.nats != nil && db.nats.IsConnected()
}
