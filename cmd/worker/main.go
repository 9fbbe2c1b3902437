// The worker consumes generation jobs from the shared queue without serving
// HTTP. Run it alongside one or more gateways to add generation capacity; it
// requires both NATS and Redis since it has no request of its own to answer
// and must reach the shared session state and streaming channels.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/praxishq/agent-gateway/internal/agent"
	"github.com/praxishq/agent-gateway/internal/config"
	"github.com/praxishq/agent-gateway/internal/eventbus"
	"github.com/praxishq/agent-gateway/internal/events"
	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/store"
	"github.com/praxishq/agent-gateway/internal/stream"
)

type Worker struct {
	sessions *session.Manager
	broker   stream.Broker
	bus      *eventbus.DistributedBus
	runner   *agent.Runner
}

func NewWorker(cfg *config.Config) (*Worker, error) {
	redisClient, err := store.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	bus, err := eventbus.NewDistributedBus(cfg.NATSURL)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	sessions := session.NewManager(session.NewRedisStore(redisClient, cfg.SessionTTL))
	broker := stream.NewRedisBroker(redisClient)

	providers := agent.NewRegistry()
	if err := providers.Register("echo", agent.NewEchoProvider()); err != nil {
		bus.Close()
		redisClient.Close()
		return nil, err
	}

	return &Worker{
		sessions: sessions,
		broker:   broker,
		bus:      bus,
		runner:   agent.NewRunner(sessions, broker, providers),
	}, nil
}

func (w *Worker) Start() error {
	return w.bus.Subscribe(events.GenerateRequestEventName, events.GenerateQueueName, w.runner.HandleGenerate)
}

func (w *Worker) Close() {
	w.bus.Close()
	w.broker.Close()
	if err := w.sessions.Close(); err != nil {
		log.Printf("Error closing session store: %v", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RedisURL == "" || cfg.NATSURL == "" {
		log.Fatalf("Worker requires REDIS_URL and NATS_URL to be set")
	}

	worker, err := NewWorker(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize worker: %v", err)
	}

	if err := worker.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Generation worker started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down generation worker...")
	worker.Close()
	log.Println("Generation worker stopped")
}
