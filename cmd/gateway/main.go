package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praxishq/agent-gateway/internal/agent"
	"github.com/praxishq/agent-gateway/internal/config"
	"github.com/praxishq/agent-gateway/internal/eventbus"
	"github.com/praxishq/agent-gateway/internal/events"
	"github.com/praxishq/agent-gateway/internal/handlers"
	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/store"
	"github.com/praxishq/agent-gateway/internal/stream"
	"github.com/praxishq/agent-gateway/internal/toolbridge"
)

// Gateway wires the long-lived services: the session manager, the streaming
// broker, the event bus and the tool bridge are constructed once here and
// injected everywhere, never reached through globals.
type Gateway struct {
	cfg       *config.Config
	sessions  *session.Manager
	broker    stream.Broker
	bus       eventbus.Bus
	providers *agent.Registry
	bridge    *toolbridge.Bridge
	runner    *agent.Runner
}

func NewGateway(cfg *config.Config) (*Gateway, error) {
	// Backend selection happens once: a reachable Redis serves both the
	// session store and the cross-process broker, otherwise both degrade
	// to their in-process implementations together.
	var (
		sessionStore session.Store
		broker       stream.Broker
	)
	if cfg.RedisURL != "" {
		if client, err := store.NewRedisClient(cfg.RedisURL); err == nil {
			sessionStore = session.NewRedisStore(client, cfg.SessionTTL)
			broker = stream.NewRedisBroker(client)
		} else {
			log.Printf("Redis unreachable, downgrading to in-process session store and broker: %v", err)
		}
	} else {
		log.Println("REDIS_URL not set, using in-process session store and broker")
	}
	if sessionStore == nil {
		sessionStore = session.NewMemoryStore(cfg.SessionTTL)
		broker = stream.NewMemoryBroker()
	}

	sessions := session.NewManager(sessionStore)
	bus := eventbus.Resolve(cfg.NATSURL)

	providers := agent.NewRegistry()
	if err := providers.Register("echo", agent.NewEchoProvider()); err != nil {
		return nil, err
	}

	var bridge *toolbridge.Bridge
	if cfg.ToolServerURL != "" {
		client := toolbridge.NewClient(cfg.ToolServerURL, cfg.ToolAuthToken)
		bridge = toolbridge.NewBridge(client, providers)
	} else {
		log.Println("TOOL_SERVER_URL not set, tool bridge disabled")
	}

	return &Gateway{
		cfg:       cfg,
		sessions:  sessions,
		broker:    broker,
		bus:       bus,
		providers: providers,
		bridge:    bridge,
		runner:    agent.NewRunner(sessions, broker, providers),
	}, nil
}

// Start subscribes the generation consumer and initializes the tool bridge.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.bus.Subscribe(events.GenerateRequestEventName, events.GenerateQueueName, g.runner.HandleGenerate); err != nil {
		return err
	}

	if g.bridge != nil {
		if err := g.bridge.Initialize(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (g *Gateway) Close() {
	g.bus.Close()
	g.broker.Close()
	if err := g.sessions.Close(); err != nil {
		log.Printf("Error closing session store: %v", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	gateway, err := NewGateway(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize gateway: %v", err)
	}

	if err := gateway.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}

	server := handlers.NewServer(cfg, gateway.sessions, gateway.broker, gateway.bus, gateway.providers)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Agent Gateway starting on port %s (sessions: %s, broker: %s)",
			cfg.Port, gateway.sessions.Mode(), gateway.broker.Mode())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down Agent Gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	gateway.Close()
	log.Println("Agent Gateway stopped")
}
