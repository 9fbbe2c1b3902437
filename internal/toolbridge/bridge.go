package toolbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/praxishq/agent-gateway/internal/agent"
)

// Bridge converts the remote tool catalog into provider-agnostic descriptors
// and registers them with every provider that accepts tools. The bridge is
// the source of truth for the catalog: refresh re-reads the endpoint and
// re-registers, replacing stale descriptors.
type Bridge struct {
	client    *Client
	providers *agent.Registry

	mu          sync.Mutex
	initialized bool
}

func NewBridge(client *Client, providers *agent.Registry) *Bridge {
	return &Bridge{
		client:    client,
		providers: providers,
	}
}

// Initialize connects, discovers the catalog and registers it. A second call
// while already initialized is a no-op. An unreachable endpoint is logged
// and skipped: partial availability beats total failure.
func (b *Bridge) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.initialized {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := b.registerAll(ctx); err != nil {
		log.Printf("Tool bridge initialization skipped: %v", err)
		return nil
	}

	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()

	return nil
}

// RefreshTools forces a reconnect and full re-registration, for when the
// remote catalog may have changed.
func (b *Bridge) RefreshTools(ctx context.Context) error {
	b.client.Disconnect()

	if err := b.registerAll(ctx); err != nil {
		return fmt.Errorf("failed to refresh tools: %w", err)
	}

	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()

	return nil
}

func (b *Bridge) registerAll(ctx context.Context) error {
	tools, err := b.client.ListTools(ctx)
	if err != nil {
		return err
	}

	registered := 0
	for _, p := range b.providers.All() {
		registrar, ok := p.(agent.ToolRegistrar)
		if !ok {
			continue
		}
		for _, remote := range tools {
			registrar.RegisterTool(&remoteTool{client: b.client, tool: remote})
		}
		registered++
	}

	log.Printf("Tool bridge registered %d tools with %d providers", len(tools), registered)
	return nil
}

// AvailableTools reads through to the endpoint, reconnecting lazily.
func (b *Bridge) AvailableTools(ctx context.Context) ([]string, error) {
	tools, err := b.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}

	return names, nil
}

func (b *Bridge) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// remoteTool adapts a catalog entry to the agent.Tool contract. Execution
// round-trips through the endpoint and normalizes the result to text.
type remoteTool struct {
	client *Client
	tool   RemoteTool
}

func (t *remoteTool) Name() string {
	return t.tool.Name
}

func (t *remoteTool) Description() string {
	return t.tool.Description
}

func (t *remoteTool) Schema() json.RawMessage {
	if len(t.tool.InputSchema) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return t.tool.InputSchema
}

func (t *remoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.client.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolExecution, err)
	}

	text := FormatResult(result)
	if result.IsError {
		return "", fmt.Errorf("%w: %s", ErrToolExecution, text)
	}

	return text, nil
}
