// Package agent defines the provider contract consumed by the gateway and
// the runner that drives a provider's event sequence into the session store
// and the streaming broker.
package agent

import (
	"context"
	"encoding/json"

	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/stream"
)

// Provider produces the response to one user message as a finite, ordered
// sequence of streaming responses: start, then tokens and tool activity,
// ended by end or error. The channel is driven to completion exactly once
// and closed by the provider.
type Provider interface {
	Name() string
	Stream(ctx context.Context, userMessage string, chat *session.ChatSession) (<-chan stream.Response, error)
}

// Tool is a provider-agnostic callable registered with providers that accept
// tools. The tool bridge implements it for remote tools.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolRegistrar is implemented by providers that can use tools. Re-registering
// a tool name replaces the previous descriptor; the bridge relies on that for
// refresh.
type ToolRegistrar interface {
	RegisterTool(tool Tool)
}
