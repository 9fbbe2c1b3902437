// Package toolbridge discovers tools from an external tool-protocol endpoint
// and exposes them to agent providers as provider-agnostic descriptors.
package toolbridge

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotConnected is returned when an operation needs a live endpoint
	// connection and lazy reconnect also failed.
	ErrNotConnected = errors.New("tool endpoint not connected")

	// ErrToolExecution marks a remote tool call that failed at the
	// endpoint. It is a normal tool-call error, not a bridge fault.
	ErrToolExecution = errors.New("tool execution failed")
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// RemoteTool is one entry of the endpoint's tool catalog.
type RemoteTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type listToolsResult struct {
	Tools []RemoteTool `json:"tools"`
}

// ContentBlock is one piece of a tool call result. Only text blocks are
// forwarded to providers; other kinds are summarized.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallResult is the endpoint's response to tools/call.
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
}
