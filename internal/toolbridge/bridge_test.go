package toolbridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/praxishq/agent-gateway/internal/agent"
	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/stream"
)

// fakeToolServer is a minimal JSON-RPC tool endpoint backed by a mutable
// catalog, with call counters for handshake assertions.
type fakeToolServer struct {
	mu          sync.Mutex
	catalog     []RemoteTool
	initCalls   int
	listCalls   int
	lastAuth    string
	callResults map[string]CallResult
}

func (s *fakeToolServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.lastAuth = r.Header.Get("Authorization")
		var result any
		var rpcErr *rpcError
		switch req.Method {
		case "initialize":
			s.initCalls++
			result = map[string]any{
				"protocolVersion": protocolVersion,
				"serverInfo":      map[string]string{"name": "fake-tools", "version": "0.1.0"},
			}
		case "tools/list":
			s.listCalls++
			result = listToolsResult{Tools: s.catalog}
		case "tools/call":
			params := req.Params.(map[string]any)
			name, _ := params["name"].(string)
			if res, ok := s.callResults[name]; ok {
				result = res
			} else {
				rpcErr = &rpcError{Code: -32602, Message: "unknown tool " + name}
			}
		default:
			rpcErr = &rpcError{Code: -32601, Message: "method not found"}
		}
		s.mu.Unlock()

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		if result != nil {
			data, err := json.Marshal(result)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			resp.Result = data
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func (s *fakeToolServer) counts() (initCalls, listCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls, s.listCalls
}

func (s *fakeToolServer) auth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

// recordingProvider accepts tool registrations and nothing else.
type recordingProvider struct {
	mu    sync.Mutex
	tools map[string]agent.Tool
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{tools: make(map[string]agent.Tool)}
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Stream(ctx context.Context, userMessage string, chat *session.ChatSession) (<-chan stream.Response, error) {
	ch := make(chan stream.Response)
	close(ch)
	return ch, nil
}

func (p *recordingProvider) RegisterTool(tool agent.Tool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tools[tool.Name()] = tool
}

func (p *recordingProvider) tool(name string) agent.Tool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tools[name]
}

func newFixture(t *testing.T, srv *fakeToolServer, authToken string) (*Bridge, *recordingProvider, *Client) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL, authToken)
	provider := newRecordingProvider()
	registry := agent.NewRegistry()
	if err := registry.Register(provider.Name(), provider); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return NewBridge(client, registry), provider, client
}

func TestClientConnectIdempotent(t *testing.T) {
	srv := &fakeToolServer{}
	_, _, client := newFixture(t, srv, "")
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	if initCalls, _ := srv.counts(); initCalls != 1 {
		t.Fatalf("initialize called %d times, want 1", initCalls)
	}
	if !client.Connected() {
		t.Fatal("client must report connected")
	}
}

func TestClientBearerToken(t *testing.T) {
	srv := &fakeToolServer{}
	_, _, client := newFixture(t, srv, "static-token")
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := srv.auth(); got != "Bearer static-token" {
		t.Fatalf("Authorization = %q, want static bearer token", got)
	}

	// A token carried on the context overrides the static one.
	if _, err := client.ListTools(session.WithAuthToken(ctx, "session-token")); err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if got := srv.auth(); got != "Bearer session-token" {
		t.Fatalf("Authorization = %q, want context bearer token", got)
	}
}

func TestBridgeInitializeRegistersTools(t *testing.T) {
	srv := &fakeToolServer{
		catalog: []RemoteTool{
			{Name: "search", Description: "web search", InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
			{Name: "calculator", Description: "arithmetic"},
		},
	}
	bridge, provider, _ := newFixture(t, srv, "")

	if err := bridge.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !bridge.Initialized() {
		t.Fatal("bridge must be initialized")
	}

	search := provider.tool("search")
	if search == nil {
		t.Fatal("search tool was not registered")
	}
	if search.Description() != "web search" {
		t.Fatalf("Description() = %q", search.Description())
	}
	if !strings.Contains(string(search.Schema()), `"q"`) {
		t.Fatalf("Schema() = %s, want endpoint schema", search.Schema())
	}

	// Catalog entries without a schema fall back to an open object schema.
	calc := provider.tool("calculator")
	if calc == nil {
		t.Fatal("calculator tool was not registered")
	}
	if string(calc.Schema()) != `{"type":"object"}` {
		t.Fatalf("fallback Schema() = %s", calc.Schema())
	}
}

func TestBridgeInitializeIdempotent(t *testing.T) {
	srv := &fakeToolServer{catalog: []RemoteTool{{Name: "search"}}}
	bridge, _, _ := newFixture(t, srv, "")
	ctx := context.Background()

	if err := bridge.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := bridge.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}

	if _, listCalls := srv.counts(); listCalls != 1 {
		t.Fatalf("tools/list called %d times, want 1", listCalls)
	}
}

func TestBridgeInitializeUnreachableEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	client := NewClient(ts.URL, "")
	registry := agent.NewRegistry()
	bridge := NewBridge(client, registry)

	// Partial availability: a dead endpoint must not fail startup.
	if err := bridge.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() with dead endpoint error = %v", err)
	}
	if bridge.Initialized() {
		t.Fatal("bridge must not report initialized after a failed discovery")
	}
}

func TestBridgeRefreshReconnectsAndReRegisters(t *testing.T) {
	srv := &fakeToolServer{catalog: []RemoteTool{{Name: "search"}}}
	bridge, provider, _ := newFixture(t, srv, "")
	ctx := context.Background()

	if err := bridge.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	srv.mu.Lock()
	srv.catalog = append(srv.catalog, RemoteTool{Name: "weather"})
	srv.mu.Unlock()

	if err := bridge.RefreshTools(ctx); err != nil {
		t.Fatalf("RefreshTools() error = %v", err)
	}

	if provider.tool("weather") == nil {
		t.Fatal("refreshed catalog entry was not registered")
	}
	if initCalls, _ := srv.counts(); initCalls != 2 {
		t.Fatalf("initialize called %d times, want reconnect on refresh", initCalls)
	}
}

func TestRemoteToolExecute(t *testing.T) {
	srv := &fakeToolServer{
		catalog: []RemoteTool{{Name: "search"}, {Name: "broken"}},
		callResults: map[string]CallResult{
			"search": {Content: []ContentBlock{{Type: "text", Text: "3 hits"}}},
			"broken": {Content: []ContentBlock{{Type: "text", Text: "index offline"}}, IsError: true},
		},
	}
	bridge, provider, _ := newFixture(t, srv, "")
	ctx := context.Background()

	if err := bridge.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	got, err := provider.tool("search").Execute(ctx, map[string]any{"q": "go"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "3 hits" {
		t.Fatalf("Execute() = %q, want %q", got, "3 hits")
	}

	_, err = provider.tool("broken").Execute(ctx, nil)
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("Execute() error = %v, want ErrToolExecution", err)
	}
	if !strings.Contains(err.Error(), "index offline") {
		t.Fatalf("Execute() error = %v, want endpoint failure text", err)
	}
}

func TestClientCallToolRPCError(t *testing.T) {
	srv := &fakeToolServer{catalog: []RemoteTool{{Name: "search"}}}
	_, _, client := newFixture(t, srv, "")

	_, err := client.CallTool(context.Background(), "missing", nil)
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("CallTool() error = %v, want rpc error", err)
	}
}

func TestClientTransportErrorDisconnects(t *testing.T) {
	srv := &fakeToolServer{}
	ts := httptest.NewServer(srv.handler())
	client := NewClient(ts.URL, "")
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ts.Close()

	_, err := client.CallTool(ctx, "search", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("CallTool() error = %v, want ErrNotConnected", err)
	}
	if client.Connected() {
		t.Fatal("client must drop connection after transport failure")
	}
}

func TestFormatResult(t *testing.T) {
	got := FormatResult(&CallResult{Content: []ContentBlock{
		{Type: "text", Text: "line one"},
		{Type: "image"},
		{Type: "text", Text: "line two"},
	}})
	want := "line one\n[image content]\nline two"
	if got != want {
		t.Fatalf("FormatResult() = %q, want %q", got, want)
	}

	if got := FormatResult(nil); got != "" {
		t.Fatalf("FormatResult(nil) = %q, want empty", got)
	}
}
