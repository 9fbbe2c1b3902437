package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/praxishq/agent-gateway/internal/session"
	"github.com/praxishq/agent-gateway/internal/stream"
)

// EchoProvider is a built-in provider that streams the user message back in
// small chunks. It exists for local development and smoke testing the full
// pipeline without an LLM backend; "/tools" replies with the registered tool
// names so bridge registration can be verified end to end.
type EchoProvider struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewEchoProvider() *EchoProvider {
	return &EchoProvider{
		tools: make(map[string]Tool),
	}
}

func (p *EchoProvider) Name() string {
	return "echo"
}

func (p *EchoProvider) RegisterTool(tool Tool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tools[tool.Name()] = tool
}

func (p *EchoProvider) Stream(ctx context.Context, userMessage string, chat *session.ChatSession) (<-chan stream.Response, error) {
	ch := make(chan stream.Response)
	messageID := session.NewMessageID()

	emit := func(resp stream.Response) bool {
		resp.SessionID = chat.ID
		resp.MessageID = messageID
		select {
		case ch <- resp:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)

		if !emit(stream.Response{Type: stream.EventStart}) {
			return
		}

		for _, token := range p.tokens(userMessage) {
			if !emit(stream.Response{Type: stream.EventToken, Content: token}) {
				return
			}
		}

		emit(stream.Response{Type: stream.EventEnd})
	}()

	return ch, nil
}

func (p *EchoProvider) tokens(userMessage string) []string {
	reply := fmt.Sprintf("You said: %s", userMessage)

	if strings.TrimSpace(userMessage) == "/tools" {
		p.mu.RLock()
		names := make([]string, 0, len(p.tools))
		for name := range p.tools {
			names = append(names, name)
		}
		p.mu.RUnlock()
		sort.Strings(names)
		if len(names) == 0 {
			reply = "No tools registered."
		} else {
			reply = fmt.Sprintf("Available tools: %s", strings.Join(names, ", "))
		}
	}

	words := strings.SplitAfter(reply, " ")
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			tokens = append(tokens, w)
		}
	}
	return tokens
}
