package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"wellbeing-companion/internal/domain"
)

const ProviderMock = "mock"

// MockClient permite correr sin un LLM real (desarrollo y tests).
type MockClient struct {
	Response *Reply
	Err      error

	mu    sync.Mutex
	calls int
}

func (m *MockClient) Generate(ctx context.Context, history []domain.ChatMessage, utterance string) (Reply, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Reply{}, classifyTransportErr(ProviderMock, err)
	}
	if m.Err != nil {
		return Reply{}, genErr(ProviderMock, KindUpstream, m.Err)
	}
	if m.Response != nil {
		return *m.Response, nil
	}

	text := strings.TrimSpace(utterance)
	if len([]rune(text)) > 60 {
		text = string([]rune(text)[:60]) + "..."
	}
	return Reply{Text: fmt.Sprintf("Thanks for sharing that with me. You said: %q. How are you feeling right now?", text)}, nil
}

// Calls devuelve cuántas veces se invocó Generate.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
