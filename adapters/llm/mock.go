package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/edge-assistant/domain"
)

const promptPreview = 80

// MockClient answers with a canned phase-appropriate starter reply. It is
// the default backend for local development.
type MockClient struct {
	delay time.Duration
}

func NewMockClient(delay time.Duration) *MockClient {
	return &MockClient{delay: delay}
}

// Reply implements domain.Llm.
func (m *MockClient) Reply(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 System: %s...\n\n", truncateRunes(systemPrompt, promptPreview))

	if last, ok := lastUserMessage(history); ok {
		fmt.Fprintf(&b, "You said: \"%s\". Here’s a phase-appropriate starter response.\n\n", last.Content)
	} else {
		b.WriteString("No user message detected. Ask something to begin.\n\n")
	}

	b.WriteString("• If you're on Evaluate: ask about MA/RSI basics.\n")
	b.WriteString("• On Design: outline rules (entries, exits, filters).\n")
	b.WriteString("• On Generate: paste finalized rules for code.\n")
	b.WriteString("• On Evolve: paste backtest metrics for optimization.\n")
	return b.String(), nil
}

func lastUserMessage(history []domain.Message) (domain.Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.UserRole {
			return history[i], true
		}
	}
	return domain.Message{}, false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
