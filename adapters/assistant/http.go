package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const (
	DefaultTimeout = 60 * time.Second
	maxReplySize   = 1 << 20
)

var (
	ErrInvalidInput   = errors.New("conversation and system prompt are required")
	ErrUnexpectedCode = errors.New("unexpected status code")
	ErrMalformedReply = errors.New("malformed reply body")
)

// HTTPTransport posts conversations to a chat backend. Every failure is
// turned into the fallback message; nothing is retried.
type HTTPTransport struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	token    func() string
}

// NewHTTPTransport returns a transport for endpoint. token, when not nil,
// supplies the bearer token of each request.
func NewHTTPTransport(endpoint string, timeout time.Duration, token func() string) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		endpoint: endpoint,
		timeout:  timeout,
		client:   &http.Client{},
		token:    token,
	}
}

// Send implements domain.Assistant.
func (t *HTTPTransport) Send(ctx context.Context, systemPrompt string, conversation []domain.Message) domain.Message {
	reply, err := t.roundTrip(ctx, systemPrompt, conversation)
	if err != nil {
		log.WithCtx(ctx).Warn("Assistant round trip failed",
			zap.String("endpoint", t.endpoint),
			zap.Int("history_length", len(conversation)),
			zap.Error(err))
		return domain.FallbackMessage()
	}
	return domain.Message{Role: domain.AssistantRole, Content: reply}
}

func (t *HTTPTransport) roundTrip(ctx context.Context, systemPrompt string, conversation []domain.Message) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" || len(conversation) == 0 {
		return "", ErrInvalidInput
	}

	body, err := json.Marshal(domain.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     conversation,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.token != nil {
		if token := t.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	return parseReply(raw)
}

func parseReply(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("%w: not JSON", ErrMalformedReply)
	}
	reply := gjson.GetBytes(raw, "reply")
	if reply.Type != gjson.String {
		return "", fmt.Errorf("%w: reply is not a string", ErrMalformedReply)
	}
	return reply.String(), nil
}
