package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/edge-assistant/adapters/message_broker"
	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
)

type stubLlm struct {
	reply string
	err   error
}

func (l stubLlm) Reply(ctx context.Context, systemPrompt string, history []domain.Message) (string, error) {
	return l.reply, l.err
}

type stubSubscriptions struct {
	sub domain.Subscription
	err error
}

func (s stubSubscriptions) Subscription(ctx context.Context, userID string) (domain.Subscription, error) {
	return s.sub, s.err
}

type stubConnections int

func (n stubConnections) ClientCount() int { return int(n) }

func newChatHandler(gen domain.Llm, subs domain.SubscriptionSource) *ChatHandler {
	svc := usecase.NewChatService(gen, message_broker.NewChannelMessageBroker())
	return NewChatHandler(svc, usecase.NewUsageMeter(), subs, stubConnections(3))
}

func call(t *testing.T, handler echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(UserIDKey, "u1")
	return rec, handler(c)
}

const chatBody = `{"systemPrompt":"You are the Evaluate assistant.","messages":[{"role":"assistant","content":"Hi! How can I help?"},{"role":"user","content":"What is RSI?"}]}`

func TestChat(t *testing.T) {
	h := newChatHandler(stubLlm{reply: "RSI measures momentum."}, stubSubscriptions{})

	rec, err := call(t, h.Chat, http.MethodPost, "/api/v1/chat", chatBody)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reply":"RSI measures momentum."}`, rec.Body.String())
}

func TestChatInvalidBody(t *testing.T) {
	h := newChatHandler(stubLlm{reply: "unused"}, stubSubscriptions{})

	for _, body := range []string{
		`{"systemPrompt":"","messages":[{"role":"user","content":"hi"}]}`,
		`{"systemPrompt":"p","messages":[]}`,
		`{"systemPrompt":"p","messages":[{"role":"system","content":"hi"}]}`,
		`[`,
	} {
		_, err := call(t, h.Chat, http.MethodPost, "/api/v1/chat", body)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr, body)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code, body)
	}
}

func TestChatLlmFailure(t *testing.T) {
	h := newChatHandler(stubLlm{err: errors.New("quota")}, stubSubscriptions{})

	rec, err := call(t, h.Chat, http.MethodPost, "/api/v1/chat", chatBody)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to generate reply"}`, rec.Body.String())
}

func TestPhases(t *testing.T) {
	h := newChatHandler(stubLlm{}, stubSubscriptions{})

	rec, err := call(t, h.Phases, http.MethodGet, "/api/v1/phases", "")
	require.NoError(t, err)

	var phases []domain.PhaseConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &phases))
	require.Len(t, phases, 4)
	for i, id := range domain.Phases() {
		assert.Equal(t, id, phases[i].ID)
	}
}

func TestSubscriptionEndpoint(t *testing.T) {
	sub := domain.Subscription{Plan: "pro", Entitlements: domain.Entitlements{Evaluate: true}}
	rec, err := call(t, newChatHandler(stubLlm{}, stubSubscriptions{sub: sub}).Subscription, http.MethodGet, "/api/v1/subscription", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":"pro","entitlements":{"evaluate":true,"design":false,"generate":false,"evolve":false}}`, rec.Body.String())

	_, err = call(t, newChatHandler(stubLlm{}, stubSubscriptions{err: errors.New("down")}).Subscription, http.MethodGet, "/api/v1/subscription", "")
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Code)
}

func TestUsageEndpoint(t *testing.T) {
	h := newChatHandler(stubLlm{}, stubSubscriptions{})

	rec, err := call(t, h.Usage, http.MethodGet, "/api/v1/usage", "")
	require.NoError(t, err)

	var usage domain.Usage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, "u1", usage.UserID)
	assert.Zero(t, usage.Messages)
	assert.NotEmpty(t, usage.Day)
}

func TestHealthCheck(t *testing.T) {
	rec, err := call(t, newChatHandler(stubLlm{}, stubSubscriptions{}).HealthCheck, http.MethodGet, "/api/v1/health", "")
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["connections"])
}
