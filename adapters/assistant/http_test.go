package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/edge-assistant/domain"
)

var conversation = []domain.Message{
	{Role: domain.AssistantRole, Content: "Hi! How can I help?"},
	{Role: domain.UserRole, Content: "What is RSI?"},
}

func TestSendReturnsReply(t *testing.T) {
	var got domain.ChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"reply":"RSI is a momentum oscillator."}`))
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, time.Second, func() string { return "tok" })
	msg := transport.Send(context.Background(), "You are the Evaluate assistant.", conversation)

	assert.Equal(t, domain.Message{Role: domain.AssistantRole, Content: "RSI is a momentum oscillator."}, msg)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "You are the Evaluate assistant.", got.SystemPrompt)
	assert.Equal(t, conversation, got.Messages)
}

func TestSendFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		wait   time.Duration
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"reply":"ignored"}`},
		{name: "not found", status: http.StatusNotFound, body: `{}`},
		{name: "not json", status: http.StatusOK, body: `<html>oops</html>`},
		{name: "missing reply", status: http.StatusOK, body: `{"message":"hi"}`},
		{name: "reply not a string", status: http.StatusOK, body: `{"reply":42}`},
		{name: "timeout", status: http.StatusOK, body: `{"reply":"late"}`, wait: 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				if tt.wait > 0 {
					select {
					case <-time.After(tt.wait):
					case <-r.Context().Done():
						return
					}
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			transport := NewHTTPTransport(srv.URL, 50*time.Millisecond, nil)
			msg := transport.Send(context.Background(), "prompt", conversation)

			assert.Equal(t, domain.FallbackMessage(), msg)
			assert.Equal(t, int32(1), hits.Load(), "exactly one request, no retries")
		})
	}
}

func TestSendUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	msg := NewHTTPTransport(url, time.Second, nil).Send(context.Background(), "prompt", conversation)
	assert.Equal(t, domain.FallbackReply, msg.Content)
}

func TestSendInvalidInputMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, time.Second, nil)

	assert.Equal(t, domain.FallbackMessage(), transport.Send(context.Background(), "   ", conversation))
	assert.Equal(t, domain.FallbackMessage(), transport.Send(context.Background(), "prompt", nil))
	assert.Zero(t, hits.Load())
}

func TestParseReply(t *testing.T) {
	reply, err := parseReply([]byte(`{"reply":"ok","extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	_, err = parseReply([]byte(`{"reply":null}`))
	assert.ErrorIs(t, err, ErrMalformedReply)
}
