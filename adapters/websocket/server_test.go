package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/satriahrh/edge-assistant/adapters/http"
	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
)

type stubGate bool

func (g stubGate) CheckEntitlement(ctx context.Context, userID string, phase domain.PhaseID) (bool, error) {
	return bool(g), nil
}

type stubAssistant struct {
	hold chan struct{}
}

func (a *stubAssistant) Send(ctx context.Context, systemPrompt string, conversation []domain.Message) domain.Message {
	if a.hold != nil {
		<-a.hold
	}
	last := conversation[len(conversation)-1]
	return domain.Message{Role: domain.AssistantRole, Content: "echo: " + last.Content}
}

type harness struct {
	server *Server
	url    string

	mu     sync.Mutex
	tokens []string
}

func newHarness(t *testing.T, gate domain.EntitlementGate, a domain.Assistant) *harness {
	t.Helper()
	h := &harness{}
	h.server = NewServer(gate, func(token string) domain.Assistant {
		h.mu.Lock()
		h.tokens = append(h.tokens, token)
		h.mu.Unlock()
		return a
	}, []string{"*"})

	ctx, cancel := context.WithCancel(context.Background())
	go h.server.RunWebsocketHub(ctx)

	e := echo.New()
	e.GET("/ws", h.server.Handler, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(httpadapter.UserIDKey, "u1")
			c.Set(httpadapter.TokenKey, "tok")
			return next(c)
		}
	})
	ts := httptest.NewServer(e)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	h.url = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return h
}

func (h *harness) dial(t *testing.T, phase string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(h.url+"?phase="+phase, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readView(t *testing.T, conn *websocket.Conn, state usecase.SurfaceState) usecase.View {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, FrameRender, frame.Type)
	require.NotNil(t, frame.View)
	require.Equal(t, state, frame.View.State)
	return *frame.View
}

func submit(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameSubmit, Text: text}))
}

func TestChatOverWebsocket(t *testing.T) {
	h := newHarness(t, stubGate(true), &stubAssistant{})
	conn := h.dial(t, "evaluate")

	loading := readView(t, conn, usecase.StateLoading)
	assert.False(t, loading.ShowInput)
	assert.Equal(t, "Evaluate", loading.Title)

	idle := readView(t, conn, usecase.StateIdle)
	require.Len(t, idle.Messages, 1)
	assert.True(t, idle.InputEnabled)

	submit(t, conn, "What is RSI?")
	sending := readView(t, conn, usecase.StateSending)
	assert.True(t, sending.ClearInput)
	assert.False(t, sending.InputEnabled)
	assert.Len(t, sending.Messages, 2)

	done := readView(t, conn, usecase.StateIdle)
	require.Len(t, done.Messages, 3)
	assert.Equal(t, domain.UserRole, done.Messages[1].Role)
	assert.Equal(t, "What is RSI?", done.Messages[1].Content)
	assert.Equal(t, "echo: What is RSI?", done.Messages[2].Content)

	h.mu.Lock()
	assert.Equal(t, []string{"tok"}, h.tokens)
	h.mu.Unlock()
}

func TestRejectedSubmissions(t *testing.T) {
	a := &stubAssistant{hold: make(chan struct{})}
	h := newHarness(t, stubGate(true), a)
	conn := h.dial(t, "design")
	readView(t, conn, usecase.StateLoading)
	readView(t, conn, usecase.StateIdle)

	submit(t, conn, "   ")
	frame := readFrame(t, conn)
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, CodeEmptyInput, frame.Code)

	submit(t, conn, "first")
	readView(t, conn, usecase.StateSending)
	submit(t, conn, "second")
	frame = readFrame(t, conn)
	assert.Equal(t, CodeBusy, frame.Code)

	close(a.hold)
	done := readView(t, conn, usecase.StateIdle)
	assert.Len(t, done.Messages, 3)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, CodeUnknownType, readFrame(t, conn).Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, CodeInvalidFrame, readFrame(t, conn).Code)
}

func TestDeniedPhase(t *testing.T) {
	h := newHarness(t, stubGate(false), &stubAssistant{})
	conn := h.dial(t, "evolve")

	readView(t, conn, usecase.StateLoading)
	denied := readView(t, conn, usecase.StateDenied)
	assert.False(t, denied.ShowInput)
	assert.Empty(t, denied.Messages)
	assert.Equal(t, "Evolve is not available for your plan.", denied.Notice)

	submit(t, conn, "let me in")
	assert.Equal(t, CodeUnavailable, readFrame(t, conn).Code)
}

func TestUnknownPhaseIsRejectedBeforeUpgrade(t *testing.T) {
	h := newHarness(t, stubGate(true), &stubAssistant{})

	_, resp, err := websocket.DefaultDialer.Dial(h.url+"?phase=backtest", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h.mu.Lock()
	assert.Empty(t, h.tokens)
	h.mu.Unlock()
}

func TestHubCountsClients(t *testing.T) {
	h := newHarness(t, stubGate(true), &stubAssistant{})
	hub := h.server.GetHub()

	conn := h.dial(t, "generate")
	readView(t, conn, usecase.StateLoading)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := checkOrigin([]string{"*"})
	assert.True(t, open(req("https://evil.example")))

	strict := checkOrigin([]string{"https://app.example"})
	assert.True(t, strict(req("https://app.example")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))
}

type cancelAwareAssistant struct {
	canceled chan error
}

func (a *cancelAwareAssistant) Send(ctx context.Context, systemPrompt string, conversation []domain.Message) domain.Message {
	<-ctx.Done()
	a.canceled <- ctx.Err()
	return domain.FallbackMessage()
}

func TestClosingConnectionCancelsPendingRoundTrip(t *testing.T) {
	a := &cancelAwareAssistant{canceled: make(chan error, 1)}
	h := newHarness(t, stubGate(true), a)
	hub := h.server.GetHub()

	conn := h.dial(t, "evolve")
	readView(t, conn, usecase.StateLoading)
	readView(t, conn, usecase.StateIdle)
	submit(t, conn, "win rate 40%")
	readView(t, conn, usecase.StateSending)

	conn.Close()

	select {
	case err := <-a.canceled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("round trip still pending after the connection closed")
	}
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
