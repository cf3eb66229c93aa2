package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/edge-assistant/usecase"
	"github.com/satriahrh/edge-assistant/utils/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

const (
	FrameSubmit = "submit"
	FrameRender = "render"
	FrameError  = "error"
)

// Error codes carried by error frames.
const (
	CodeEmptyInput   = "empty_input"
	CodeBusy         = "busy"
	CodeUnavailable  = "unavailable"
	CodeUnknownType  = "unknown_type"
	CodeInvalidFrame = "invalid_frame"
)

// Frame is the envelope of every message on the socket.
type Frame struct {
	Type    string        `json:"type"`
	Text    string        `json:"text,omitempty"`
	View    *usecase.View `json:"view,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Submitter accepts user input for a chat surface.
type Submitter interface {
	Submit(ctx context.Context, input string) error
}

// Client is one websocket connection driving one chat surface. It renders
// surface views as frames and feeds submit frames back into the surface.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	surface Submitter

	closeOnce sync.Once
}

func NewClient(ctx context.Context, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Attach binds the surface that receives submit frames. Call it before Run.
func (c *Client) Attach(surface Submitter) {
	c.surface = surface
}

func (c *Client) Run() {
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	go c.readPump()
	go c.writePump()
}

// Close cancels the client context and closes the connection. It is safe to
// call more than once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
	})
}

func (c *Client) Context() context.Context {
	return c.ctx
}

// Render implements usecase.Renderer.
func (c *Client) Render(view usecase.View) {
	if err := c.sendFrame(Frame{Type: FrameRender, View: &view}); err != nil {
		log.WithCtx(c.ctx).Debug("Dropping render", zap.Uint64("revision", view.Revision), zap.Error(err))
	}
}

func (c *Client) sendError(code, message string) {
	if err := c.sendFrame(Frame{Type: FrameError, Code: code, Message: message}); err != nil {
		log.WithCtx(c.ctx).Debug("Dropping error frame", zap.String("code", code), zap.Error(err))
	}
}

func (c *Client) sendFrame(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.SendMessage(payload)
}

// SendMessage queues message for the write pump. A client that cannot keep
// up with its buffer is disconnected.
func (c *Client) SendMessage(message []byte) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}

	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		log.WithCtx(c.ctx).Warn("Send buffer full, closing connection")
		c.Close()
		return websocket.ErrCloseSent
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Client) handleFrame(raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError(CodeInvalidFrame, "frame is not valid JSON")
		return
	}

	switch frame.Type {
	case FrameSubmit:
		err := c.surface.Submit(c.ctx, frame.Text)
		switch {
		case err == nil:
		case errors.Is(err, usecase.ErrEmptyInput):
			c.sendError(CodeEmptyInput, err.Error())
		case errors.Is(err, usecase.ErrBusy):
			c.sendError(CodeBusy, err.Error())
		case errors.Is(err, usecase.ErrUnavailable):
			c.sendError(CodeUnavailable, err.Error())
		default:
			log.WithCtx(c.ctx).Error("Submit failed", zap.Error(err))
		}
	default:
		c.sendError(CodeUnknownType, "unknown frame type "+frame.Type)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
