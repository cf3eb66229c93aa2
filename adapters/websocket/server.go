package websocket

import (
	"context"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/edge-assistant/domain"
)

// AssistantFactory builds the assistant transport for a caller's token.
type AssistantFactory func(token string) domain.Assistant

type Server struct {
	upgrader     websocket.Upgrader
	gate         domain.EntitlementGate
	assistantFor AssistantFactory
	hub          *Hub
}

// NewServer serves chat surfaces over websockets. An origin list holding
// "*" accepts any origin.
func NewServer(gate domain.EntitlementGate, assistantFor AssistantFactory, allowedOrigins []string) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		gate:         gate,
		assistantFor: assistantFor,
		hub:          NewHub(),
	}
}

// RunWebsocketHub blocks until ctx ends.
func (s *Server) RunWebsocketHub(ctx context.Context) {
	s.hub.Run(ctx)
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
