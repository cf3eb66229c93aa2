package websocket

import (
	"context"
	"sync/atomic"

	"github.com/satriahrh/edge-assistant/utils/log"
)

// Hub tracks live clients so they can be counted and closed on shutdown.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			log.WithCtx(client.ctx).Debug("New client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Store(int64(len(h.clients)))
				client.Close()
				log.WithCtx(client.ctx).Debug("Client unregistered")
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.Close()
			}
			clear(h.clients)
			h.count.Store(0)
			return
		}
	}
}

// Register adds a client. A client registered after the hub stopped is
// closed right away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
