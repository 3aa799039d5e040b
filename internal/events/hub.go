// Package events broadcasts committed inventory transactions to connected
// scan stations over websockets.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/erazemk/oprema/internal/model"
)

// Event is the message sent to stations.
type Event struct {
	Type        string             `json:"type"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

// Hub maintains the set of connected stations and broadcasts to them.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a Hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run delivers messages until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			slog.Info("station connected", "station", c.id, "user", c.user)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
				slog.Info("station disconnected", "station", c.id)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slog.Warn("station send buffer full, dropping event", "station", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues a transaction for broadcast. It never blocks; events are
// dropped if the hub is saturated.
func (h *Hub) Publish(t model.Transaction) {
	msg, err := json.Marshal(Event{Type: "transaction", Transaction: &t})
	if err != nil {
		slog.Error("marshaling event", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("event hub saturated, dropping transaction", "id", t.ID)
	}
}

// Clients returns the number of connected stations.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
