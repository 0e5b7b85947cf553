package websocket

import (
	"context"
	"sync/atomic"

	"github.com/fortuna/hockeysync/internal/store"
)

// Event is one relayed match update.
type Event struct {
	Source        store.Source
	CompetitionID string
	Payload       []byte
}

// Hub fans events out to the connected clients whose filters match.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	count      atomic.Int64
	done       chan struct{}
}

// NewHub creates a hub. Run must be called for it to deliver anything.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run delivers events until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Store(int64(len(h.clients)))
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(event) {
					continue
				}
				select {
				case client.send <- event.Payload:
				default:
					// Slow consumer.
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

// Broadcast queues event for delivery. It gives up once the hub has stopped.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
