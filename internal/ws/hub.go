package ws

import (
	"context"
	"encoding/json"

	"github.com/sujalbistaa/slidont/internal/moderation"
	"github.com/sujalbistaa/slidont/pkg/logger"
)

const broadcastBuffer = 256

// Hub maintains the set of connected clients and fans messages out to them.
type Hub struct {
	clients map[*Client]bool

	// Broadcast carries encoded messages for every client.
	Broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case message := <-h.Broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than stall everyone.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Clients returns the number of connected clients. Requires Run.
func (h *Hub) Clients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Notify encodes a moderation change and queues it for broadcast.
// It never blocks the write path: when the buffer is full the change is dropped.
func (h *Hub) Notify(ctx context.Context, c moderation.Change) {
	msg, err := json.Marshal(c)
	if err != nil {
		logger.Error(ctx, "Error marshalling WS message", "error", err)
		return
	}
	h.Send(ctx, msg)
}

// Send queues an already-encoded message.
func (h *Hub) Send(ctx context.Context, msg []byte) {
	select {
	case h.Broadcast <- msg:
	default:
		logger.Warn(ctx, "WS broadcast buffer full, dropping message")
	}
}
