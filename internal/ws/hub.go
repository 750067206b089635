// Package ws pushes order events to browser clients over WebSocket.
// Every client joins the "orders" room; a client watching a single order
// also joins that order's room.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coffee-order/api/internal/events"
)

// TopicAll is the room that receives every order event.
const TopicAll = "orders"

// OrderTopic returns the room for a single order's events.
func OrderTopic(orderID string) string {
	return "order:" + orderID
}

// ErrBroadcastFull is returned when the hub's queue is full and the message
// was dropped.
var ErrBroadcastFull = errors.New("ws broadcast queue full")

// topicMessage routes one encoded message to a room.
type topicMessage struct {
	topic   string
	message []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan topicMessage

	// done is closed when Run returns
	done     chan struct{}
	doneOnce sync.Once

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan topicMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing every
// client. Call it as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			for _, topic := range client.topics {
				if h.rooms[topic] == nil {
					h.rooms[topic] = make(map[*Client]bool)
				}
				h.rooms[topic][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[msg.topic] {
				select {
				case client.send <- msg.message:
				default:
					// Slow consumer: drop it rather than stall the hub.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove drops client from all its rooms and closes its send channel once.
// Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	registered := false
	for _, topic := range client.topics {
		clients, ok := h.rooms[topic]
		if !ok || !clients[client] {
			continue
		}
		registered = true
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, topic)
		}
	}
	if registered {
		close(client.send)
	}
}

// join registers client. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters client; after the hub stops it returns at once.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := map[*Client]bool{}
	for _, clients := range h.rooms {
		for c := range clients {
			seen[c] = true
		}
	}
	for c := range seen {
		h.remove(c)
	}
}

// Broadcast queues an encoded message for every client in topic. It never
// blocks: when the queue is full the message is dropped.
func (h *Hub) Broadcast(topic string, message []byte) error {
	select {
	case h.broadcast <- topicMessage{topic: topic, message: message}:
		return nil
	default:
		slog.Warn("ws broadcast dropped", "topic", topic)
		return ErrBroadcastFull
	}
}

// Publish implements events.Publisher: the event goes to the "orders" room
// and to the room of the order it concerns.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	message, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return errors.Join(
		h.Broadcast(TopicAll, message),
		h.Broadcast(OrderTopic(evt.Key()), message),
	)
}

// ClientCount returns the number of clients in topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[topic])
}

var _ events.Publisher = (*Hub)(nil)
