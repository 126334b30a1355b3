package ws

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// StaffRoom receives every staff-facing event.
const StaffRoom = "staff"

// SessionRoom is the room customers at a table join for one session.
func SessionRoom(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// Relay fans broadcasts out to every API instance. Messages published
// through it come back to this hub via Deliver.
type Relay interface {
	Publish(room string, message []byte) error
}

// roomMessage is an encoded event addressed to one room.
type roomMessage struct {
	Room    string
	Message []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan roomMessage

	relay Relay

	// Closed when Run returns so pumps stop waiting on the hub.
	done chan struct{}

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 256),
		done:       make(chan struct{}),
	}
}

// SetRelay routes broadcasts through r. Call before Run.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for room, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[msg.Room] {
				select {
				case client.send <- msg.Message:
				default:
					// Slow consumer: drop it rather than stall the room.
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

// Broadcast sends message to every client in room, across instances when a
// relay is configured. Delivery is best effort and never blocks the caller.
func (h *Hub) Broadcast(room string, message []byte) {
	if h.relay != nil {
		err := h.relay.Publish(room, message)
		if err == nil {
			return
		}
		log.Printf("WARN: ws relay publish to %s failed, delivering locally: %v", room, err)
	}
	h.Deliver(room, message)
}

// Deliver queues message for local clients in room.
func (h *Hub) Deliver(room string, message []byte) {
	select {
	case h.broadcast <- roomMessage{Room: room, Message: message}:
	default:
		log.Printf("WARN: ws broadcast queue full, dropping message for %s", room)
	}
}

func (h *Hub) join(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount reports how many local clients are in room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
