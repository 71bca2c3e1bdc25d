// Package relay provides room-based publish/subscribe for real-time chat.
// The hub owns the room membership table; no other component mutates it.
package relay

import (
	"log/slog"
	"sync"
)

// Default size of a client's outbound buffer. Delivery is at-most-once
// best-effort: when a buffer is full the payload is dropped for that client.
const sendBufferSize = 64

// Client is one connection participating in the relay. A client may belong
// to any number of rooms.
type Client struct {
	id   string
	send chan []byte
	once sync.Once
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Receive returns the channel carrying payloads fanned out to this client.
// The channel is closed when the client disconnects.
func (c *Client) Receive() <-chan []byte { return c.send }

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks rooms and fans out published payloads. Messages are not
// persisted at the relay layer.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Connect registers a new client connection.
func (h *Hub) Connect(id string) *Client {
	return &Client{id: id, send: make(chan []byte, sendBufferSize)}
}

// Join adds the client to a room. Joining twice is a no-op.
func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	members[c] = struct{}{}
}

// Leave removes the client from a room.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(roomID, c)
}

// Disconnect removes the client from every room and closes its receive
// channel.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.rooms {
		h.dropLocked(roomID, c)
	}
	c.close()
}

func (h *Hub) dropLocked(roomID string, c *Client) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Publish fans the payload out to every member of the room except the
// sender, which applies local echo before publishing. Payloads published by
// the same sender arrive in order; no ordering is guaranteed across senders.
func (h *Hub) Publish(roomID string, sender *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[roomID] {
		if c == sender {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slog.Debug("Relay buffer full, dropping payload", "room_id", roomID, "client_id", c.id)
		}
	}
}
