package server

import (
	"sync"

	"github.com/gorilla/websocket"
)

const clientSendBuffer = 16

// client is one WebSocket participant in a session room. All writes go
// through the send channel so only the writePump touches the connection.
type client struct {
	sessionID string
	clientID  string
	conn      *websocket.Conn
	send      chan []byte
}

func (c *client) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
	c.conn.Close()
}

// Hub tracks active WebSocket clients grouped by session.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]bool)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[c.sessionID]
	if room == nil {
		room = make(map[*client]bool)
		h.rooms[c.sessionID] = room
	}
	room[c] = true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[c.sessionID]
	if room == nil {
		return
	}
	if room[c] {
		delete(room, c)
		close(c.send)
	}
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}
}

// sendPersonal delivers a message to a single client.
func (h *Hub) sendPersonal(c *client, msg string) {
	select {
	case c.send <- []byte(msg):
	default:
		// Slow consumer, drop the message rather than block the room.
	}
}

// broadcast delivers a message to every client in the session room,
// optionally skipping one.
func (h *Hub) broadcast(sessionID, msg string, skip *client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[sessionID] {
		if c == skip {
			continue
		}
		select {
		case c.send <- []byte(msg):
		default:
		}
	}
}

// RoomSize reports the number of clients connected to a session.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
