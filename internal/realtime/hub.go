// Package realtime fans dashboard updates out to connected WebSocket
// clients.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// sendBuffer bounds how many pending payloads a client may lag behind
// before it is dropped.
const sendBuffer = 16

// client pairs a connection with its outbound queue. All writes to the
// connection happen on the single writeLoop goroutine; gorilla/websocket
// does not allow concurrent writers on one conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writeLoop(h *Hub) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.RemoveClient(c.conn)
			return
		}
	}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	go c.writeLoop(h)
}

// RemoveClient is safe to call more than once for the same connection.
// The send channel is closed under the write lock, so queueing (which
// holds the read lock and checks membership first) can never race it.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(c.send)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON queues v for every client. Clients whose queue is full
// are dropped rather than allowed to stall the caller.
func (h *Hub) BroadcastJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	var stale []*websocket.Conn
	h.mu.RLock()
	for conn, c := range h.clients {
		select {
		case c.send <- data:
		default:
			stale = append(stale, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range stale {
		h.RemoveClient(conn)
	}
}

// SendJSON queues v for a single client. A no-op if the client has
// already been removed.
func (h *Hub) SendJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.mu.RLock()
	c, ok := h.clients[conn]
	if ok {
		select {
		case c.send <- data:
		default:
		}
	}
	h.mu.RUnlock()
}
