package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// conn is a single listener connection.
type conn struct {
	id          string
	ws          *websocket.Conn
	writeMu     sync.Mutex
	connectedAt time.Time
}

func (c *conn) send(evt Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(evt)
}

// Hub tracks listener connections and fans events out to them.
type Hub struct {
	mu    sync.Mutex
	conns map[string]*conn
	seq   int
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*conn)}
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Count returns the number of connected listeners.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast numbers evt and sends it to every listener. Failed writes are
// logged and otherwise ignored.
func (h *Hub) Broadcast(evt Event) {
	h.mu.Lock()
	h.seq++
	evt.Seq = h.seq
	targets := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(evt); err != nil {
			slog.Warn("event broadcast failed", "conn", c.id, "type", evt.Type, "error", err)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		c.ws.Close()
		delete(h.conns, id)
	}
}
