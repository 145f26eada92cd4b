package handoff

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame is the websocket envelope spoken between Relay and Hub.
type Frame struct {
	Op      string   `json:"op"`
	Message *Message `json:"message,omitempty"`
	ID      string   `json:"id,omitempty"`
}

const (
	opPublish = "publish"
	opDeliver = "deliver"
	opAck     = "ack"
)

// Hub is the server side of the relay transport. It holds the slot, pushes
// it to observers as they connect or as it changes, and clears it when an
// observer acknowledges delivery.
type Hub struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	pending   *Message
	observers map[*hubConn]struct{}
}

type hubConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *hubConn) send(f Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(f)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		observers: make(map[*hubConn]struct{}),
	}
}

// Pending returns a copy of the undelivered message, if any.
func (h *Hub) Pending() (Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return Message{}, false
	}
	return *h.pending, true
}

// ServeHTTP upgrades the request. Connections with ?role=observe receive
// deliveries; all connections may publish.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("channel upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &hubConn{conn: conn}
	observer := r.URL.Query().Get("role") == "observe"
	if observer {
		h.mu.Lock()
		h.observers[c] = struct{}{}
		pending := h.pending
		h.mu.Unlock()
		if pending != nil {
			if err := c.send(Frame{Op: opDeliver, Message: pending}); err != nil {
				slog.Warn("channel replay failed", "remote", r.RemoteAddr, "error", err)
			}
		}
	}
	defer func() {
		h.mu.Lock()
		delete(h.observers, c)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("channel connection closed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		switch f.Op {
		case opPublish:
			if f.Message == nil {
				continue
			}
			h.publish(*f.Message)
		case opAck:
			h.ack(f.ID)
		}
	}
}

func (h *Hub) publish(m Message) {
	h.mu.Lock()
	h.pending = &m
	targets := make([]*hubConn, 0, len(h.observers))
	for c := range h.observers {
		targets = append(targets, c)
	}
	h.mu.Unlock()
	for _, c := range targets {
		if err := c.send(Frame{Op: opDeliver, Message: &m}); err != nil {
			slog.Warn("channel deliver failed", "error", err)
		}
	}
}

func (h *Hub) ack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending != nil && h.pending.ID == id {
		h.pending = nil
	}
}
