package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 2 * time.Second
	sendBuffer   = 64
)

// Hub broadcasts events to connected websocket clients. Every client has its
// own queue drained by a writer goroutine, so Emit never waits on the network.
// A client whose queue is full or whose write fails is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*client
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	reason string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *Hub) Add(conn *websocket.Conn) {
	cl := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[conn] = cl
	h.mu.Unlock()

	go h.writeLoop(cl)
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	h.dropLocked(conn, "")
	h.mu.Unlock()

	_ = conn.Close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

func (h *Hub) Emit(_ context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn, cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			h.dropLocked(conn, "client too slow")
		}
	}
}

// Close flushes pending events and disconnects every client. Clients that
// do not drain within the write timeout are cut off.
func (h *Hub) Close() {
	h.mu.Lock()
	pending := make([]*client, 0, len(h.clients))
	for conn, cl := range h.clients {
		pending = append(pending, cl)
		h.dropLocked(conn, "run finished")
	}
	h.mu.Unlock()

	timer := time.NewTimer(writeTimeout)
	defer timer.Stop()

	for i, cl := range pending {
		select {
		case <-cl.done:
		case <-timer.C:
			for _, rest := range pending[i:] {
				_ = rest.conn.Close()
			}

			for _, rest := range pending[i:] {
				<-rest.done
			}

			return
		}
	}
}

// dropLocked unregisters conn and closes its queue. h.mu must be held.
func (h *Hub) dropLocked(conn *websocket.Conn, reason string) {
	cl, ok := h.clients[conn]
	if !ok {
		return
	}

	delete(h.clients, conn)
	cl.reason = reason
	close(cl.send)
}

func (h *Hub) writeLoop(cl *client) {
	defer close(cl.done)

	for payload := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.mu.Lock()
			h.dropLocked(cl.conn, "")
			h.mu.Unlock()

			_ = cl.conn.Close()

			return
		}
	}

	h.mu.Lock()
	reason := cl.reason
	h.mu.Unlock()

	if reason != "" {
		_ = cl.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(writeTimeout))
	}

	_ = cl.conn.Close()
}
