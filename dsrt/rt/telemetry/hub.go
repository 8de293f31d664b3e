// Package telemetry streams frame statistics to websocket clients.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/gorilla/websocket"
)

const (
	// sendBuffer is how many broadcasts a client may lag behind before it
	// is dropped.
	sendBuffer = 16
	writeWait  = 5 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub fans every broadcast out to the connected clients. Each client has its
// own writer goroutine, so Broadcast never waits on the network.
type Hub struct {
	upgrader websocket.Upgrader
	log      core.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	last    any

	// OnMessage receives every JSON object a client sends. It runs on the
	// connection goroutine.
	OnMessage func(msg map[string]any)
}

func NewHub(log core.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     core.OrNop(log),
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("telemetry: upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan any, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	defer h.drop(c)
	h.log.Debugf("telemetry: client %s connected", conn.RemoteAddr())

	go h.writeLoop(c)

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			h.log.Debugf("telemetry: client %s gone: %v", conn.RemoteAddr(), err)
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case v := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(v); err != nil {
				h.log.Debugf("telemetry: write to %s: %v", c.conn.RemoteAddr(), err)
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast queues v for every client without blocking. Clients whose queue
// is full are dropped. v is also kept for clients that connect later.
func (h *Hub) Broadcast(v any) {
	var slow []*client
	h.mu.Lock()
	h.last = v
	for c := range h.clients {
		select {
		case c.send <- v:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.log.Warnf("telemetry: dropping slow client %s", c.conn.RemoteAddr())
		h.drop(c)
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
