package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub fans final order responses out to connected WebSocket clients.
// Slow clients are dropped rather than allowed to stall the fan-out.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]bool
	seq     int64
}

// NewHub creates an empty order-event hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]bool),
	}
}

// Publish marshals an order event into an envelope and sends it to every
// connected client. Clients with a full send queue miss the event.
func (h *Hub) Publish(eventType string, payload any) {
	h.mu.Lock()
	h.seq++
	envelope, err := json.Marshal(map[string]any{
		"type": eventType,
		"seq":  h.seq,
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
		"data": payload,
	})
	if err != nil {
		h.mu.Unlock()
		log.Printf("[ws-hub] envelope marshal failed: %v", err)
		return
	}
	for client := range h.clients {
		select {
		case client.send <- envelope:
		default:
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws-hub] upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[ws-hub] client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Coalesce queued events into one frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
		log.Println("[ws-hub] client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// The stream is one-way; inbound frames only reset the read deadline.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
