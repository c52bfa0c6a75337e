// Package ws streams live vehicle positions to dashboard clients.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"fleet-monitor/compliance/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	fleetID string
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request. Clients that name a fleet through
// X-Fleet-ID or ?fleet_id only receive that fleet's positions.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fleetID := r.Header.Get("X-Fleet-ID")
	if fleetID == "" {
		fleetID = r.URL.Query().Get("fleet_id")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("ws_upgrade", "Failed to upgrade WebSocket", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), fleetID: fleetID}
	h.register(c)
	logger.Info("ws_connected", "Live client connected", "fleet_id", fleetID)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues payload for every matching client. A client whose buffer
// is full misses the message.
func (h *Hub) Broadcast(fleetID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.fleetID != "" && c.fleetID != fleetID {
			continue
		}
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Consume forwards telemetry pub/sub messages until ctx is done or msgs is
// closed. Channels are named fleet:{fleet_id}:telemetry.
func (h *Hub) Consume(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				return
			}
			h.Broadcast(fleetFromChannel(m.Channel), []byte(m.Payload))
		case <-ctx.Done():
			return
		}
	}
}

func fleetFromChannel(ch string) string {
	parts := strings.Split(ch, ":")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
