// Package ws bridges the Event Bus to WebSocket observers: every event
// published on the bus is broadcast, JSON-encoded, to every connected
// client. Grounded on the teacher's internal/gateway/ws/hub.go
// client-registry + broadcast pattern, trimmed of its request/response
// frame protocol and session/task command handling — this gateway has no
// commands to accept, only events to relay.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/dohr-michael/ralph-tui/internal/events"
)

// clientSendBuffer bounds how many undelivered events a slow client may
// queue before being dropped instead of blocking the broadcaster.
const clientSendBuffer = 256

// Client is one connected WebSocket observer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub tracks connected clients and relays every bus event to all of them.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	unsubscribe func()
}

// NewHub creates a Hub subscribed to every event on bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		bus:     bus,
	}
	h.unsubscribe = bus.Subscribe(h.broadcastEvent)
	return h
}

// Close unsubscribes from the bus and disconnects all clients.
func (h *Hub) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) broadcastEvent(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("ws marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow to keep up; drop this event for it rather
			// than block the bus's publisher.
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws observer connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	slog.Info("ws observer disconnected", "clients", len(h.clients))
}

// ServeWS upgrades the connection and streams bus events to it until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, clientSendBuffer), hub: h}
	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

// readPump only needs to detect the client going away; observers send
// nothing the hub acts on.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "hub closed")
				return
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
