// Package hub implements the broadcast fan-out that pushes live captured
// traffic to connected dashboard clients over WebSocket. One goroutine
// owns the subscriber set; every mutation happens through its channels,
// the same shape as the live-activity-feed hub this was generalized from.
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agentprobe/agentprobe/internal/model"
)

// Event is the envelope broadcast to every subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// sseEventEnvelope is the tagged wrapper used by BroadcastSSEEvent.
type sseEventEnvelope struct {
	RequestID string         `json:"request_id"`
	Event     model.SSEEvent `json:"event"`
}

// Hub manages the set of subscribed connections and fans out broadcast
// messages. Architecture: a single goroutine (run) owns the connections
// set; all registration, unregistration, and delivery happen through its
// channels so no mutex is needed around the subscriber map itself.
type Hub struct {
	connections map[*conn]bool

	broadcastCh  chan []byte
	registerCh   chan *conn
	unregisterCh chan *conn
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
	mu   sync.Mutex
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// New creates a Hub. Call Run in a background goroutine before serving
// any connections.
func New() *Hub {
	return &Hub{
		connections:  make(map[*conn]bool),
		broadcastCh:  make(chan []byte, 256),
		registerCh:   make(chan *conn),
		unregisterCh: make(chan *conn),
	}
}

// Run is the hub's event loop. Blocks until the owning process exits.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerCh:
			h.connections[c] = true
			slog.Debug("hub subscriber connected", "total", len(h.connections))

		case c := <-h.unregisterCh:
			if _, ok := h.connections[c]; ok {
				delete(h.connections, c)
				close(c.send)
				slog.Debug("hub subscriber disconnected", "total", len(h.connections))
			}

		case msg := <-h.broadcastCh:
			for c := range h.connections {
				select {
				case c.send <- msg:
				default:
					// Subscriber's buffer is full — drop it rather than
					// block the whole broadcast on one slow client.
					delete(h.connections, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast serializes msg once and attempts best-effort delivery to
// every connected subscriber. Non-blocking: if the hub's internal queue
// is full, the message is dropped.
func (h *Hub) Broadcast(msg Event) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("hub: failed to marshal broadcast message", "error", err)
		return
	}
	select {
	case h.broadcastCh <- payload:
	default:
		slog.Warn("hub: broadcast queue full, dropping message", "type", msg.Type)
	}
}

// BroadcastNewRequest announces a freshly-captured request.
func (h *Hub) BroadcastNewRequest(summary model.Summary) {
	h.Broadcast(Event{Type: "new_request", Data: summary})
}

// BroadcastRequestComplete announces that a request's response finished.
func (h *Hub) BroadcastRequestComplete(summary model.Summary) {
	h.Broadcast(Event{Type: "request_complete", Data: summary})
}

// BroadcastSSEEvent wraps one decoded stream event in a tagged envelope
// so subscribers can attribute it to a request without polling.
func (h *Hub) BroadcastSSEEvent(requestID string, event model.SSEEvent) {
	h.Broadcast(Event{Type: "sse_event", Data: sseEventEnvelope{RequestID: requestID, Event: event}})
}

// ServeWS upgrades an HTTP connection to WebSocket and registers it with
// the hub as a subscriber.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("hub: websocket upgrade failed", "error", err)
		return
	}

	c := &conn{
		ws:   ws,
		send: make(chan []byte, 64),
	}

	h.registerCh <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.mu.Lock()
		err := c.ws.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// readPump only exists to notice disconnection; the feed is one-directional.
func (c *conn) readPump(h *Hub) {
	defer func() {
		h.unregisterCh <- c
		c.ws.Close()
	}()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
