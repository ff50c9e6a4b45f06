package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Event is one activity notification pushed to websocket subscribers.
type Event struct {
	// Type is the event kind: "context.assembled", "insight.generated",
	// "cache.invalidated", "memory.appended".
	Type string `json:"type"`

	// OwnerID names the user the activity belongs to.
	OwnerID string `json:"owner_id"`

	// Detail carries event-specific fields.
	Detail map[string]any `json:"detail,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// EventHub manages websocket connections and broadcasts engine activity.
type EventHub struct {
	clients    map[*eventClient]bool
	broadcast  chan Event
	register   chan *eventClient
	unregister chan *eventClient
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
}

type eventClient struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

// NewEventHub creates an event hub. Call Run to start its loop.
func NewEventHub() *EventHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventHub{
		clients:    make(map[*eventClient]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *eventClient),
		unregister: make(chan *eventClient),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("events: client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("events: client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("events: marshal failed: %v", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer; drop it rather than block the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// Stop shuts down the hub and closes every client connection.
func (h *EventHub) Stop() {
	h.cancel()
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		_ = client.conn.Close(websocket.StatusNormalClosure, "")
	}
	h.clients = make(map[*eventClient]bool)
	h.mu.Unlock()
}

// Broadcast queues an event for delivery. Never blocks; when the queue is
// full the event is dropped.
func (h *EventHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("events: broadcast queue full, dropping %s", event.Type)
	}
}

// ServeHTTP upgrades the request to a websocket and streams events.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("events: websocket upgrade failed: %v", err)
		return
	}

	client := &eventClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

// unregisterClient hands the client back to the hub's loop. Once the hub has
// stopped the loop no longer drains the channel, so give up instead of
// blocking the caller forever.
func (h *EventHub) unregisterClient(c *eventClient) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// writePump sends queued events to the connection.
func (c *eventClient) writePump() {
	defer func() { _ = c.conn.Close(websocket.StatusNormalClosure, "") }()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			return
		}
	}
}

// readPump drains client messages to detect disconnection.
func (c *eventClient) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}
