package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/zipgallery/zipgallery/internal/model"
)

// TextHandler receives inbound text messages (commands, key submissions,
// descriptions) from a connected requester.
type TextHandler func(ctx context.Context, requesterID, text string)

// ─────────────────────────────────────────────
// Hub: manages all connected requesters
// ─────────────────────────────────────────────

// Hub maintains the set of active WebSocket clients, one per requester.
// A new connection for a requester replaces the old one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // requesterID → Client
	onText  TextHandler
}

// NewHub creates a new Hub. The text handler is attached afterwards via
// SetTextHandler because the batch service needs the hub to send with.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// SetTextHandler installs the handler for inbound text messages.
// Must be called before the first connection is accepted.
func (h *Hub) SetTextHandler(fn TextHandler) {
	h.mu.Lock()
	h.onText = fn
	h.mu.Unlock()
}

// Register adds a client to the hub, closing any previous connection
// held by the same requester.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.RequesterID]
	h.clients[c.RequesterID] = c
	h.mu.Unlock()

	if old != nil {
		log.Printf("[hub] requester %s reconnected, replacing old connection", c.RequesterID)
		old.conn.Close()
	}
	log.Printf("[hub] requester %s connected (total: %d)", c.RequesterID, h.ClientCount())
}

// Unregister removes a client from the hub. A client that has already
// been replaced by a newer connection is left alone.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.RequesterID] == c {
		delete(h.clients, c.RequesterID)
	}
	h.mu.Unlock()
	log.Printf("[hub] requester %s disconnected (total: %d)", c.RequesterID, h.ClientCount())
}

// ClientCount returns the number of connected requesters.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connected reports whether the requester currently holds a live connection.
func (h *Hub) Connected(requesterID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[requesterID]
	return ok
}

// SendTo delivers an envelope to the requester's connection, if any.
// Delivery is best-effort: a full send buffer or a missing connection
// drops the message and returns false.
func (h *Hub) SendTo(requesterID string, env model.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[hub] marshal %s envelope error: %v", env.Type, err)
		return false
	}

	h.mu.RLock()
	c, ok := h.clients[requesterID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		log.Printf("[hub] send buffer full for requester %s, dropping %s", requesterID, env.Type)
		return false
	}
}

// handleText routes an inbound text message to the installed handler.
func (h *Hub) handleText(ctx context.Context, c *Client, text string) {
	h.mu.RLock()
	fn := h.onText
	h.mu.RUnlock()

	if fn == nil {
		log.Printf("[hub] no text handler installed, dropping message from %s", c.RequesterID)
		return
	}
	fn(ctx, c.RequesterID, text)
}
