// Package clients tracks the dashboard pages attached to the worker and fans
// messages out to them.
package clients

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"carsync/internal/models"
)

// Client is one attached page.
type Client struct {
	ID       uuid.UUID
	Messages <-chan models.ClientMessage

	url  string
	send chan models.ClientMessage
}

// URL returns the page URL the client last reported.
func (c *Client) URL() string {
	return c.url
}

// Hub is the registry of attached pages. Delivery is best effort: a page
// whose buffer is full misses the message instead of stalling the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	order   []uuid.UUID
	buffer  int
}

// NewHub creates a hub with the given per-client buffer size.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		buffer:  buffer,
	}
}

// Register attaches a page showing url.
func (h *Hub) Register(url string) *Client {
	ch := make(chan models.ClientMessage, h.buffer)
	c := &Client{
		ID:       uuid.New(),
		Messages: ch,
		url:      url,
		send:     ch,
	}

	h.mu.Lock()
	h.clients[c.ID] = c
	h.order = append(h.order, c.ID)
	h.mu.Unlock()
	return c
}

// Unregister detaches a page and closes its message channel.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	close(c.send)
}

// Navigate records that a page now shows url.
func (h *Hub) Navigate(id uuid.UUID, url string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if ok {
		c.url = url
	}
	return ok
}

// Broadcast delivers msg to every attached page and returns how many
// accepted it.
func (h *Hub) Broadcast(msg models.ClientMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, id := range h.order {
		if h.deliver(h.clients[id], msg) {
			delivered++
		}
	}
	return delivered
}

// Send delivers msg to a single page.
func (h *Hub) Send(id uuid.UUID, msg models.ClientMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	return h.deliver(c, msg)
}

// FindByURL returns the first attached page showing url.
func (h *Hub) FindByURL(url string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range h.order {
		if c := h.clients[id]; c.url == url {
			return c
		}
	}
	return nil
}

// Focus asks the first page showing url to take focus. It reports false when
// no page shows url.
func (h *Hub) Focus(url string, timestamp int64) bool {
	c := h.FindByURL(url)
	if c == nil {
		return false
	}
	return h.Send(c.ID, models.ClientMessage{
		Type:      models.ClientFocus,
		URL:       url,
		Timestamp: timestamp,
	})
}

// Len returns the number of attached pages.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver performs a non-blocking send. Callers hold at least the read lock,
// which keeps Unregister from closing the channel underneath us.
func (h *Hub) deliver(c *Client, msg models.ClientMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		slog.Warn("client buffer full, dropping message", "client", c.ID, "type", msg.Type)
		return false
	}
}
