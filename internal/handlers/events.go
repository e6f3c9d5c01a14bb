package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"carsync/internal/clients"
	"carsync/internal/models"
	"carsync/internal/validation"
)

// EventsHandler streams worker-to-page messages as server-sent events.
type EventsHandler struct {
	hub       *clients.Hub
	done      <-chan struct{}
	keepalive time.Duration
}

// NewEventsHandler creates an events handler. Open streams end when ctx is
// cancelled.
func NewEventsHandler(ctx context.Context, hub *clients.Hub, keepalive time.Duration) *EventsHandler {
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &EventsHandler{hub: hub, done: ctx.Done(), keepalive: keepalive}
}

// Stream attaches the calling page. The page reports the URL it shows in
// the url query parameter.
func (h *EventsHandler) Stream(c fiber.Ctx) error {
	pageURL := c.Query("url", "/")
	if valid, msg := validation.ValidateTargetPath(pageURL); !valid {
		return fiber.NewError(fiber.StatusBadRequest, msg)
	}

	client := h.hub.Register(pageURL)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unregister(client.ID)

		fmt.Fprintf(w, "event: hello\ndata: {\"client\":%q}\n\n", client.ID.String())
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(h.keepalive)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case msg, ok := <-client.Messages:
				if !ok {
					return
				}
				if err := writeEvent(w, msg); err != nil {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
}

// writeEvent writes msg as one data event and flushes it. A flush error
// means the page went away.
func writeEvent(w *bufio.Writer, msg models.ClientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
