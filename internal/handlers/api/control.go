// Package api exposes the worker's page-facing control surface as JSON
// endpoints under /_carsync.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"carsync/internal/models"
	"carsync/internal/router"
)

// ControlHandler handles page-to-worker control messages.
type ControlHandler struct {
	router *router.Router
}

// NewControlHandler creates a control handler.
func NewControlHandler(r *router.Router) *ControlHandler {
	return &ControlHandler{router: r}
}

// Handle applies one control message and returns its reply.
func (h *ControlHandler) Handle(c fiber.Ctx) error {
	var msg models.ControlMessage
	if err := json.Unmarshal(c.Body(), &msg); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid control message")
	}

	reply, err := h.router.Control(c.Context(), msg)
	if err != nil {
		if errors.Is(err, router.ErrUnknownControl) {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		slog.Error("control message failed", "type", msg.Type, "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "control message failed")
	}

	return jsonSuccess(c, reply)
}
