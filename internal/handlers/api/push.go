package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"

	"carsync/internal/models"
	"carsync/internal/router"
)

// PushHandler handles server pushes and notification clicks.
type PushHandler struct {
	router *router.Router
}

// NewPushHandler creates a push handler.
func NewPushHandler(r *router.Router) *PushHandler {
	return &PushHandler{router: r}
}

// Push shows a notification on every attached page. An empty body is
// accepted and ignored.
func (h *PushHandler) Push(c fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return jsonSuccess(c, fiber.Map{"delivered": 0})
	}

	var payload models.PushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid push payload")
	}

	n, delivered := h.router.Push(&payload)
	return jsonSuccess(c, fiber.Map{
		"notification": n,
		"delivered":    delivered,
	})
}

// Click resolves a notification click to a focus or open-window reply.
func (h *PushHandler) Click(c fiber.Ctx) error {
	var click models.NotificationClick
	if err := json.Unmarshal(c.Body(), &click); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.router.NotificationClick(click)
	if err != nil {
		if errors.Is(err, router.ErrInvalidTarget) {
			return jsonError(c, fiber.StatusBadRequest, err.Error())
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to handle click")
	}

	return jsonSuccess(c, resp)
}
