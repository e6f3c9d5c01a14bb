package api

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"carsync/internal/models"
	"carsync/internal/router"
	"carsync/internal/validation"
)

// SyncHandler triggers background syncs on request.
type SyncHandler struct {
	router *router.Router
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(r *router.Router) *SyncHandler {
	return &SyncHandler{router: r}
}

// Handle runs the sync named by the request tag. Unknown tags succeed
// without doing anything.
func (h *SyncHandler) Handle(c fiber.Ctx) error {
	var req models.SyncRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !validation.ValidateTag(req.Tag) {
		return jsonError(c, fiber.StatusBadRequest, "invalid sync tag")
	}

	if err := h.router.Sync(c.Context(), req.Tag); err != nil {
		slog.Error("background sync failed", "tag", req.Tag, "error", err)
		return jsonError(c, fiber.StatusBadGateway, "sync failed")
	}

	return jsonSuccess(c, models.SuccessResponse{Success: true})
}
