package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"carsync/internal/cache"
	"carsync/internal/clients"
	"carsync/internal/live"
	"carsync/internal/models"
	"carsync/internal/router"
	"carsync/internal/validation"
)

// LiveSession exposes the live channel state.
type LiveSession interface {
	Snapshot() live.Snapshot
}

// StatusHandler reports worker, store, client and live channel state.
type StatusHandler struct {
	router   *router.Router
	registry *cache.Registry
	hub      *clients.Hub
	live     LiveSession
}

// NewStatusHandler creates a status handler. session may be nil when the
// live channel is disabled.
func NewStatusHandler(r *router.Router, registry *cache.Registry, hub *clients.Hub, session LiveSession) *StatusHandler {
	return &StatusHandler{router: r, registry: registry, hub: hub, live: session}
}

// Status returns a snapshot of the worker.
func (h *StatusHandler) Status(c fiber.Ctx) error {
	names, err := h.registry.Names(c.Context())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "failed to list cache stores")
	}

	resp := models.StatusResponse{
		Worker:  h.router.State().String(),
		Version: h.router.Version(),
		Stores:  names,
		Clients: h.hub.Len(),
	}

	if h.live != nil {
		snap := h.live.Snapshot()
		ls := &models.LiveStatusResponse{
			State:           snap.State.String(),
			Mode:            string(snap.Mode),
			RealTimeEnabled: snap.RealTimeEnabled,
		}
		if !snap.LastUpdate.IsZero() {
			t := snap.LastUpdate
			ls.LastUpdate = &t
		}
		resp.Live = ls
	}

	return jsonSuccess(c, resp)
}

// Navigate records the page an attached client now shows, so notification
// clicks can focus it.
func (h *StatusHandler) Navigate(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid client id")
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if valid, msg := validation.ValidateTargetPath(body.URL); !valid {
		return jsonError(c, fiber.StatusBadRequest, msg)
	}

	if !h.hub.Navigate(id, body.URL) {
		return jsonError(c, fiber.StatusNotFound, "client not found")
	}
	return jsonSuccess(c, models.SuccessResponse{Success: true})
}
