package http

import (
	"tapcard_server/core/port/in"
	"tapcard_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type recordEventRequest struct {
	Type   string `json:"type" validate:"required,oneof=click"`
	Target string `json:"target" validate:"required,max=64"`
}

// EventHandler records visitor interactions on a profile page.
type EventHandler struct {
	svc in.AnalyticsService
}

func NewEventHandler(svc in.AnalyticsService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) RegisterPublic(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/profiles/:id/events", chain(guards, h.Record)...)
}

// Record accepts a click; persistence happens off the request path.
func (h *EventHandler) Record(c *fiber.Ctx) error {
	profileID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req recordEventRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.svc.RecordClick(c.UserContext(), profileID, req.Target, visitID(c)); err != nil {
		return err
	}
	return response.Accepted(c)
}
