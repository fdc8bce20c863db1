package http

import (
	"tapcard_server/core/port/in"
	"tapcard_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ExchangeHandler accepts visitor contact details and lists them for owners.
type ExchangeHandler struct {
	svc in.ContactExchangeService
}

func NewExchangeHandler(svc in.ContactExchangeService) *ExchangeHandler {
	return &ExchangeHandler{svc: svc}
}

// RegisterPublic mounts the visitor submission route. guards run first.
func (h *ExchangeHandler) RegisterPublic(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/profiles/:id/exchange", chain(guards, h.Submit)...)
}

func (h *ExchangeHandler) Register(router fiber.Router) {
	router.Get("/profiles/:id/exchanges", h.List)
	router.Delete("/exchanges/:id", h.Delete)
}

func (h *ExchangeHandler) Submit(c *fiber.Ctx) error {
	profileID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req in.SubmitExchangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ex, err := h.svc.Submit(c.UserContext(), profileID, &req)
	if err != nil {
		return err
	}
	return response.Created(c, fiber.Map{"id": ex.ID, "created_at": ex.CreatedAt})
}

func (h *ExchangeHandler) List(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	profileID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	page := response.GetPagination(c, 50, 200)
	items, total, err := h.svc.List(c.UserContext(), ownerRef, profileID, page.Limit, page.Offset)
	if err != nil {
		return err
	}
	return response.OKWithMeta(c, items, response.NewMeta(total, page))
}

func (h *ExchangeHandler) Delete(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.UserContext(), ownerRef, id); err != nil {
		return err
	}
	return response.NoContent(c)
}
