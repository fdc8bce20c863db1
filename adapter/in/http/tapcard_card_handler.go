package http

import (
	"tapcard_server/core/port/in"
	"tapcard_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CardHandler serves the owner's card operations.
type CardHandler struct {
	svc in.CardService
}

func NewCardHandler(svc in.CardService) *CardHandler {
	return &CardHandler{svc: svc}
}

func (h *CardHandler) Register(router fiber.Router) {
	cards := router.Group("/cards")
	cards.Get("/", h.ListCards)
	cards.Post("/:uid/activate", h.Activate)
	cards.Delete("/:uid/link", h.Delink)
}

// Activate links an unactivated card to the caller's primary profile.
func (h *CardHandler) Activate(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Activate(c.UserContext(), ownerRef, c.Params("uid"))
	if err != nil {
		return err
	}
	return response.OK(c, res)
}

func (h *CardHandler) Delink(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	card, err := h.svc.Delink(c.UserContext(), ownerRef, c.Params("uid"))
	if err != nil {
		return err
	}
	return response.OK(c, card)
}

func (h *CardHandler) ListCards(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	cards, err := h.svc.ListMine(c.UserContext(), ownerRef)
	if err != nil {
		return err
	}
	return response.OK(c, cards)
}
