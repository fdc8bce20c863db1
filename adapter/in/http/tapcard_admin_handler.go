package http

import (
	"tapcard_server/core/port/in"
	"tapcard_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves operator endpoints behind the admin key.
type AdminHandler struct {
	provisioning in.ProvisioningService
}

func NewAdminHandler(provisioning in.ProvisioningService) *AdminHandler {
	return &AdminHandler{provisioning: provisioning}
}

func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/cards/provision", h.Provision)
}

// Provision mints a batch of unactivated cards.
func (h *AdminHandler) Provision(c *fiber.Ctx) error {
	var req in.ProvisionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.provisioning.Provision(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return response.Created(c, res)
}
