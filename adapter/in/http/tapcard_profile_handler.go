package http

import (
	"tapcard_server/core/port/in"
	"tapcard_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ProfileHandler serves the owner's profile views and username claims.
type ProfileHandler struct {
	svc in.ProfileService
}

func NewProfileHandler(svc in.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Register(router fiber.Router) {
	profiles := router.Group("/profiles")
	profiles.Get("/", h.ListProfiles)
	profiles.Put("/:id/username", h.ClaimUsername)
	profiles.Get("/:id/stats", h.Stats)
}

func (h *ProfileHandler) ListProfiles(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	profiles, err := h.svc.ListMine(c.UserContext(), ownerRef)
	if err != nil {
		return err
	}
	return response.OK(c, profiles)
}

// ClaimUsername sets the profile's username. The body carries the profile
// version the client last read.
func (h *ProfileHandler) ClaimUsername(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req in.ClaimUsernameRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	req.ProfileID = id

	profile, err := h.svc.ClaimUsername(c.UserContext(), ownerRef, &req)
	if err != nil {
		return err
	}
	return response.OK(c, profile)
}

// Stats returns daily views and clicks, ?days= defaults to 30.
func (h *ProfileHandler) Stats(c *fiber.Ctx) error {
	ownerRef, err := GetUserID(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	stats, err := h.svc.Stats(c.UserContext(), ownerRef, id, c.QueryInt("days", 30))
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}
