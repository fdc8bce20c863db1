package http

import (
	"net/url"

	"tapcard_server/core/domain"
	"tapcard_server/core/port/in"
	"tapcard_server/infra/middleware"
	"tapcard_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// visitHeader carries a per-page-load id minted by the client.
const visitHeader = "X-Visit-ID"

const maxVisitIDLen = 64

// ResolveHandler serves tapped links.
type ResolveHandler struct {
	svc in.ResolveService
}

func NewResolveHandler(svc in.ResolveService) *ResolveHandler {
	return &ResolveHandler{svc: svc}
}

// Register mounts the JSON resolve endpoint under router. guards run first.
func (h *ResolveHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/resolve/:token", chain(guards, h.ResolveJSON)...)
}

// RegisterTap mounts the top-level /:token route. Register it after every
// other top-level route so it does not shadow them.
func (h *ResolveHandler) RegisterTap(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/:token", chain(guards, h.Tap)...)
}

// Tap answers a card or handle link: a redirect becomes a 302, every other
// outcome is rendered in-page as JSON with 200.
func (h *ResolveHandler) Tap(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}
	if res.Outcome == domain.OutcomeRedirect {
		return c.Redirect(res.Location, fiber.StatusFound)
	}
	return response.OK(c, res)
}

// ResolveJSON returns the resolution for every outcome, including redirects.
func (h *ResolveHandler) ResolveJSON(c *fiber.Ctx) error {
	res, err := h.resolve(c)
	if err != nil {
		return err
	}
	return response.OK(c, res)
}

func (h *ResolveHandler) resolve(c *fiber.Ctx) (*domain.Resolution, error) {
	token, err := url.PathUnescape(c.Params("token"))
	if err != nil {
		token = c.Params("token")
	}
	viewer, _ := middleware.GetUserID(c)

	return h.svc.Resolve(c.UserContext(), &in.ResolveRequest{
		Token:   token,
		VisitID: visitID(c),
		Viewer:  viewer,
	})
}

// visitID reads the page-load id. Without one the request is its own visit,
// so a reload logs a new view.
func visitID(c *fiber.Ctx) string {
	if v := c.Get(visitHeader); len(v) <= maxVisitIDLen {
		return v
	}
	return ""
}
