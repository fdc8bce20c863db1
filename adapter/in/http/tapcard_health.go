package http

import (
	"context"
	"time"

	"tapcard_server/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checks  map[string]Check
	latency *metrics.Registry
	breaker func() string
	backlog func(ctx context.Context) (map[string]int64, error)
	pools   func() map[string]any
}

func NewHealthHandler(checks map[string]Check, latency *metrics.Registry) *HealthHandler {
	return &HealthHandler{checks: checks, latency: latency}
}

// WithBreaker reports the profile read breaker state on /ready.
func (h *HealthHandler) WithBreaker(state func() string) *HealthHandler {
	h.breaker = state
	return h
}

// WithBacklog reports outbox stream lengths on /ready.
func (h *HealthHandler) WithBacklog(backlog func(ctx context.Context) (map[string]int64, error)) *HealthHandler {
	h.backlog = backlog
	return h
}

// WithPools reports connection pool statistics on /ready.
func (h *HealthHandler) WithPools(stats func() map[string]any) *HealthHandler {
	h.pools = stats
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	allHealthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
			continue
		}
		checks[name] = "healthy"
	}

	body := fiber.Map{"checks": checks}
	if h.latency != nil {
		body["latency"] = h.latency.Snapshot()
	}
	if h.breaker != nil {
		body["profile_breaker"] = h.breaker()
	}
	if h.pools != nil {
		body["pools"] = h.pools()
	}
	if h.backlog != nil {
		if lens, err := h.backlog(ctx); err == nil {
			body["outbox_backlog"] = lens
		}
	}

	status, code := "ready", fiber.StatusOK
	if !allHealthy {
		status, code = "not ready", fiber.StatusServiceUnavailable
	}
	body["status"] = status
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return c.Status(code).JSON(body)
}
