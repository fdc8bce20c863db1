package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"tapcard_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// Limiter admits or rejects a keyed request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
	Limit() int
}

// KeyByIP keys by client address.
func KeyByIP(c *fiber.Ctx) string { return "ip:" + c.IP() }

// KeyByUserOrIP keys authenticated callers by owner and everyone else by address.
func KeyByUserOrIP(c *fiber.Ctx) string {
	if ref, ok := GetUserID(c); ok {
		return "user:" + ref
	}
	return KeyByIP(c)
}

// RateLimit rejects requests over the limiter's budget with 429 and Retry-After.
func RateLimit(l Limiter, key func(*fiber.Ctx) string) fiber.Handler {
	if key == nil {
		key = KeyByIP
	}
	return func(c *fiber.Ctx) error {
		if l == nil {
			return c.Next()
		}
		ok, wait := l.Allow(c.UserContext(), key(c))
		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
		if !ok {
			retry := int(math.Ceil(wait.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return apperr.New(apperr.CodeRateLimited, "too many requests", fiber.StatusTooManyRequests).
				WithDetail("retry_after", retry)
		}
		return c.Next()
	}
}
