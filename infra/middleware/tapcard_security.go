package middleware

import (
	"strings"

	"tapcard_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}

// NoStore marks responses as uncacheable. Tap resolutions depend on link
// state and must never be served from a browser or proxy cache.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Next()
	}
}

var traversalPatterns = []string{"..", "..%2f", "..%5c", "%2e%2e", "..\\"}

// PreventPathTraversal blocks path traversal attempts
func PreventPathTraversal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := strings.ToLower(c.OriginalURL())
		for _, pattern := range traversalPatterns {
			if strings.Contains(path, pattern) {
				return apperr.BadRequest("invalid path")
			}
		}
		return c.Next()
	}
}

// ValidateUUID rejects requests whose named route parameter is not a UUID.
func ValidateUUID(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := uuid.Parse(c.Params(param)); err != nil {
			return apperr.InvalidInput(param, "must be a UUID")
		}
		return c.Next()
	}
}

// MaxBodySize limits request body size for public write endpoints.
func MaxBodySize(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxBytes {
			return apperr.New(apperr.CodeBadRequest, "request body too large", fiber.StatusRequestEntityTooLarge).
				WithDetail("max_size", maxBytes)
		}
		return c.Next()
	}
}
