package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tapcard_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

func TestErrorHandlerEnvelope(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RequestID())
	app.Get("/app", func(c *fiber.Ctx) error { return apperr.ActivationConflict("AB123") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/slow", func(c *fiber.Ctx) error { return fmt.Errorf("list cards: %w", context.DeadlineExceeded) })

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/app", 409, apperr.CodeActivationConflict},
		{"/plain", 500, apperr.CodeInternalError},
		{"/slow", 504, apperr.CodeTimeout},
		{"/missing", 404, apperr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			if err != nil {
				t.Fatal(err)
			}
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body %s does not contain %s", body, tt.contains)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
		})
	}

	t.Run("recover", func(t *testing.T) {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
		app.Use(Recover())
		app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })
		resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 500 {
			t.Errorf("status = %d, want 500", resp.StatusCode)
		}
	})
}

type fakeLimiter struct {
	mu    sync.Mutex
	limit int
	seen  map[string]int
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[key]++
	if f.seen[key] > f.limit {
		return false, 1500 * time.Millisecond
	}
	return true, 0
}

func (f *fakeLimiter) Limit() int { return f.limit }

func TestRateLimit(t *testing.T) {
	lim := &fakeLimiter{limit: 2, seen: map[string]int{}}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/", RateLimit(lim, KeyByUserOrIP), func(c *fiber.Ctx) error { return c.SendString("ok") })

	codes := []int{}
	var last string
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		codes = append(codes, resp.StatusCode)
		last = resp.Header.Get("Retry-After")
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
	if last != "2" {
		t.Errorf("Retry-After = %q, want 2", last)
	}
}

func TestPreventPathTraversal(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(PreventPathTraversal())
	app.Get("/*", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for path, want := range map[string]int{
		"/AB123":           200,
		"/a/../etc/passwd": 400,
		"/a/%2e%2e/passwd": 400,
	} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestValidateUUID(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/p/:id", ValidateUUID("id"), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, _ := app.Test(httptest.NewRequest("GET", "/p/not-a-uuid", nil))
	if resp.StatusCode != 400 {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/p/8f14e45f-ceea-467a-9575-2a1b7c3f6b10", nil))
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

type memorySink struct {
	mu     sync.Mutex
	events []*AuditEvent
}

func (m *memorySink) Append(_ context.Context, e *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func TestAuditor(t *testing.T) {
	sink := &memorySink{}
	auditor := NewAuditor(sink, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(auditor.Middleware())
	app.Post("/api/v1/cards/:uid/activate", func(c *fiber.Ctx) error {
		return apperr.ActivationConflict(c.Params("uid"))
	})
	app.Get("/api/v1/cards", func(c *fiber.Ctx) error { return c.SendString("[]") })

	if _, err := app.Test(httptest.NewRequest("POST", "/api/v1/cards/AB123/activate", nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := app.Test(httptest.NewRequest("GET", "/api/v1/cards", nil)); err != nil {
		t.Fatal(err)
	}
	auditor.Flush()

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	e := sink.events[0]
	if e.Action != "card_activate" || e.Success || e.StatusCode != 409 {
		t.Errorf("event = %+v", e)
	}
}

func TestAuditorLongestPrefix(t *testing.T) {
	a := NewAuditor(nil, map[string]string{
		"POST:/admin":       "admin",
		"POST:/admin/cards": "cards_provision",
	})
	if got := a.actionFor("POST", "/admin/cards/provision"); got != "cards_provision" {
		t.Errorf("action = %q", got)
	}
	if got := a.actionFor("GET", "/admin/cards"); got != "" {
		t.Errorf("action = %q, want none", got)
	}
}
