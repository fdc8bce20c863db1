package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newAuthApp(h fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/", h, func(c *fiber.Ctx) error {
		ref, _ := GetUserID(c)
		return c.SendString(ref)
	})
	return app
}

func TestJWTAuth(t *testing.T) {
	now := time.Now()
	valid := signHS256(t, jwt.MapClaims{"sub": "owner-1", "exp": now.Add(time.Hour).Unix(), "iat": now.Unix()})
	expired := signHS256(t, jwt.MapClaims{"sub": "owner-1", "exp": now.Add(-time.Hour).Unix()})
	noSub := signHS256(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	future := signHS256(t, jwt.MapClaims{"sub": "owner-1", "iat": now.Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + valid, 200},
		{"missing", "", 401},
		{"wrong scheme", "Basic " + valid, 401},
		{"expired", "Bearer " + expired, 401},
		{"no subject", "Bearer " + noSub, 401},
		{"issued in the future", "Bearer " + future, 401},
		{"garbage", "Bearer abc.def.ghi", 401},
	}

	app := newAuthApp(JWTAuth(testSecret))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestOptionalJWTAuth(t *testing.T) {
	app := newAuthApp(OptionalJWTAuth(testSecret))
	valid := signHS256(t, jwt.MapClaims{"sub": "owner-1", "exp": time.Now().Add(time.Hour).Unix()})

	for _, header := range []string{"", "Bearer nope", "Bearer " + valid} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 200 {
			t.Errorf("header %q: status = %d, want 200", header, resp.StatusCode)
		}
	}
}

func TestAdminKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{"match", "k3y", "k3y", 200},
		{"mismatch", "k3y", "nope", 401},
		{"missing", "k3y", "", 401},
		{"disabled", "", "", 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAuthApp(AdminKey(tt.configured))
			req := httptest.NewRequest("GET", "/", nil)
			if tt.sent != "" {
				req.Header.Set("X-Admin-Key", tt.sent)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
