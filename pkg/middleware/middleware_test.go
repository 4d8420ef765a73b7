package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
)

func init() {
	logger.Init("test", "error", false)
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler})
}

func TestRequestID(t *testing.T) {
	app := newApp()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c))
	})

	t.Run("generates id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if len(body) == 0 {
			t.Error("request id should be generated")
		}
		if resp.Header.Get(HeaderRequestID) != string(body) {
			t.Errorf("header = %q, want %q", resp.Header.Get(HeaderRequestID), body)
		}
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if string(body) != "req-123" {
			t.Errorf("request id = %q, want req-123", body)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	app := newApp()
	app.Use(SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	defer resp.Body.Close()

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	}
	for k, want := range headers {
		if got := resp.Header.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestLogger(t *testing.T) {
	app := newApp()
	app.Use(RequestID())
	app.Use(Logger())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/boom", nil))
	resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	app := newApp()
	app.Use(RateLimiter(RateLimitConfig{Max: 2, Duration: time.Minute}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Errorf("request %d should succeed, got %d", i+1, resp.StatusCode)
		}
	}

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	defer resp.Body.Close()
	if resp.StatusCode != 429 {
		t.Fatalf("request 3 should be rate limited, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}

	var body response.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != "RATE_LIMITED" {
		t.Errorf("error = %+v, want RATE_LIMITED", body.Error)
	}
}

type failingCounter struct{}

func (failingCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestRateLimiterStoreUnavailable(t *testing.T) {
	app := newApp()
	app.Use(RateLimiter(RateLimitConfig{Max: 1, Store: failingCounter{}}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 3; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Errorf("request %d = %d, want 200", i+1, resp.StatusCode)
		}
	}
}

func TestMemoryCounterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryCounter()
	m.now = func() time.Time { return now }

	for want := int64(1); want <= 3; want++ {
		n, _ := m.Incr(context.Background(), "ip", time.Second)
		if n != want {
			t.Errorf("count = %d, want %d", n, want)
		}
	}

	now = now.Add(time.Second)
	n, _ := m.Incr(context.Background(), "ip", time.Second)
	if n != 1 {
		t.Errorf("count after window = %d, want 1", n)
	}
}

func TestAuth(t *testing.T) {
	jwtSecret := "test-secret"
	app := newApp()
	app.Use(Auth(jwtSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetMerchantID(c) + "|" + GetSubject(c))
	})

	sign := func(claims *Claims, secret string) string {
		s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		return s
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", 401},
		{"bad format", "InvalidFormat", 401},
		{"wrong scheme", "Basic abc", 401},
		{"invalid token", "Bearer invalid-token", 401},
		{"wrong secret", "Bearer " + sign(&Claims{MerchantID: "m-1"}, "other"), 401},
		{"expired", "Bearer " + sign(&Claims{
			MerchantID:       "m-1",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		}, jwtSecret), 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, _ := app.Test(req)
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	t.Run("valid token", func(t *testing.T) {
		token := sign(&Claims{
			MerchantID: "merchant-123",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops@example.com",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}, jwtSecret)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "merchant-123|ops@example.com" {
			t.Errorf("body = %q", body)
		}
	})
}

func TestCORS(t *testing.T) {
	handler := func(c *fiber.Ctx) error { return c.SendString("ok") }

	t.Run("default config", func(t *testing.T) {
		app := newApp()
		app.Use(CORS(CORSConfig{}))
		app.Get("/", handler)

		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
		defer resp.Body.Close()

		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Error("default CORS should allow all origins")
		}
	})

	t.Run("allowed origin", func(t *testing.T) {
		app := newApp()
		app.Use(CORS(CORSConfig{
			AllowOrigins:     []string{"https://shop.example.com"},
			AllowCredentials: true,
			MaxAge:           3600,
		}))
		app.Get("/", handler)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
			t.Errorf("origin = %q", got)
		}
		if resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("credentials should be allowed")
		}
		if got := resp.Header.Get("Access-Control-Max-Age"); got != "3600" {
			t.Errorf("max age = %q, want 3600", got)
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		app := newApp()
		app.Use(CORS(CORSConfig{AllowOrigins: []string{"https://shop.example.com"}}))
		app.Get("/", handler)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("origin = %q, want empty", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		app := newApp()
		app.Use(CORS(CORSConfig{}))
		app.Get("/", handler)

		resp, _ := app.Test(httptest.NewRequest("OPTIONS", "/", nil))
		defer resp.Body.Close()

		if resp.StatusCode != 204 {
			t.Errorf("preflight status = %d, want 204", resp.StatusCode)
		}
	})
}

func TestGettersWithoutLocals(t *testing.T) {
	app := newApp()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestID(c) + GetSubject(c) + GetMerchantID(c))
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "" {
		t.Errorf("body = %q, want empty", body)
	}
}
