package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxQueryLength: 20, MaxDocumentSize: 10}))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/api/v1/search", ok)
	app.Post("/api/v1/records", ok)
	app.Post("/api/v1/records/batch", ok)
	app.Get("/api/v1/records/top", ok)
	return app
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"get passes", "GET", "/api/v1/records/top", "", "", fiber.StatusOK},
		{"empty search body", "POST", "/api/v1/search", "application/json", "", fiber.StatusOK},
		{"search ok", "POST", "/api/v1/search", "application/json", `{"text":"select update"}`, fiber.StatusOK},
		{"search too long", "POST", "/api/v1/search", "application/json", `{"text":"` + strings.Repeat("x", 21) + `"}`, fiber.StatusBadRequest},
		{"search xss", "POST", "/api/v1/search", "application/json", `{"text":"<script>"}`, fiber.StatusBadRequest},
		{"search bad json", "POST", "/api/v1/search", "application/json", `{`, fiber.StatusBadRequest},
		{"wrong content type", "POST", "/api/v1/search", "text/plain", `hi`, fiber.StatusUnsupportedMediaType},
		{"record ok", "POST", "/api/v1/records", "application/json", `{"url":"https://a.io/x","body":"short"}`, fiber.StatusOK},
		{"record missing url", "POST", "/api/v1/records", "application/json", `{"title":"x"}`, fiber.StatusBadRequest},
		{"record bad scheme", "POST", "/api/v1/records", "application/json", `{"url":"ftp://a.io/x"}`, fiber.StatusBadRequest},
		{"record too large", "POST", "/api/v1/records", "application/json", `{"url":"https://a.io/x","body":"` + strings.Repeat("x", 11) + `"}`, fiber.StatusRequestEntityTooLarge},
		{"batch untouched", "POST", "/api/v1/records/batch", "application/json", `[]`, fiber.StatusOK},
	}

	app := newApp()
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: request failed: %v", tt.name, err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}
