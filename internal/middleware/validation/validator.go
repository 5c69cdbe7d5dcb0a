package validation

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQueryLength      int
	MaxDocumentSize     int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects malformed write and search requests before they reach
// the handlers: content type, record URL shape, body size and query text.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 1000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		switch {
		case strings.HasSuffix(c.Path(), "/search"):
			if len(c.Body()) == 0 {
				return c.Next()
			}
			var req struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if len(req.Text) > cfg.MaxQueryLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Query text exceeds maximum length",
				})
			}
			if xssPattern.MatchString(req.Text) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("text", req.Text),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid query content",
				})
			}

		case strings.HasSuffix(c.Path(), "/records"):
			var req struct {
				URL  string `json:"url"`
				Body string `json:"body"`
			}
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}
			if strings.TrimSpace(req.URL) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "URL is required",
				})
			}
			if !isValidURL(req.URL) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid URL format",
				})
			}
			if len(req.Body) > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document body exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func isValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
