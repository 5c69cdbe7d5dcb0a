package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
)

// respondError maps domain errors onto HTTP statuses. Storage and other
// unexpected failures are logged and reported without detail.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidQuery), errors.Is(err, models.ErrMissingURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
