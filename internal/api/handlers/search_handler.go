package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/search"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
)

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
	}
}

// Search accepts a JSON query; an empty body lists everything with default paging.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	var q models.Query
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&q); err != nil {
			logger.Debug("Failed to parse search body", zap.Error(err))
			return badRequest(c, "Invalid request body")
		}
	}

	res, err := h.engine.Search(c.Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *SearchHandler) GetRecord(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "id must be a positive integer")
	}

	rec, err := h.engine.Get(c.Context(), int64(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

func (h *SearchHandler) Top(c *fiber.Ctx) error {
	records, err := h.engine.Top(c.Context(), c.QueryInt("hours", 24), c.QueryInt("limit", 10))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"records": records})
}

func (h *SearchHandler) Similar(c *fiber.Ctx) error {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		return badRequest(c, "title is required")
	}

	records, err := h.engine.Similar(c.Context(), title, c.QueryInt("limit", 5))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"records": records})
}

func (h *SearchHandler) Trending(c *fiber.Ctx) error {
	topics, err := h.engine.Trending(c.Context(), c.QueryInt("days", 7), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"topics": topics})
}

func (h *SearchHandler) ByTopic(c *fiber.Ctx) error {
	topic, err := url.PathUnescape(c.Params("topic"))
	if err != nil {
		return badRequest(c, "invalid topic")
	}

	records, err := h.engine.ByTopic(c.Context(), topic, c.QueryInt("limit", 10))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"topic": topic, "records": records})
}

func (h *SearchHandler) Suggestions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"suggestions": h.engine.Suggestions(c.Query("q"))})
}

func (h *SearchHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.engine.Stats(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *SearchHandler) Sources(c *fiber.Ctx) error {
	sources, err := h.engine.SourceStatistics(c.Context(), c.QueryInt("days", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"sources": sources})
}
