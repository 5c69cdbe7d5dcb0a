package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
)

const streamQueryTimeout = 10 * time.Second

type streamRequest struct {
	Type  string       `json:"type"`
	Query models.Query `json:"query"`
	Title string       `json:"title"`
	Limit int          `json:"limit"`
}

// requireUpgrade rejects plain HTTP requests to the stream endpoint.
func requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// Stream answers "search" and "similar" messages over a websocket, one
// message per record followed by a "complete" message.
func (h *SearchHandler) Stream(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg streamRequest
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if err := h.stream(c, msg); err != nil {
			if errors.Is(err, models.ErrInvalidQuery) {
				h.sendError(c, err.Error())
				continue
			}
			logger.Error("Failed to stream results", zap.String("type", msg.Type), zap.Error(err))
			h.sendError(c, "Failed to process request")
		}
	}
}

func (h *SearchHandler) stream(c *websocket.Conn, msg streamRequest) error {
	ctx, cancel := context.WithTimeout(context.Background(), streamQueryTimeout)
	defer cancel()

	var (
		records []models.StoredRecord
		total   int
		cached  bool
	)
	switch msg.Type {
	case "search":
		res, err := h.engine.Search(ctx, msg.Query)
		if err != nil {
			return err
		}
		records, total, cached = res.Records, res.Total, res.Cached
	case "similar":
		res, err := h.engine.Similar(ctx, msg.Title, msg.Limit)
		if err != nil {
			return err
		}
		records, total = res, len(res)
	default:
		h.sendError(c, "unknown message type "+msg.Type)
		return nil
	}

	for i := range records {
		if err := c.WriteJSON(fiber.Map{"type": "record", "record": records[i]}); err != nil {
			return err
		}
	}
	return c.WriteJSON(fiber.Map{
		"type":   "complete",
		"count":  len(records),
		"total":  total,
		"cached": cached,
	})
}

func (h *SearchHandler) sendError(c *websocket.Conn, msg string) {
	if err := c.WriteJSON(fiber.Map{"type": "error", "error": msg}); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
