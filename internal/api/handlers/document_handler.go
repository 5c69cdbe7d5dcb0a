package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/classifier"
	"github.com/ainews/backend/internal/ingestion"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
)

const maxBatchDocuments = 500

type DocumentHandler struct {
	classifier *classifier.Classifier
	ingestion  *ingestion.Service
}

func NewDocumentHandler(c *classifier.Classifier, svc *ingestion.Service) *DocumentHandler {
	return &DocumentHandler{
		classifier: c,
		ingestion:  svc,
	}
}

type documentRequest struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Source      string     `json:"source"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at"`
}

func (r documentRequest) document() models.Document {
	return models.Document{
		URL:         r.URL,
		Title:       r.Title,
		Body:        r.Body,
		Source:      r.Source,
		PublishedAt: r.PublishedAt,
	}
}

// Classify scores a document without storing it and returns the term breakdown.
func (h *DocumentHandler) Classify(c *fiber.Ctx) error {
	var req documentRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Debug("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	title, body := ingestion.NormalizeDocument(req.Title, req.Body)
	return c.JSON(h.classifier.Classify(title, body))
}

// Upsert classifies and stores one document under its URL.
func (h *DocumentHandler) Upsert(c *fiber.Ctx) error {
	var req documentRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Debug("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	rec, err := h.ingestion.Ingest(c.Context(), req.document(), req.Summary)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

// IngestBatch runs the full pipeline over a batch and stores the survivors.
func (h *DocumentHandler) IngestBatch(c *fiber.Ctx) error {
	var req struct {
		Documents []documentRequest `json:"documents"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Debug("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}
	if len(req.Documents) == 0 {
		return badRequest(c, "documents are required")
	}
	if len(req.Documents) > maxBatchDocuments {
		return badRequest(c, "too many documents in one batch")
	}

	docs := make([]models.Document, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.document()
	}

	stored, report, err := h.ingestion.ProcessAndStore(c.Context(), docs)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"report":  report,
		"records": stored,
	})
}

func (h *DocumentHandler) Lexicon(c *fiber.Ctx) error {
	lex := h.classifier.Lexicon()
	return c.JSON(fiber.Map{
		"version": lex.Version(),
		"stats":   lex.Stats(),
		"tables":  lex.Tables(),
	})
}
