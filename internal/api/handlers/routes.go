package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Register mounts the API under r. Static record routes come before /records/:id.
func Register(r fiber.Router, docs *DocumentHandler, search *SearchHandler, health *HealthHandler) {
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	r.Post("/documents/classify", docs.Classify)
	r.Get("/lexicon", docs.Lexicon)

	r.Post("/records", docs.Upsert)
	r.Post("/records/batch", docs.IngestBatch)
	r.Get("/records/top", search.Top)
	r.Get("/records/similar", search.Similar)
	r.Get("/records/:id", search.GetRecord)

	r.Post("/search", search.Search)
	r.Get("/topics/trending", search.Trending)
	r.Get("/topics/:topic", search.ByTopic)
	r.Get("/suggestions", search.Suggestions)
	r.Get("/sources", search.Sources)
	r.Get("/stats", search.Stats)
	r.Get("/stream", requireUpgrade, websocket.New(search.Stream))
}
