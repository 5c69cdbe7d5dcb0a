package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()

	DuplicatesDropped.Inc()
	CacheHits.WithLabelValues("search").Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, name := range []string{"ainews_duplicates_dropped_total", "ainews_cache_hits_total"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}
