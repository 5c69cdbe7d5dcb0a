package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/ainews/backend/internal/classifier"
	"github.com/ainews/backend/internal/dedup"
	"github.com/ainews/backend/internal/ingestion"
	"github.com/ainews/backend/internal/lexicon"
	"github.com/ainews/backend/internal/ranking"
	"github.com/ainews/backend/internal/search"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/internal/storage/sqlite"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("database is closed") }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	lex := lexicon.Default()
	cls := classifier.New(lex)
	ranker := ranking.New()
	svc := ingestion.NewService(cls, dedup.New(dedup.DefaultThreshold), ranker, db, ingestion.Config{InDomainOnly: true, SkipKnown: true})
	engine := search.NewEngine(db, lex, ranker, search.Config{DefaultLimit: 10, MaxLimit: 50})

	app := fiber.New()
	Register(app.Group("/api/v1"), NewDocumentHandler(cls, svc), NewSearchHandler(engine), NewHealthHandler(db))
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: invalid JSON %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

const llmRecord = `{
	"url": "https://news.example.com/llm",
	"title": "New large language model transformer tops reasoning benchmark",
	"body": "The transformer language model was trained on a new dataset.",
	"source": "ArXiv",
	"summary": "A new model."
}`

func TestRecordLifecycle(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	status, created := call(t, app, "POST", "/api/v1/records", llmRecord)
	if status != http.StatusCreated {
		t.Fatalf("POST /records = %d %v", status, created)
	}
	id := int(created["id"].(float64))
	if created["relevance_score"].(float64) <= 0 || created["summary"] != "A new model." {
		t.Fatalf("unexpected record: %v", created)
	}

	status, got := call(t, app, "GET", "/api/v1/records/"+strconv.Itoa(id), "")
	if status != http.StatusOK || got["url"] != "https://news.example.com/llm" {
		t.Fatalf("GET /records/:id = %d %v", status, got)
	}

	if status, _ := call(t, app, "GET", "/api/v1/records/9999", ""); status != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing record, got %d", status)
	}
	if status, _ := call(t, app, "GET", "/api/v1/records/abc", ""); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad id, got %d", status)
	}

	status, res := call(t, app, "POST", "/api/v1/search", `{"text":"transformer","limit":5}`)
	if status != http.StatusOK || res["total"].(float64) != 1 {
		t.Fatalf("POST /search = %d %v", status, res)
	}

	status, top := call(t, app, "GET", "/api/v1/records/top?hours=1", "")
	if status != http.StatusOK || len(top["records"].([]any)) != 1 {
		t.Fatalf("GET /records/top = %d %v", status, top)
	}

	status, trending := call(t, app, "GET", "/api/v1/topics/trending?days=1", "")
	if status != http.StatusOK || len(trending["topics"].([]any)) == 0 {
		t.Fatalf("GET /topics/trending = %d %v", status, trending)
	}

	status, byTopic := call(t, app, "GET", "/api/v1/topics/Large%20Language%20Models", "")
	if status != http.StatusOK || byTopic["topic"] != "Large Language Models" || len(byTopic["records"].([]any)) != 1 {
		t.Fatalf("GET /topics/:topic = %d %v", status, byTopic)
	}

	status, stats := call(t, app, "GET", "/api/v1/stats", "")
	if status != http.StatusOK || stats["total_records"].(float64) != 1 {
		t.Fatalf("GET /stats = %d %v", status, stats)
	}

	status, sources := call(t, app, "GET", "/api/v1/sources", "")
	if status != http.StatusOK || len(sources["sources"].([]any)) != 1 {
		t.Fatalf("GET /sources = %d %v", status, sources)
	}
}

func TestUpsertRequiresURL(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	status, body := call(t, app, "POST", "/api/v1/records", `{"title":"no url"}`)
	if status != http.StatusBadRequest || !strings.Contains(body["error"].(string), "url") {
		t.Fatalf("expected 400 mentioning url, got %d %v", status, body)
	}
}

func TestSearchRejectsInvalidQuery(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	tests := []string{
		`{"sort_by":"popularity"}`,
		`{"start":"2024-06-02T00:00:00Z","end":"2024-06-01T00:00:00Z"}`,
		`{"limit":-5}`,
	}
	for _, body := range tests {
		if status, res := call(t, app, "POST", "/api/v1/search", body); status != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d %v", body, status, res)
		}
	}

	if status, _ := call(t, app, "POST", "/api/v1/search", ""); status != http.StatusOK {
		t.Fatalf("an empty body must list with defaults, got %d", status)
	}
}

func TestClassifyReturnsBreakdown(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	status, res := call(t, app, "POST", "/api/v1/documents/classify", llmRecord)
	if status != http.StatusOK {
		t.Fatalf("POST /documents/classify = %d %v", status, res)
	}
	if _, ok := res["breakdown"].(map[string]any); !ok {
		t.Fatalf("expected a breakdown, got %v", res)
	}
	if res["is_in_domain"] != true {
		t.Fatalf("expected an in-domain classification, got %v", res)
	}

	if status, stats := call(t, app, "GET", "/api/v1/stats", ""); status != http.StatusOK || stats["total_records"].(float64) != 0 {
		t.Fatalf("classify must not store anything, got %v", stats)
	}
}

func TestIngestBatch(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	body := `{"documents":[` + llmRecord + `,
		{"url":"https://news.example.com/bakery","title":"Local bakery opens new store","body":"Fresh bread every morning.","source":"Gazette"}
	]}`

	status, res := call(t, app, "POST", "/api/v1/records/batch", body)
	if status != http.StatusOK {
		t.Fatalf("POST /records/batch = %d %v", status, res)
	}
	report := res["report"].(map[string]any)
	if report["stored"].(float64) != 1 || report["out_of_domain"].(float64) != 1 {
		t.Fatalf("unexpected report: %v", report)
	}

	if status, _ := call(t, app, "POST", "/api/v1/records/batch", `{"documents":[]}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty batch, got %d", status)
	}
}

func TestSimilarAndSuggestions(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	call(t, app, "POST", "/api/v1/records", llmRecord)

	if status, _ := call(t, app, "GET", "/api/v1/records/similar", ""); status != http.StatusBadRequest {
		t.Fatalf("expected 400 without a title, got %d", status)
	}
	status, similar := call(t, app, "GET", "/api/v1/records/similar?title=Reasoning%20benchmark%20results", "")
	if status != http.StatusOK || len(similar["records"].([]any)) != 1 {
		t.Fatalf("GET /records/similar = %d %v", status, similar)
	}

	status, sugg := call(t, app, "GET", "/api/v1/suggestions?q=vision", "")
	if status != http.StatusOK || len(sugg["suggestions"].([]any)) == 0 {
		t.Fatalf("GET /suggestions = %d %v", status, sugg)
	}
}

func TestLexiconAndHealth(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	status, lex := call(t, app, "GET", "/api/v1/lexicon", "")
	if status != http.StatusOK || lex["version"] != lexicon.DefaultVersion {
		t.Fatalf("GET /lexicon = %d %v", status, lex)
	}
	if status, _ := call(t, app, "GET", "/api/v1/health", ""); status != http.StatusOK {
		t.Fatalf("GET /health = %d", status)
	}
	if status, _ := call(t, app, "GET", "/api/v1/ready", ""); status != http.StatusOK {
		t.Fatalf("GET /ready = %d", status)
	}

	down := fiber.New()
	down.Get("/ready", NewHealthHandler(downPinger{}).Ready)
	resp, err := down.Test(httptest.NewRequest("GET", "/ready", nil))
	if err != nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the database is down, got %v %v", resp, err)
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error { return respondError(c, errors.New("disk I/O error")) })
	app.Get("/missing", func(c *fiber.Ctx) error { return respondError(c, models.ErrNotFound) })

	status, body := call(t, app, "GET", "/boom", "")
	if status != http.StatusInternalServerError || body["error"] != "Internal server error" {
		t.Fatalf("unexpected internal error response: %d %v", status, body)
	}
	if status, _ := call(t, app, "GET", "/missing", ""); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}
