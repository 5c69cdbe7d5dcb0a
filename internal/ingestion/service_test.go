package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/ainews/backend/internal/classifier"
	"github.com/ainews/backend/internal/dedup"
	"github.com/ainews/backend/internal/lexicon"
	"github.com/ainews/backend/internal/ranking"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/internal/storage/sqlite"
)

type fakeIndex struct {
	mu        sync.Mutex
	known     map[string]bool
	upserts   int
	busy      int
	upsertErr error
	failures  map[string]string
	state     map[string]string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		known:    map[string]bool{},
		failures: map[string]string{},
		state:    map[string]string{},
	}
}

func (f *fakeIndex) Exists(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.known[url], nil
}

func (f *fakeIndex) Upsert(_ context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if rec.URL == "" {
		return models.StoredRecord{}, models.ErrMissingURL
	}
	if f.busy > 0 {
		f.busy--
		return models.StoredRecord{}, sqlite3.Error{Code: sqlite3.ErrBusy}
	}
	if f.upsertErr != nil {
		return models.StoredRecord{}, f.upsertErr
	}
	f.known[rec.URL] = true
	rec.ID = int64(f.upserts)
	return rec, nil
}

func (f *fakeIndex) RecordFailure(_ context.Context, url, _, _, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[url] = message
	return nil
}

func (f *fakeIndex) SetState(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[key] = value
	return nil
}

type countingCache struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCache) InvalidateSearchCache(context.Context) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var (
	llmDoc = models.Document{
		URL:    "https://example.com/llm",
		Title:  "New large language model transformer tops reasoning benchmark",
		Body:   "The transformer language model was trained on a new dataset.",
		Source: "ArXiv",
	}
	llmDupDoc = models.Document{
		URL:    "https://example.com/llm-copy",
		Title:  "New large language model transformer tops reasoning benchmark today",
		Body:   "<p>The same story from another outlet.</p>",
		Source: "TechCrunch",
	}
	robotDoc = models.Document{
		URL:    "https://example.com/robot",
		Title:  "Robotics lab shows humanoid robot with autonomous navigation",
		Body:   "The robot uses sensor fusion and path planning.",
		Source: "IEEE Spectrum",
	}
	bakeryDoc = models.Document{
		URL:    "https://example.com/bakery",
		Title:  "Local bakery opens new store",
		Body:   "Fresh bread every morning.",
		Source: "Gazette",
	}
)

func newTestService(index Index, cfg Config, opts ...Option) *Service {
	return NewService(
		classifier.New(lexicon.Default(), classifier.WithWorkers(2)),
		dedup.New(dedup.DefaultThreshold),
		ranking.New(),
		index,
		cfg,
		opts...,
	)
}

func TestProcessBatchPipeline(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	svc := newTestService(index, Config{InDomainOnly: true})

	ranked, report, err := svc.ProcessBatch(context.Background(), []models.Document{llmDoc, bakeryDoc, llmDupDoc, robotDoc})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	if report.Received != 4 || report.Classified != 4 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.OutOfDomain != 1 || report.Duplicates != 1 || report.Ranked != 2 {
		t.Fatalf("unexpected filtering: %+v", report)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked documents, got %d", len(ranked))
	}
	for _, doc := range ranked {
		if doc.URL == bakeryDoc.URL || doc.URL == llmDupDoc.URL {
			t.Fatalf("unexpected survivor %s", doc.URL)
		}
		if !doc.IsInDomain {
			t.Fatalf("expected only in-domain survivors, got %+v", doc)
		}
	}

	if _, err := uuid.Parse(report.CycleID); err != nil {
		t.Fatalf("cycle id is not a uuid: %q", report.CycleID)
	}
	if index.state[StateLastCycleID] != report.CycleID {
		t.Fatalf("cycle id not recorded, state %v", index.state)
	}
	if _, err := time.Parse(time.RFC3339, index.state[StateLastCycleAt]); err != nil {
		t.Fatalf("cycle time not recorded: %v", err)
	}
}

func TestProcessBatchKeepsOutOfDomainWhenFilterDisabled(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, Config{})
	ranked, report, err := svc.ProcessBatch(context.Background(), []models.Document{bakeryDoc, llmDoc})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if report.OutOfDomain != 0 || len(ranked) != 2 {
		t.Fatalf("expected both documents to survive, got %+v", report)
	}
	if ranked[0].URL != llmDoc.URL {
		t.Fatalf("expected the relevant document first, got %s", ranked[0].URL)
	}
}

func TestProcessBatchSkipsKnownAndTruncates(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	index.known[llmDoc.URL] = true
	svc := newTestService(index, Config{SkipKnown: true, MaxPerCycle: 1})

	ranked, report, err := svc.ProcessBatch(context.Background(), []models.Document{llmDoc, robotDoc, bakeryDoc})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if report.Known != 1 || report.Truncated != 1 || report.Classified != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(ranked) != 1 || ranked[0].URL != robotDoc.URL {
		t.Fatalf("expected only the robot document, got %+v", ranked)
	}
}

func TestProcessBatchNormalizesMarkup(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, Config{})
	doc := models.Document{
		URL:  "https://example.com/html",
		Body: "<html><head><title>Vision transformer beats CNN baseline</title></head><body><p>computer vision results</p></body></html>",
	}
	ranked, _, err := svc.ProcessBatch(context.Background(), []models.Document{doc})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if ranked[0].Title != "Vision transformer beats CNN baseline" || ranked[0].Body != "computer vision results" {
		t.Fatalf("markup not normalized: %q / %q", ranked[0].Title, ranked[0].Body)
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(nil, Config{})
	if _, _, err := svc.ProcessBatch(ctx, []models.Document{llmDoc}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPersistRetriesBusyStorage(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	index.busy = 2
	cache := &countingCache{}
	svc := newTestService(index, Config{RetryAttempts: 3, RetryDelay: time.Millisecond}, WithCache(cache))

	rec, err := svc.Persist(context.Background(), models.StoredRecord{ClassifiedDocument: models.ClassifiedDocument{Document: llmDoc}})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if rec.ID == 0 || index.upserts != 3 {
		t.Fatalf("expected success on the third attempt, got id %d after %d upserts", rec.ID, index.upserts)
	}
	if cache.count() != 1 {
		t.Fatalf("expected one cache invalidation, got %d", cache.count())
	}
	if len(index.failures) != 0 {
		t.Fatalf("no failure should be recorded, got %v", index.failures)
	}
}

func TestPersistRecordsFinalFailure(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	index.upsertErr = errors.New("disk I/O error")
	cache := &countingCache{}
	svc := newTestService(index, Config{RetryDelay: time.Millisecond}, WithCache(cache))

	_, err := svc.Persist(context.Background(), models.StoredRecord{ClassifiedDocument: models.ClassifiedDocument{Document: robotDoc}})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if index.upserts != 1 {
		t.Fatalf("non-busy errors must not be retried, got %d upserts", index.upserts)
	}
	if index.failures[robotDoc.URL] != "disk I/O error" {
		t.Fatalf("failure not recorded: %v", index.failures)
	}
	if cache.count() != 0 {
		t.Fatalf("failed writes must not invalidate the cache")
	}
}

func TestPersistMissingURL(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	svc := newTestService(index, Config{})

	_, err := svc.Persist(context.Background(), models.StoredRecord{})
	if !errors.Is(err, models.ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
	if len(index.failures) != 0 {
		t.Fatalf("records without a URL cannot be tracked as failures")
	}
}

func TestProcessAndStoreWithSQLite(t *testing.T) {
	t.Parallel()

	client, err := sqlite.NewClient(filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	if err := client.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	cache := &countingCache{}
	svc := newTestService(client, Config{InDomainOnly: true, SkipKnown: true}, WithCache(cache))

	docs := []models.Document{llmDoc, bakeryDoc, robotDoc}
	stored, report, err := svc.ProcessAndStore(ctx, docs)
	if err != nil {
		t.Fatalf("ProcessAndStore: %v", err)
	}
	if report.Stored != 2 || report.Failed != 0 || len(stored) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if cache.count() != 1 {
		t.Fatalf("expected one invalidation per stored batch, got %d", cache.count())
	}

	for _, rec := range stored {
		got, err := client.GetByURL(ctx, rec.URL)
		if err != nil {
			t.Fatalf("GetByURL(%s): %v", rec.URL, err)
		}
		if got.RelevanceScore != rec.RelevanceScore || len(got.Topics) == 0 {
			t.Fatalf("stored record mismatch: %+v vs %+v", got, rec)
		}
	}

	_, again, err := svc.ProcessAndStore(ctx, docs)
	if err != nil {
		t.Fatalf("second ProcessAndStore: %v", err)
	}
	if again.Known != 2 || again.Stored != 0 {
		t.Fatalf("expected stored URLs to be skipped, got %+v", again)
	}
	if cache.count() != 1 {
		t.Fatalf("nothing stored, cache must stay untouched")
	}

	state, err := client.GetState(ctx, StateLastCycleID)
	if err != nil || state != again.CycleID {
		t.Fatalf("last cycle state = %q, %v", state, err)
	}
}

func TestIngestClassifiesAndPersists(t *testing.T) {
	t.Parallel()

	index := newFakeIndex()
	svc := newTestService(index, Config{InDomainOnly: true})

	rec, err := svc.Ingest(context.Background(), bakeryDoc, "a bakery")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.IsInDomain || rec.Summary != "a bakery" || !index.known[bakeryDoc.URL] {
		t.Fatalf("expected the out-of-domain document to be stored as submitted, got %+v", rec)
	}
}
