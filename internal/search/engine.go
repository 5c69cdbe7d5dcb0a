package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ainews/backend/internal/dedup"
	"github.com/ainews/backend/internal/lexicon"
	"github.com/ainews/backend/internal/metrics"
	"github.com/ainews/backend/internal/ranking"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
	"github.com/ainews/backend/pkg/utils"
)

const (
	MaxSuggestions      = 10
	minSimilarTermRunes = 4
)

// Index is the read side of the retrieval index.
type Index interface {
	Search(ctx context.Context, q models.Query) ([]models.StoredRecord, error)
	Count(ctx context.Context, q models.Query) (int, error)
	TopicCounts(ctx context.Context, q models.Query) ([]models.TopicCount, error)
	SourceStatistics(ctx context.Context, q models.Query) ([]models.SourceStatistics, error)
	Get(ctx context.Context, id int64) (models.StoredRecord, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// Cache stores search pages. Generation changes whenever the cache is
// invalidated; it is part of every key so a page computed before a write is
// never readable after it.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	GetQuery(ctx context.Context, queryHash string, response any) (bool, error)
	SetQuery(ctx context.Context, queryHash string, response any) error
}

type Config struct {
	DefaultLimit  int
	MaxLimit      int
	SimilarTerms  int
	TrendingLimit int
}

// Result is one page of search results.
type Result struct {
	Records []models.StoredRecord `json:"records"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
	Cached  bool                  `json:"cached"`
}

type Engine struct {
	index  Index
	lex    *lexicon.Lexicon
	ranker *ranking.Ranker
	cache  Cache
	now    func() time.Time
	cfg    Config
}

type Option func(*Engine)

func WithCache(cache Cache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithClock sets the reference time for the hour and day windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(index Index, lex *lexicon.Lexicon, ranker *ranking.Ranker, cfg Config, opts ...Option) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.SimilarTerms <= 0 {
		cfg.SimilarTerms = 5
	}
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = 20
	}
	e := &Engine{
		index:  index,
		lex:    lex,
		ranker: ranker,
		now:    time.Now,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs q against the index. A zero limit takes the configured default
// and larger limits are capped. SortQuality fetches the page in relevance
// order and re-ranks that page alone with the ranker; the result depends on
// the current time, so those pages are never cached.
func (e *Engine) Search(ctx context.Context, q models.Query) (Result, error) {
	started := time.Now()

	if q.Limit == 0 {
		q.Limit = e.cfg.DefaultLimit
	}
	if q.Limit > e.cfg.MaxLimit {
		q.Limit = e.cfg.MaxLimit
	}
	if err := q.Validate(); err != nil {
		e.observe("search", started, 0, err)
		return Result{}, err
	}

	key, useCache := e.cacheKey(ctx, q)
	if useCache {
		var cached Result
		found, err := e.cache.GetQuery(ctx, key, &cached)
		if err != nil {
			logger.Warn("Search cache unavailable", zap.Error(err))
		}
		if found {
			cached.Cached = true
			e.observe("search", started, len(cached.Records), nil)
			return cached, nil
		}
	}

	records, err := e.index.Search(ctx, q)
	if err != nil {
		e.observe("search", started, 0, err)
		return Result{}, err
	}
	total, err := e.index.Count(ctx, q)
	if err != nil {
		e.observe("search", started, 0, err)
		return Result{}, err
	}
	if q.SortBy == models.SortQuality {
		records = e.ranker.Rank(records)
	}

	res := Result{Records: records, Total: total, Limit: q.Limit, Offset: q.Offset}

	if useCache {
		if err := e.cache.SetQuery(ctx, key, res); err != nil {
			logger.Warn("Failed to cache search results", zap.Error(err))
		}
	}

	e.observe("search", started, len(records), nil)
	logger.Debug("Search completed",
		zap.String("text", q.Text),
		zap.Int("results", len(records)),
		zap.Int("total", total),
	)
	return res, nil
}

// Top returns the most relevant records processed within the last hours.
func (e *Engine) Top(ctx context.Context, hours, limit int) ([]models.StoredRecord, error) {
	started := time.Now()
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", models.ErrInvalidQuery, hours)
	}
	since := e.now().Add(-time.Duration(hours) * time.Hour)
	records, err := e.index.Search(ctx, models.Query{Start: &since, Limit: e.limit(limit)})
	e.observe("top", started, len(records), err)
	return records, err
}

// Trending counts topics over records processed within the last days.
func (e *Engine) Trending(ctx context.Context, days, limit int) ([]models.TopicCount, error) {
	started := time.Now()
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", models.ErrInvalidQuery, days)
	}
	if limit <= 0 {
		limit = e.cfg.TrendingLimit
	}
	since := e.now().AddDate(0, 0, -days)
	counts, err := e.index.TopicCounts(ctx, models.Query{Start: &since})
	if err != nil {
		e.observe("trending", started, 0, err)
		return nil, err
	}
	if len(counts) > limit {
		counts = counts[:limit]
	}
	e.observe("trending", started, len(counts), nil)
	return counts, nil
}

// Similar finds records sharing the longest words of title. Records carrying
// the same title are left out.
func (e *Engine) Similar(ctx context.Context, title string, limit int) ([]models.StoredRecord, error) {
	started := time.Now()
	limit = e.limit(limit)

	terms := SimilarTerms(title, e.cfg.SimilarTerms)
	if len(terms) == 0 {
		e.observe("similar", started, 0, nil)
		return []models.StoredRecord{}, nil
	}

	records, err := e.index.Search(ctx, models.Query{
		Text:     strings.Join(terms, " "),
		MatchAny: true,
		Limit:    limit + 1,
	})
	if err != nil {
		e.observe("similar", started, 0, err)
		return nil, err
	}

	self := strings.TrimSpace(title)
	out := make([]models.StoredRecord, 0, limit)
	for _, rec := range records {
		if strings.EqualFold(strings.TrimSpace(rec.Title), self) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, rec)
	}
	e.observe("similar", started, len(out), nil)
	return out, nil
}

// ByTopic returns the latest records tagged with topic.
func (e *Engine) ByTopic(ctx context.Context, topic string, limit int) ([]models.StoredRecord, error) {
	started := time.Now()
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", models.ErrInvalidQuery)
	}
	records, err := e.index.Search(ctx, models.Query{
		Topics: []string{topic},
		SortBy: models.SortDate,
		Limit:  e.limit(limit),
	})
	e.observe("topic", started, len(records), err)
	return records, err
}

// Suggestions completes a partial query from topic names first, then lexicon
// keywords, case-insensitively.
func (e *Engine) Suggestions(partial string) []string {
	partial = strings.ToLower(strings.TrimSpace(partial))
	out := []string{}
	if partial == "" {
		return out
	}

	seen := make(map[string]struct{})
	add := func(s string) bool {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok || !strings.Contains(key, partial) {
			return len(out) < MaxSuggestions
		}
		seen[key] = struct{}{}
		out = append(out, s)
		return len(out) < MaxSuggestions
	}

	for _, name := range e.lex.CategoryNames() {
		if !add(name) {
			return out
		}
	}
	for _, cat := range e.lex.Categories() {
		for _, kw := range cat.Keywords {
			if !add(kw) {
				return out
			}
		}
	}
	return out
}

// SourceStatistics aggregates per source over the last days; days <= 0 covers everything.
func (e *Engine) SourceStatistics(ctx context.Context, days int) ([]models.SourceStatistics, error) {
	var q models.Query
	if days > 0 {
		since := e.now().AddDate(0, 0, -days)
		q.Start = &since
	}
	return e.index.SourceStatistics(ctx, q)
}

func (e *Engine) Get(ctx context.Context, id int64) (models.StoredRecord, error) {
	return e.index.Get(ctx, id)
}

func (e *Engine) Stats(ctx context.Context) (models.Stats, error) {
	return e.index.Stats(ctx)
}

// cacheKey reads the cache generation before the index is touched, so a write
// landing mid-search bumps the generation past the key this page is stored under.
func (e *Engine) cacheKey(ctx context.Context, q models.Query) (string, bool) {
	if e.cache == nil || q.SortBy == models.SortQuality {
		return "", false
	}
	hash, err := utils.HashJSON(q)
	if err != nil {
		logger.Warn("Failed to hash search query", zap.Error(err))
		return "", false
	}
	gen, err := e.cache.Generation(ctx)
	if err != nil {
		logger.Warn("Search cache unavailable", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%d:%s", gen, hash), true
}

func (e *Engine) limit(n int) int {
	if n <= 0 {
		return e.cfg.DefaultLimit
	}
	if n > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return n
}

func (e *Engine) observe(kind string, started time.Time, results int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchTotal.WithLabelValues(kind, status).Inc()
	metrics.SearchDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	if err == nil {
		metrics.SearchResults.Observe(float64(results))
	}
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// SimilarTerms picks up to n distinct lower-cased words of title longer than
// three characters, skipping stop words, longest first. Ties keep title order.
func SimilarTerms(title string, n int) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(title), -1) {
		if utf8.RuneCountInString(w) < minSimilarTermRunes || dedup.IsStopWord(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}

	sort.SliceStable(words, func(i, j int) bool {
		return utf8.RuneCountInString(words[i]) > utf8.RuneCountInString(words[j])
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}
