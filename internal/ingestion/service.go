package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/classifier"
	"github.com/ainews/backend/internal/dedup"
	"github.com/ainews/backend/internal/metrics"
	"github.com/ainews/backend/internal/ranking"
	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/internal/storage/sqlite"
	"github.com/ainews/backend/pkg/logger"
	"github.com/ainews/backend/pkg/retry"
)

const (
	StateLastCycleID = "last_cycle_id"
	StateLastCycleAt = "last_cycle_at"
)

// Index is the slice of the retrieval index the pipeline writes to.
type Index interface {
	Exists(ctx context.Context, url string) (bool, error)
	Upsert(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error)
	RecordFailure(ctx context.Context, url, title, source, message string) error
	SetState(ctx context.Context, key, value string) error
}

type CacheInvalidator interface {
	InvalidateSearchCache(ctx context.Context) error
}

type Config struct {
	// MaxPerCycle caps the documents classified per batch; 0 means no cap.
	MaxPerCycle   int
	SkipKnown     bool
	InDomainOnly  bool
	RetryAttempts int
	RetryDelay    time.Duration
}

// Report summarizes one ProcessBatch or ProcessAndStore call.
type Report struct {
	CycleID     string        `json:"cycle_id"`
	Received    int           `json:"received"`
	Known       int           `json:"known"`
	Truncated   int           `json:"truncated"`
	Classified  int           `json:"classified"`
	OutOfDomain int           `json:"out_of_domain"`
	Duplicates  int           `json:"duplicates"`
	Ranked      int           `json:"ranked"`
	Stored      int           `json:"stored"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration_ns"`
}

type Service struct {
	classifier *classifier.Classifier
	dedup      *dedup.Deduplicator
	ranker     *ranking.Ranker
	index      Index
	cache      CacheInvalidator
	cfg        Config
}

type Option func(*Service)

func WithCache(cache CacheInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

func NewService(c *classifier.Classifier, d *dedup.Deduplicator, r *ranking.Ranker, index Index, cfg Config, opts ...Option) *Service {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	s := &Service{
		classifier: c,
		dedup:      d,
		ranker:     r,
		index:      index,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessBatch runs normalize, classify, domain filter, dedupe and rank over
// docs. Nothing is written except the cycle bookkeeping state.
func (s *Service) ProcessBatch(ctx context.Context, docs []models.Document) ([]models.ClassifiedDocument, Report, error) {
	started := time.Now()
	report := Report{CycleID: uuid.NewString(), Received: len(docs)}

	logger.Info("Processing batch",
		zap.String("cycle_id", report.CycleID),
		zap.Int("documents", len(docs)),
	)

	pending := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		doc.Title, doc.Body = NormalizeDocument(doc.Title, doc.Body)
		if s.cfg.SkipKnown && doc.URL != "" && s.index != nil {
			known, err := s.index.Exists(ctx, doc.URL)
			if err != nil {
				return nil, report, fmt.Errorf("failed to check processed url: %w", err)
			}
			if known {
				report.Known++
				continue
			}
		}
		pending = append(pending, doc)
	}

	if s.cfg.MaxPerCycle > 0 && len(pending) > s.cfg.MaxPerCycle {
		report.Truncated = len(pending) - s.cfg.MaxPerCycle
		pending = pending[:s.cfg.MaxPerCycle]
	}

	classified, err := s.classifier.ClassifyBatch(ctx, pending)
	if err != nil {
		return nil, report, fmt.Errorf("failed to classify batch: %w", err)
	}
	report.Classified = len(classified)

	kept := make([]models.ClassifiedDocument, 0, len(classified))
	for _, doc := range classified {
		metrics.RelevanceScore.Observe(doc.RelevanceScore)
		metrics.DocumentsClassified.WithLabelValues(strconv.FormatBool(doc.IsInDomain)).Inc()
		if s.cfg.InDomainOnly && !doc.IsInDomain {
			report.OutOfDomain++
			continue
		}
		kept = append(kept, doc)
	}

	unique, dropped := s.dedup.DedupeWithReport(kept)
	report.Duplicates = len(dropped)
	metrics.DuplicatesDropped.Add(float64(len(dropped)))
	for _, d := range dropped {
		logger.Debug("Dropped near duplicate",
			zap.String("cycle_id", report.CycleID),
			zap.String("title", d.Item.Title),
			zap.String("kept_title", unique[d.KeptIndex].Title),
			zap.Float64("similarity", d.Similarity),
		)
	}

	ranked := s.ranker.RankDocuments(unique)
	report.Ranked = len(ranked)
	report.Duration = time.Since(started)

	metrics.IngestionCycles.Inc()
	s.recordCycle(ctx, report.CycleID, started)

	logger.Info("Batch processed",
		zap.String("cycle_id", report.CycleID),
		zap.Int("known", report.Known),
		zap.Int("classified", report.Classified),
		zap.Int("out_of_domain", report.OutOfDomain),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("ranked", report.Ranked),
		zap.Duration("duration", report.Duration),
	)

	return ranked, report, nil
}

// ProcessAndStore runs ProcessBatch and persists every surviving document.
// Persistence failures are recorded and counted, not returned.
func (s *Service) ProcessAndStore(ctx context.Context, docs []models.Document) ([]models.StoredRecord, Report, error) {
	if s.index == nil {
		return nil, Report{}, errors.New("ingestion service has no index")
	}

	ranked, report, err := s.ProcessBatch(ctx, docs)
	if err != nil {
		return nil, report, err
	}

	stored := make([]models.StoredRecord, 0, len(ranked))
	for _, doc := range ranked {
		if err := ctx.Err(); err != nil {
			return stored, report, err
		}
		rec, err := s.persist(ctx, models.StoredRecord{ClassifiedDocument: doc})
		if err != nil {
			report.Failed++
			logger.Warn("Failed to persist record",
				zap.String("cycle_id", report.CycleID),
				zap.String("url", doc.URL),
				zap.Error(err),
			)
			continue
		}
		stored = append(stored, rec)
	}
	report.Stored = len(stored)

	if report.Stored > 0 {
		s.invalidate(ctx)
	}
	return stored, report, nil
}

// Ingest normalizes, classifies and persists a single document. The domain
// filter does not apply to explicitly submitted documents.
func (s *Service) Ingest(ctx context.Context, doc models.Document, summary string) (models.StoredRecord, error) {
	doc.Title, doc.Body = NormalizeDocument(doc.Title, doc.Body)
	classified := s.classifier.ClassifyDocument(doc)
	metrics.RelevanceScore.Observe(classified.RelevanceScore)
	metrics.DocumentsClassified.WithLabelValues(strconv.FormatBool(classified.IsInDomain)).Inc()

	return s.Persist(ctx, models.StoredRecord{ClassifiedDocument: classified, Summary: summary})
}

// Persist upserts rec, retrying while SQLite reports lock contention. A final
// failure is recorded against the URL in the failed-records table.
func (s *Service) Persist(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	if s.index == nil {
		return models.StoredRecord{}, errors.New("ingestion service has no index")
	}
	stored, err := s.persist(ctx, rec)
	if err != nil {
		return models.StoredRecord{}, err
	}
	s.invalidate(ctx)
	return stored, nil
}

func (s *Service) persist(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	cfg := retry.DefaultConfig()
	cfg.Name = "upsert"
	cfg.MaxAttempts = s.cfg.RetryAttempts
	cfg.InitialDelay = s.cfg.RetryDelay
	cfg.Retryable = sqlite.IsBusy
	cfg.Logger = logger.GetLogger()

	stored, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) (models.StoredRecord, error) {
		return s.index.Upsert(ctx, rec)
	})
	if err == nil {
		metrics.RecordsUpserted.WithLabelValues("ok").Inc()
		return stored, nil
	}

	metrics.RecordsUpserted.WithLabelValues("failed").Inc()
	if errors.Is(err, models.ErrMissingURL) || ctx.Err() != nil {
		return models.StoredRecord{}, err
	}
	if ferr := s.index.RecordFailure(ctx, rec.URL, rec.Title, rec.Source, err.Error()); ferr != nil {
		logger.Error("Failed to record failure", zap.String("url", rec.URL), zap.Error(ferr))
	}
	return models.StoredRecord{}, err
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSearchCache(ctx); err != nil {
		logger.Warn("Failed to invalidate search cache", zap.Error(err))
	}
}

func (s *Service) recordCycle(ctx context.Context, cycleID string, at time.Time) {
	if s.index == nil {
		return
	}
	if err := s.index.SetState(ctx, StateLastCycleID, cycleID); err != nil {
		logger.Warn("Failed to record cycle state", zap.Error(err))
		return
	}
	if err := s.index.SetState(ctx, StateLastCycleAt, at.UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("Failed to record cycle state", zap.Error(err))
	}
}
