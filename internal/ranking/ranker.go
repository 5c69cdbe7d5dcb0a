// Package ranking orders records by a view-time quality score.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/ainews/backend/internal/storage/models"
)

const (
	MaxRecencyBonus    = 20.0
	RecencyDecayPerDay = 2.0
	DefaultTrustBonus  = 10.0
)

var DefaultTrustedSources = []string{"ArXiv", "OpenAI", "Google AI", "DeepMind"}

type Ranker struct {
	trusted    map[string]struct{}
	trustBonus float64
	now        func() time.Time
}

type Option func(*Ranker)

// WithClock replaces time.Now as the ranking reference time.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithTrustedSources replaces the elevated-trust source set. Matching is exact.
func WithTrustedSources(sources []string) Option {
	return func(r *Ranker) {
		r.trusted = make(map[string]struct{}, len(sources))
		for _, s := range sources {
			r.trusted[s] = struct{}{}
		}
	}
}

func WithTrustBonus(bonus float64) Option {
	return func(r *Ranker) { r.trustBonus = bonus }
}

func New(opts ...Option) *Ranker {
	r := &Ranker{trustBonus: DefaultTrustBonus, now: time.Now}
	WithTrustedSources(DefaultTrustedSources)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QualityScore is relevance plus recency and trust bonuses. It is never stored.
func (r *Ranker) QualityScore(rec models.StoredRecord) float64 {
	return r.qualityAt(rec, r.now())
}

func (r *Ranker) RecencyBonus(rec models.StoredRecord) float64 {
	return r.recencyAt(rec, r.now())
}

func (r *Ranker) IsTrusted(source string) bool {
	_, ok := r.trusted[source]
	return ok
}

// Rank returns a stably sorted copy of records, best first. Scores are not modified.
func (r *Ranker) Rank(records []models.StoredRecord) []models.StoredRecord {
	now := r.now()
	type scored struct {
		rec     models.StoredRecord
		quality float64
	}
	items := make([]scored, len(records))
	for i, rec := range records {
		items[i] = scored{rec: rec, quality: r.qualityAt(rec, now)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].quality > items[j].quality
	})

	out := make([]models.StoredRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

// RankDocuments ranks freshly classified documents, which carry no
// processed_at yet, by their published_at.
func (r *Ranker) RankDocuments(docs []models.ClassifiedDocument) []models.ClassifiedDocument {
	recs := make([]models.StoredRecord, len(docs))
	for i, d := range docs {
		recs[i] = models.StoredRecord{ClassifiedDocument: d}
	}
	ranked := r.Rank(recs)
	out := make([]models.ClassifiedDocument, len(ranked))
	for i, rec := range ranked {
		out[i] = rec.ClassifiedDocument
	}
	return out
}

func (r *Ranker) qualityAt(rec models.StoredRecord, now time.Time) float64 {
	q := rec.RelevanceScore + r.recencyAt(rec, now)
	if r.IsTrusted(rec.Source) {
		q += r.trustBonus
	}
	return q
}

func (r *Ranker) recencyAt(rec models.StoredRecord, now time.Time) float64 {
	var ref time.Time
	switch {
	case !rec.ProcessedAt.IsZero():
		ref = rec.ProcessedAt
	case rec.PublishedAt != nil && !rec.PublishedAt.IsZero():
		ref = *rec.PublishedAt
	default:
		return 0
	}
	ageHours := now.Sub(ref).Hours()
	// Future timestamps earn the full bonus rather than more than it.
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Max(0, MaxRecencyBonus-ageHours/24*RecencyDecayPerDay)
}
