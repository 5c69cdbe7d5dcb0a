// Package classifier scores documents for domain relevance against a Lexicon.
package classifier

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ainews/backend/internal/lexicon"
	"github.com/ainews/backend/internal/storage/models"
)

const (
	titleCap         = 30.0
	titlePerKeyword  = 5.0
	densityCap       = 30.0
	densityFactor    = 3.0
	categoryCap      = 20.0
	highValueCap     = 15.0
	highValueEach    = 3.0
	prominenceBonus  = 5.0
	secondaryCap     = 10.0
	secondaryEach    = 2.0
	canonicalBonus   = 5.0
	breakthroughCap  = 15.0
	breakthroughEach = 3.0

	investmentPenalty = 50.0
	breakthroughBoost = 15.0

	InDomainThreshold = 30.0
	MaxKeywords       = 20
	minTopicMatches   = 2
)

// Breakdown exposes every term that went into a score.
type Breakdown struct {
	Title           float64 `json:"title"`
	Density         float64 `json:"density"`
	Category        float64 `json:"category"`
	HighValue       float64 `json:"high_value"`
	TitleProminence float64 `json:"title_prominence"`
	Secondary       float64 `json:"secondary"`
	Breakthrough    float64 `json:"breakthrough"`
	// Base is the clamped sum of the terms, before gate adjustments.
	Base    float64 `json:"base"`
	Penalty float64 `json:"penalty"`
	Boost   float64 `json:"boost"`
}

type Result struct {
	models.Classification
	Breakdown Breakdown `json:"breakdown"`
}

type Classifier struct {
	lex        *lexicon.Lexicon
	categories []lexicon.Category
	keywords   []string

	highValue     []string
	breakthrough  []string
	secondary     []string
	canonical     []string
	coreTitle     []string
	investment    []string
	productLaunch []string

	workers int
}

type Option func(*Classifier)

// WithWorkers bounds the goroutines used by ClassifyBatch.
func WithWorkers(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.workers = n
		}
	}
}

func New(lex *lexicon.Lexicon, opts ...Option) *Classifier {
	c := &Classifier{
		lex:           lex,
		categories:    lex.Categories(),
		keywords:      lex.Keywords(),
		highValue:     lex.HighValue(),
		breakthrough:  lex.Breakthrough(),
		secondary:     lex.Secondary(),
		canonical:     lex.CanonicalMarkers(),
		coreTitle:     lex.CoreTitleTerms(),
		investment:    lex.Investment(),
		productLaunch: lex.ProductLaunch(),
		workers:       runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Lexicon() *lexicon.Lexicon {
	return c.lex
}

// Classify is a pure function of title, body and the lexicon.
func (c *Classifier) Classify(title, body string) Result {
	titleLower := strings.ToLower(title)
	text := strings.ToLower(title + " " + body)

	var b Breakdown

	for _, kw := range c.keywords {
		if strings.Contains(titleLower, kw) {
			b.Title += math.Min(float64(len(kw))/2, titlePerKeyword)
		}
	}
	b.Title = math.Min(b.Title, titleCap)

	if words := len(strings.Fields(text)); words > 0 {
		density := float64(countPresent(text, c.keywords)) / float64(words) * 100
		b.Density = math.Min(density*densityFactor, densityCap)
	}

	var topics []string
	for _, cat := range c.categories {
		matches := countPresent(text, cat.Keywords)
		b.Category += float64(matches) * cat.Weight
		if matches >= minTopicMatches {
			topics = append(topics, cat.Name)
		}
	}
	b.Category = math.Min(b.Category, categoryCap)

	b.HighValue = math.Min(float64(countPresent(text, c.highValue))*highValueEach, highValueCap)

	if countPresent(titleLower, c.coreTitle) > 0 {
		b.TitleProminence = prominenceBonus
	}

	secondary := countPresent(text, c.secondary)
	canonical := countPresent(text, c.canonical) > 0
	if secondary > 0 {
		b.Secondary = math.Min(float64(secondary)*secondaryEach, secondaryCap)
		if canonical {
			b.Secondary += canonicalBonus
		}
	}

	breakthroughs := countPresent(text, c.breakthrough)
	b.Breakthrough = math.Min(float64(breakthroughs)*breakthroughEach, breakthroughCap)

	b.Base = clamp(b.Title + b.Density + b.Category + b.HighValue + b.TitleProminence + b.Secondary + b.Breakthrough)

	investmentTotal := countPresent(text, c.investment)
	isInvestment := countPresent(titleLower, c.investment) >= 2 ||
		investmentTotal >= 5 ||
		(investmentTotal >= 2 && countPresent(text, c.productLaunch) >= 2)

	isBreakthrough := breakthroughs >= 2 ||
		(breakthroughs >= 1 && secondary >= 3) ||
		(canonical && secondary >= 2)

	// Penalty first, then boost.
	score := b.Base
	if isInvestment && !isBreakthrough {
		b.Penalty = math.Min(investmentPenalty, score)
		score -= b.Penalty
	}
	if isBreakthrough {
		b.Boost = math.Min(breakthroughBoost, 100-score)
		score += b.Boost
	}
	score = clamp(score)

	return Result{
		Classification: models.Classification{
			RelevanceScore:         score,
			Topics:                 nonNil(topics),
			Keywords:               c.extractKeywords(titleLower, text),
			IsResearchBreakthrough: isBreakthrough,
			IsInvestmentNews:       isInvestment,
			IsInDomain:             (score >= InDomainThreshold || len(topics) > 0) && !(isInvestment && !isBreakthrough),
		},
		Breakdown: b,
	}
}

func (c *Classifier) ClassifyDocument(doc models.Document) models.ClassifiedDocument {
	return models.ClassifiedDocument{
		Document:       doc,
		Classification: c.Classify(doc.Title, doc.Body).Classification,
	}
}

// ClassifyBatch classifies docs in parallel and returns results in input order.
func (c *Classifier) ClassifyBatch(ctx context.Context, docs []models.Document) ([]models.ClassifiedDocument, error) {
	out := make([]models.ClassifiedDocument, len(docs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)
	for idx := range docs {
		idx := idx
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("classification cancelled: %w", err)
			}
			out[idx] = c.ClassifyDocument(docs[idx])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// extractKeywords collects matched keywords in lexicon enumeration order with
// title matches moved to the front.
func (c *Classifier) extractKeywords(titleLower, text string) []string {
	seen := make(map[string]struct{})
	var inTitle, rest []string

	for _, set := range [][]string{c.keywords, c.highValue, c.secondary, c.breakthrough} {
		for _, kw := range set {
			if _, ok := seen[kw]; ok || !strings.Contains(text, kw) {
				continue
			}
			seen[kw] = struct{}{}
			if strings.Contains(titleLower, kw) {
				inTitle = append(inTitle, kw)
			} else {
				rest = append(rest, kw)
			}
		}
	}

	keywords := append(inTitle, rest...)
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return nonNil(keywords)
}

func countPresent(text string, kws []string) int {
	n := 0
	for _, kw := range kws {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(v, 100))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
