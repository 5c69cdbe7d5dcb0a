// Package dedup collapses near-duplicate records by title similarity.
package dedup

import (
	"regexp"
	"strings"

	"github.com/ainews/backend/internal/storage/models"
)

const DefaultThreshold = 0.7

var wordRe = regexp.MustCompile(`\w+`)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "as": {},
	"is": {}, "was": {}, "are": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "should": {}, "could": {}, "may": {}, "might": {}, "must": {}, "can": {},
}

// IsStopWord reports whether w is ignored by the similarity metric.
func IsStopWord(w string) bool {
	_, ok := stopWords[strings.ToLower(w)]
	return ok
}

// Tokens returns the lower-cased word set of s without stop words.
func Tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// Similarity is the Jaccard index of the token sets of a and b, or 0 when
// either set is empty.
func Similarity(a, b string) float64 {
	return jaccard(Tokens(a), Tokens(b))
}

type Dropped[T any] struct {
	Item       T
	KeptIndex  int
	Similarity float64
}

type Deduplicator struct {
	threshold float64
}

// New returns a Deduplicator; a threshold outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{threshold: threshold}
}

func (d *Deduplicator) Threshold() float64 {
	return d.threshold
}

func (d *Deduplicator) IsDuplicate(a, b string) bool {
	return Similarity(a, b) >= d.threshold
}

// Dedupe keeps the first-seen document of every group of near-duplicate
// titles, preserving input order.
func (d *Deduplicator) Dedupe(docs []models.ClassifiedDocument) []models.ClassifiedDocument {
	kept, _ := Filter(d, docs, documentTitle)
	return kept
}

func (d *Deduplicator) DedupeWithReport(docs []models.ClassifiedDocument) ([]models.ClassifiedDocument, []Dropped[models.ClassifiedDocument]) {
	return Filter(d, docs, documentTitle)
}

func documentTitle(doc models.ClassifiedDocument) string {
	return doc.Title
}

// Filter runs the greedy first-seen-wins pass over any item type. Each dropped
// item is reported with the index in kept of the item it matched.
func Filter[T any](d *Deduplicator, items []T, title func(T) string) ([]T, []Dropped[T]) {
	kept := make([]T, 0, len(items))
	keptTokens := make([]map[string]struct{}, 0, len(items))
	var dropped []Dropped[T]

	for _, item := range items {
		tokens := Tokens(title(item))
		match, sim := -1, 0.0
		for i, kt := range keptTokens {
			if s := jaccard(tokens, kt); s >= d.threshold {
				match, sim = i, s
				break
			}
		}
		if match >= 0 {
			dropped = append(dropped, Dropped[T]{Item: item, KeptIndex: match, Similarity: sim})
			continue
		}
		kept = append(kept, item)
		keptTokens = append(keptTokens, tokens)
	}

	return kept, dropped
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
