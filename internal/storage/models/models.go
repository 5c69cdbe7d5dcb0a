package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrMissingURL   = errors.New("record url is required")
	ErrInvalidQuery = errors.New("invalid query")
	ErrNotFound     = errors.New("record not found")
)

// Document is a raw item handed over by the acquisition layer.
type Document struct {
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type Classification struct {
	RelevanceScore         float64  `json:"relevance_score"`
	Topics                 []string `json:"topics"`
	Keywords               []string `json:"keywords"`
	IsResearchBreakthrough bool     `json:"is_research_breakthrough"`
	IsInvestmentNews       bool     `json:"is_investment_news"`
	IsInDomain             bool     `json:"is_in_domain"`
}

type ClassifiedDocument struct {
	Document
	Classification
}

// StoredRecord is a classified document as held by the retrieval index.
// ProcessedAt is assigned by the index on every write; CreatedAt survives upserts.
type StoredRecord struct {
	ID int64 `json:"id"`
	ClassifiedDocument
	Summary     string    `json:"summary,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
	SortSource    SortBy = "source"
	SortQuality   SortBy = "quality"
)

// Query is a read request against the retrieval index. Nil pointers and empty
// slices mean the filter is absent.
type Query struct {
	Text            string     `json:"text,omitempty"`
	MatchAny        bool       `json:"match_any,omitempty"`
	Sources         []string   `json:"sources,omitempty"`
	Topics          []string   `json:"topics,omitempty"`
	MinRelevance    *float64   `json:"min_relevance,omitempty"`
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	ExcludeKeywords []string   `json:"exclude_keywords,omitempty"`
	SortBy          SortBy     `json:"sort_by,omitempty"`
	Limit           int        `json:"limit"`
	Offset          int        `json:"offset"`
}

// Validate checks the full query shape, including pagination.
func (q Query) Validate() error {
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidQuery, q.Limit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidQuery, q.Offset)
	}
	return q.ValidateFilters()
}

// ValidateFilters checks everything but pagination; aggregations ignore Limit and Offset.
func (q Query) ValidateFilters() error {
	if q.Start != nil && q.End != nil && q.Start.After(*q.End) {
		return fmt.Errorf("%w: date range start %s is after end %s",
			ErrInvalidQuery, q.Start.Format(time.RFC3339), q.End.Format(time.RFC3339))
	}
	if q.MinRelevance != nil && (math.IsNaN(*q.MinRelevance) || math.IsInf(*q.MinRelevance, 0)) {
		return fmt.Errorf("%w: min_relevance must be a finite number", ErrInvalidQuery)
	}
	switch q.SortBy {
	case "", SortRelevance, SortDate, SortSource, SortQuality:
	default:
		return fmt.Errorf("%w: unknown sort_by %q", ErrInvalidQuery, q.SortBy)
	}
	return nil
}

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type Stats struct {
	TotalRecords   int           `json:"total_records"`
	BySource       []SourceCount `json:"by_source"`
	ProcessedToday int           `json:"processed_today"`
	FailedRecords  int           `json:"failed_records"`
}

// SourceStatistics summarizes per-source quality for a processed_at window.
type SourceStatistics struct {
	Source       string    `json:"source"`
	Count        int       `json:"count"`
	AvgRelevance float64   `json:"avg_relevance"`
	MaxRelevance float64   `json:"max_relevance"`
	Latest       time.Time `json:"latest"`
}

type FailedRecord struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Source     string    `json:"source"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
}
