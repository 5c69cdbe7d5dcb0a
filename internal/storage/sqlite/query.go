package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ainews/backend/internal/storage/models"
)

var termRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// MatchExpression turns free text into an FTS4 MATCH expression of quoted
// terms, AND-combined unless matchAny is set. It returns "" when text has no
// searchable terms.
func MatchExpression(text string, matchAny bool) string {
	terms := termRe.FindAllString(strings.ToLower(text), -1)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	sep := " "
	if matchAny {
		sep = " OR "
	}
	return strings.Join(terms, sep)
}

// Search returns one page of records matching every filter in q.
func (c *Client) Search(ctx context.Context, q models.Query) ([]models.StoredRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	builder, hasText := selectRecords(q, recordColumns...)
	builder = builder.
		OrderBy(orderFor(q.SortBy, hasText)...).
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	records := make([]models.StoredRecord, 0, q.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return records, nil
}

// Count returns how many records match the filters of q, ignoring pagination.
func (c *Client) Count(ctx context.Context, q models.Query) (int, error) {
	if err := q.ValidateFilters(); err != nil {
		return 0, err
	}

	builder, _ := selectRecords(q, "COUNT(*)")
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var n int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// TopicCounts splits the topic list of every record matching q and counts
// each topic. Results are ordered by count, then name.
func (c *Client) TopicCounts(ctx context.Context, q models.Query) ([]models.TopicCount, error) {
	if err := q.ValidateFilters(); err != nil {
		return nil, err
	}

	builder, _ := selectRecords(q, "articles.topics")
	builder = builder.Where(sq.NotEq{"articles.topics": ""})
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build topic query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var topics string
		if err := rows.Scan(&topics); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for _, t := range splitList(topics) {
			if t = strings.TrimSpace(t); t != "" {
				counts[t]++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	out := make([]models.TopicCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, models.TopicCount{Topic: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	return out, nil
}

// SourceStatistics aggregates count and relevance per source for records matching q.
func (c *Client) SourceStatistics(ctx context.Context, q models.Query) ([]models.SourceStatistics, error) {
	if err := q.ValidateFilters(); err != nil {
		return nil, err
	}

	builder, _ := selectRecords(q,
		"articles.source",
		"COUNT(*)",
		"AVG(articles.relevance_score)",
		"MAX(articles.relevance_score)",
		"MAX(articles.processed_at)",
	)
	builder = builder.GroupBy("articles.source").OrderBy("COUNT(*) DESC", "articles.source ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build statistics query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query source statistics: %w", err)
	}
	defer rows.Close()

	var out []models.SourceStatistics
	for rows.Next() {
		var (
			s      models.SourceStatistics
			latest int64
		)
		if err := rows.Scan(&s.Source, &s.Count, &s.AvgRelevance, &s.MaxRelevance, &latest); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.Latest = time.UnixMilli(latest)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// selectRecords builds the filtered FROM/WHERE part shared by every read. The
// full-text match runs in a subquery so matchinfo is always evaluated in a
// MATCH context.
func selectRecords(q models.Query, columns ...string) (sq.SelectBuilder, bool) {
	builder := sq.Select(columns...).From("articles")

	match := MatchExpression(q.Text, q.MatchAny)
	if match != "" {
		builder = builder.JoinClause(
			`JOIN (SELECT docid, text_rank(matchinfo(articles_fts, 'pcx')) AS text_score `+
				`FROM articles_fts WHERE articles_fts MATCH ?) AS fts ON fts.docid = articles.id`,
			match,
		)
	}

	if sources := nonBlank(q.Sources); len(sources) > 0 {
		builder = builder.Where(sq.Eq{"articles.source": sources})
	}

	if topics := nonBlank(q.Topics); len(topics) > 0 {
		anyTopic := sq.Or{}
		for _, t := range topics {
			anyTopic = append(anyTopic, sq.Expr(`articles.topics LIKE ? ESCAPE '\'`, "%"+escapeLike(t)+"%"))
		}
		builder = builder.Where(anyTopic)
	}

	if q.MinRelevance != nil {
		builder = builder.Where(sq.GtOrEq{"articles.relevance_score": *q.MinRelevance})
	}
	if q.Start != nil {
		builder = builder.Where(sq.GtOrEq{"articles.processed_at": q.Start.UnixMilli()})
	}
	if q.End != nil {
		builder = builder.Where(sq.LtOrEq{"articles.processed_at": q.End.UnixMilli()})
	}

	for _, kw := range nonBlank(q.ExcludeKeywords) {
		builder = builder.Where(
			sq.Expr(`instr(lower(articles.title || ' ' || articles.summary), ?) = 0`, strings.ToLower(kw)),
		)
	}

	return builder, match != ""
}

func orderFor(sortBy models.SortBy, hasText bool) []string {
	switch sortBy {
	case models.SortDate:
		return []string{"articles.processed_at DESC", "articles.id DESC"}
	case models.SortSource:
		return []string{"articles.source ASC", "articles.relevance_score DESC", "articles.processed_at DESC", "articles.id DESC"}
	}
	if hasText {
		return []string{"fts.text_score DESC", "articles.relevance_score DESC", "articles.processed_at DESC", "articles.id DESC"}
	}
	return []string{"articles.relevance_score DESC", "articles.processed_at DESC", "articles.id DESC"}
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
