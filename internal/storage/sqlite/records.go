package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
)

const listSeparator = ","

var recordColumns = []string{
	"articles.id",
	"articles.url",
	"articles.title",
	"articles.body",
	"articles.summary",
	"articles.source",
	"articles.published_at",
	"articles.relevance_score",
	"articles.topics",
	"articles.keywords",
	"articles.is_research_breakthrough",
	"articles.is_investment_news",
	"articles.is_in_domain",
	"articles.processed_at",
	"articles.created_at",
}

// Upsert inserts rec or replaces the record stored under the same URL. The
// full-text row is rewritten in the same transaction. processed_at is reset
// to the write time; created_at survives replacement.
func (c *Client) Upsert(ctx context.Context, rec models.StoredRecord) (models.StoredRecord, error) {
	rec.URL = strings.TrimSpace(rec.URL)
	if rec.URL == "" {
		return models.StoredRecord{}, models.ErrMissingURL
	}

	lock := c.lockFor(rec.URL)
	lock.Lock()
	defer lock.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	processed := c.stamp()

	query := `
		INSERT INTO articles (url, title, body, summary, source, published_at, relevance_score, topics, keywords,
			is_research_breakthrough, is_investment_news, is_in_domain, processed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			summary = excluded.summary,
			source = excluded.source,
			published_at = excluded.published_at,
			relevance_score = excluded.relevance_score,
			topics = excluded.topics,
			keywords = excluded.keywords,
			is_research_breakthrough = excluded.is_research_breakthrough,
			is_investment_news = excluded.is_investment_news,
			is_in_domain = excluded.is_in_domain,
			processed_at = excluded.processed_at
		RETURNING id, created_at
	`

	topics := strings.Join(rec.Topics, listSeparator)
	keywords := strings.Join(rec.Keywords, listSeparator)

	var createdAt int64
	err = tx.QueryRowContext(ctx, query,
		rec.URL,
		rec.Title,
		rec.Body,
		rec.Summary,
		rec.Source,
		nullableMillis(rec.PublishedAt),
		rec.RelevanceScore,
		topics,
		keywords,
		rec.IsResearchBreakthrough,
		rec.IsInvestmentNews,
		rec.IsInDomain,
		processed,
		processed,
	).Scan(&rec.ID, &createdAt)
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to upsert record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles_fts WHERE docid = ?`, rec.ID); err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to clear full-text row: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO articles_fts (docid, title, summary, body, keywords) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Summary, rec.Body, keywords,
	)
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to index record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to commit record: %w", err)
	}

	rec.ProcessedAt = time.UnixMilli(processed)
	rec.CreatedAt = time.UnixMilli(createdAt)

	logger.Debug("Record upserted", zap.Int64("id", rec.ID), zap.String("url", rec.URL))
	return rec, nil
}

func (c *Client) Get(ctx context.Context, id int64) (models.StoredRecord, error) {
	query := `SELECT ` + strings.Join(recordColumns, ", ") + ` FROM articles WHERE articles.id = ?`
	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredRecord{}, fmt.Errorf("%w: id %d", models.ErrNotFound, id)
	}
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (c *Client) GetByURL(ctx context.Context, url string) (models.StoredRecord, error) {
	query := `SELECT ` + strings.Join(recordColumns, ", ") + ` FROM articles WHERE articles.url = ?`
	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredRecord{}, fmt.Errorf("%w: url %s", models.ErrNotFound, url)
	}
	if err != nil {
		return models.StoredRecord{}, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// Exists reports whether a record with url has been stored.
func (c *Client) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE url = ? LIMIT 1`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check record: %w", err)
	}
	return true, nil
}

type CleanupResult struct {
	Records  int64 `json:"records"`
	Failures int64 `json:"failures"`
}

// Cleanup removes records processed before cutoff, their full-text rows and
// failures first seen before cutoff.
func (c *Client) Cleanup(ctx context.Context, cutoff time.Time) (CleanupResult, error) {
	var res CleanupResult
	ms := cutoff.UnixMilli()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM articles_fts WHERE docid IN (SELECT id FROM articles WHERE processed_at < ?)`, ms)
	if err != nil {
		return res, fmt.Errorf("failed to delete full-text rows: %w", err)
	}

	r, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE processed_at < ?`, ms)
	if err != nil {
		return res, fmt.Errorf("failed to delete records: %w", err)
	}
	res.Records, _ = r.RowsAffected()

	r, err = tx.ExecContext(ctx, `DELETE FROM failed_articles WHERE created_at < ?`, ms)
	if err != nil {
		return res, fmt.Errorf("failed to delete failures: %w", err)
	}
	res.Failures, _ = r.RowsAffected()

	if err := tx.Commit(); err != nil {
		return CleanupResult{}, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	logger.Info("Old data cleaned up",
		zap.Int64("records", res.Records),
		zap.Int64("failures", res.Failures),
		zap.Time("cutoff", cutoff),
	)
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.StoredRecord, error) {
	var (
		rec                    models.StoredRecord
		published              sql.NullInt64
		topics, keywords       string
		processedAt, createdAt int64
	)

	err := row.Scan(
		&rec.ID,
		&rec.URL,
		&rec.Title,
		&rec.Body,
		&rec.Summary,
		&rec.Source,
		&published,
		&rec.RelevanceScore,
		&topics,
		&keywords,
		&rec.IsResearchBreakthrough,
		&rec.IsInvestmentNews,
		&rec.IsInDomain,
		&processedAt,
		&createdAt,
	)
	if err != nil {
		return models.StoredRecord{}, err
	}

	if published.Valid {
		t := time.UnixMilli(published.Int64)
		rec.PublishedAt = &t
	}
	rec.Topics = splitList(topics)
	rec.Keywords = splitList(keywords)
	rec.ProcessedAt = time.UnixMilli(processedAt)
	rec.CreatedAt = time.UnixMilli(createdAt)

	return rec, nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, listSeparator)
}

func nullableMillis(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
