package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ainews/backend/internal/storage/models"
	"github.com/ainews/backend/pkg/logger"
)

// RecordFailure stores a processing failure for url. Repeated failures for
// the same url bump its retry count and keep the latest error.
func (c *Client) RecordFailure(ctx context.Context, url, title, source, message string) error {
	if url == "" {
		return models.ErrMissingURL
	}

	now := c.now().UnixMilli()
	query := `
		INSERT INTO failed_articles (url, title, source, error_message, retry_count, last_attempt, created_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			error_message = excluded.error_message,
			retry_count = failed_articles.retry_count + 1,
			last_attempt = excluded.last_attempt
	`

	if _, err := c.db.ExecContext(ctx, query, url, title, source, message, now, now); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}

	logger.Debug("Failure recorded", zap.String("url", url), zap.String("error", message))
	return nil
}

func (c *Client) Failures(ctx context.Context, limit int) ([]models.FailedRecord, error) {
	query := `
		SELECT url, title, source, error_message, retry_count, last_attempt
		FROM failed_articles
		ORDER BY last_attempt DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	defer rows.Close()

	var out []models.FailedRecord
	for rows.Next() {
		var (
			f    models.FailedRecord
			last int64
		)
		if err := rows.Scan(&f.URL, &f.Title, &f.Source, &f.Error, &f.RetryCount, &last); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.FailedAt = time.UnixMilli(last)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

func (c *Client) SetState(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := c.db.ExecContext(ctx, query, key, value, c.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

func (c *Client) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: state %s", models.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// Stats reports totals, per-source counts, records processed since local
// midnight and the number of failed records.
func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats

	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.TotalRecords); err != nil {
		return stats, fmt.Errorf("failed to count records: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT source, COUNT(*) AS n
		FROM articles
		GROUP BY source
		ORDER BY n DESC, source ASC
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to count by source: %w", err)
	}
	defer rows.Close()

	stats.BySource = []models.SourceCount{}
	for rows.Next() {
		var sc models.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return stats, fmt.Errorf("failed to scan row: %w", err)
		}
		stats.BySource = append(stats.BySource, sc)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate rows: %w", err)
	}

	now := c.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE processed_at >= ?`, midnight.UnixMilli(),
	).Scan(&stats.ProcessedToday)
	if err != nil {
		return stats, fmt.Errorf("failed to count today's records: %w", err)
	}

	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_articles`).Scan(&stats.FailedRecords); err != nil {
		return stats, fmt.Errorf("failed to count failures: %w", err)
	}

	return stats, nil
}
