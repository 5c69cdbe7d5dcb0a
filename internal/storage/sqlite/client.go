package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ainews/backend/pkg/logger"
)

const (
	driverName  = "sqlite3_ainews"
	lockStripes = 64
)

var registerOnce sync.Once

// registerDriver installs a sqlite3 driver whose connections carry the
// text_rank SQL function used to order full-text matches.
func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("text_rank", textRank, true)
			},
		})
	})
}

type Client struct {
	db  *sql.DB
	now func() time.Time

	clockMu   sync.Mutex
	lastWrite int64

	urlLocks [lockStripes]sync.Mutex
}

type Option func(*Client)

// WithClock replaces time.Now as the source of processed_at stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(dbPath string, opts ...Option) (*Client, error) {
	registerDriver()

	// _txlock=immediate takes the write lock at BEGIN so processed_at stamps
	// follow commit order.
	dsn := dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c := &Client{db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return c, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		published_at INTEGER,
		relevance_score REAL NOT NULL DEFAULT 0,
		topics TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '',
		is_research_breakthrough INTEGER NOT NULL DEFAULT 0,
		is_investment_news INTEGER NOT NULL DEFAULT 0,
		is_in_domain INTEGER NOT NULL DEFAULT 0,
		processed_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_source_processed ON articles(source, processed_at);
	CREATE INDEX IF NOT EXISTS idx_articles_processed ON articles(processed_at);
	CREATE INDEX IF NOT EXISTS idx_articles_relevance ON articles(relevance_score);

	CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts4(title, summary, body, keywords);

	CREATE TABLE IF NOT EXISTS failed_articles (
		url TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 1,
		last_attempt INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_failed_created ON failed_articles(created_at);

	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	var last int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(processed_at), 0) FROM articles`).Scan(&last); err != nil {
		return fmt.Errorf("failed to read last write time: %w", err)
	}
	c.clockMu.Lock()
	if last > c.lastWrite {
		c.lastWrite = last
	}
	c.clockMu.Unlock()

	logger.Info("SQLite schema initialized")
	return nil
}

// stamp returns a processed_at value in unix milliseconds that never goes
// below any previously issued stamp.
func (c *Client) stamp() int64 {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()

	ms := c.now().UnixMilli()
	if ms < c.lastWrite {
		ms = c.lastWrite
	}
	c.lastWrite = ms
	return ms
}

func (c *Client) lockFor(url string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(url))
	return &c.urlLocks[h.Sum32()%lockStripes]
}

// IsBusy reports whether err is SQLite lock contention that a later attempt may clear.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}
