package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ainews/backend/internal/metrics"
	"github.com/ainews/backend/pkg/circuitbreaker"
	"github.com/ainews/backend/pkg/logger"
)

const (
	searchPrefix  = "search:page:"
	generationKey = "search:generation"
	cacheType     = "search"
)

// Client caches search result pages. Every call goes through a circuit breaker
// so an unreachable Redis degrades to cache misses instead of slow requests.
type Client struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
}

type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return New(client, opts.TTL), nil
}

// New wraps an existing client without checking connectivity.
func New(client *redis.Client, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	breaker := circuitbreaker.NewCircuitBreaker("redis", circuitbreaker.Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, _, to circuitbreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})
	return &Client{client: client, breaker: breaker, ttl: ttl}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Generation returns the current search cache generation, 0 before the first
// invalidation.
func (c *Client) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		gen, err = c.client.Get(ctx, generationKey).Int64()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cache generation: %w", err)
	}
	return gen, nil
}

// SetQuery stores a JSON encoded page under the query hash.
func (c *Client) SetQuery(ctx context.Context, queryHash string, response any) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, searchPrefix+queryHash, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set query cache: %w", err)
	}

	logger.Debug("Query cached", zap.String("query_hash", queryHash), zap.Duration("ttl", c.ttl))
	return nil
}

// GetQuery decodes a cached page into response and reports whether it was found.
func (c *Client) GetQuery(ctx context.Context, queryHash string, response any) (bool, error) {
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, searchPrefix+queryHash).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return false, fmt.Errorf("failed to get query cache: %w", err)
	}

	if err := json.Unmarshal(data, response); err != nil {
		return false, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	logger.Debug("Query cache hit", zap.String("query_hash", queryHash))
	return true, nil
}

// InvalidateSearchCache bumps the generation, which makes every cached page
// unreachable, then drops the old pages. Called after index writes.
func (c *Client) InvalidateSearchCache(ctx context.Context) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
			return err
		}
		iter := c.client.Scan(ctx, 0, searchPrefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		return c.client.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate search cache: %w", err)
	}

	logger.Debug("Search cache invalidated")
	return nil
}
