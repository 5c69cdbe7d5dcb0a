package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ainews/backend/pkg/circuitbreaker"
)

// unreachable points at a port nothing listens on.
func unreachable(t *testing.T) *Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := New(rdb, time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUnavailableRedisOpensBreaker(t *testing.T) {
	t.Parallel()

	c := unreachable(t)
	ctx := context.Background()

	var page []string
	for i := 0; i < 3; i++ {
		found, err := c.GetQuery(ctx, "abc", &page)
		if err == nil || found {
			t.Fatalf("expected an error from an unreachable redis, got found=%v err=%v", found, err)
		}
	}
	if c.Breaker().State() != circuitbreaker.StateOpen {
		t.Fatalf("expected the breaker to open, got %s", c.Breaker().State())
	}

	_, err := c.GetQuery(ctx, "abc", &page)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen once open, got %v", err)
	}
	if err := c.SetQuery(ctx, "abc", []string{"x"}); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected SetQuery to short-circuit, got %v", err)
	}
}

func TestSetQueryRejectsUnencodable(t *testing.T) {
	t.Parallel()

	c := unreachable(t)
	if err := c.SetQuery(context.Background(), "abc", func() {}); err == nil {
		t.Fatalf("expected marshal error")
	}
	if c.Breaker().Counts().Requests != 0 {
		t.Fatalf("marshal errors must not reach redis")
	}
}

func TestGenerationUnavailable(t *testing.T) {
	t.Parallel()

	c := unreachable(t)
	if _, err := c.Generation(context.Background()); err == nil {
		t.Fatalf("expected an error reading the generation from an unreachable redis")
	}
	if err := c.InvalidateSearchCache(context.Background()); err == nil {
		t.Fatalf("expected invalidation to fail against an unreachable redis")
	}
}
