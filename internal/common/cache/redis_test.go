package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCacheWithConfig(&RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheBasicOps(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if v, err := c.Get(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("expected empty miss, got %q %v", v, err)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if v, _ := c.Get(ctx, "k"); v != "v" {
		t.Fatalf("unexpected value %q", v)
	}
	if n, _ := c.Exists(ctx, "k", "missing"); n != 1 {
		t.Fatalf("expected 1 existing key, got %d", n)
	}

	ok, err := c.SetNX(ctx, "counter", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx should succeed: %v", err)
	}
	if ok, _ := c.SetNX(ctx, "counter", 1, time.Minute); ok {
		t.Fatalf("second setnx should fail")
	}
	if n, _ := c.Incr(ctx, "counter"); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	if err := c.Expire(ctx, "counter", time.Second); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if n, _ := c.Exists(ctx, "counter"); n != 0 {
		t.Fatalf("counter should have expired")
	}

	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if err := c.Del(ctx); err != nil {
		t.Fatalf("empty del failed: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestNewRedisCacheWithConfigErrors(t *testing.T) {
	if _, err := NewRedisCacheWithConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewRedisCacheWithConfig(&RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
	if _, err := NewRedisCacheWithClient(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestGetWithCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(value int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			calls++
			return value, nil
		}
	}
	isEmpty := func(v int) bool { return v == 0 }
	marshal := func(v int) (string, error) { return strconv.Itoa(v), nil }
	unmarshal := func(s string) (int, error) { return strconv.Atoi(s) }

	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "hit", time.Minute, time.Minute, isEmpty, marshal, unmarshal, load(7))
		if err != nil || got != 7 {
			t.Fatalf("unexpected result %d %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one load for a cached hit, got %d", calls)
	}

	calls = 0
	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "miss", time.Minute, time.Minute, isEmpty, marshal, unmarshal, load(0))
		if err != nil || got != 0 {
			t.Fatalf("unexpected result %d %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected null value caching, got %d loads", calls)
	}
	if v, _ := c.Get(ctx, "miss"); v != NullCacheValue {
		t.Fatalf("expected null marker, got %q", v)
	}

	boom := errors.New("boom")
	_, err := GetWithCached(ctx, c, "err", time.Minute, time.Minute, isEmpty, marshal, unmarshal, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if n, _ := c.Exists(ctx, "err"); n != 0 {
		t.Fatalf("errors must not be cached")
	}
}

func TestJitterTTL(t *testing.T) {
	if JitterTTL(0) != 0 {
		t.Fatalf("zero ttl must stay zero")
	}
	for i := 0; i < 20; i++ {
		got := JitterTTL(10 * time.Minute)
		if got > 10*time.Minute || got < 9*time.Minute {
			t.Fatalf("jitter out of range: %s", got)
		}
	}
}
