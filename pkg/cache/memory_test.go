package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(10))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got string
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "v" {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var got string
	err := mc.Get(context.Background(), "absent", &got)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiration(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	if err := mc.Get(ctx, "k", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", time.Minute)
	time.Sleep(2 * time.Millisecond)
	_ = mc.Set(ctx, "b", "2", time.Minute)
	time.Sleep(2 * time.Millisecond)

	// Touch "a" so "b" becomes the LRU entry.
	var v string
	_ = mc.Get(ctx, "a", &v)
	time.Sleep(2 * time.Millisecond)

	_ = mc.Set(ctx, "c", "3", time.Minute)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b evicted")
	}
	if ok, _ := mc.Exists(ctx, "a"); !ok {
		t.Fatalf("expected a retained")
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}

	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock should fail: ok=%v err=%v", ok, err)
	}

	if err := mc.Unlock(ctx, "lock"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, _ = mc.TryLock(ctx, "lock", time.Minute)
	if !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

func TestCacheKey(t *testing.T) {
	got := Key("candles", "BTC", "1h", 500)
	if got != "candles:BTC:1h:500" {
		t.Fatalf("got %q", got)
	}
}
