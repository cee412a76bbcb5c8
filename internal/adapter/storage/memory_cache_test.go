package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Now()
	c := NewMemoryCacheWithClock(func() time.Time { return now })
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit")
	}
	if ttl := c.TTL("k"); ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", ttl)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected miss after expiry")
	}
}

func TestMemoryCache_Lock(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	token, ok, err := c.TryLock(ctx, "lock", 0, time.Second)
	if err != nil || !ok {
		t.Fatalf("expected acquire, ok=%v err=%v", ok, err)
	}

	if _, ok, _ := c.TryLock(ctx, "lock", 50*time.Millisecond, time.Second); ok {
		t.Error("expected second acquire to time out")
	}

	c.Unlock(ctx, "lock", "someone-else")
	if _, ok, _ := c.TryLock(ctx, "lock", 0, time.Second); ok {
		t.Error("foreign token must not release the lock")
	}

	c.Unlock(ctx, "lock", token)
	if _, ok, _ := c.TryLock(ctx, "lock", 0, time.Second); !ok {
		t.Error("expected acquire after owner released")
	}
}

func TestMemoryCache_Lock_ContextCancelled(t *testing.T) {
	c := NewMemoryCache()
	c.TryLock(context.Background(), "lock", 0, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := c.TryLock(ctx, "lock", time.Second, time.Second)
	if ok || err == nil {
		t.Errorf("expected cancellation error, ok=%v err=%v", ok, err)
	}
}
