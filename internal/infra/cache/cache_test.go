package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/infra/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[int64](5 * time.Minute)
	defer c.Close()

	c.Set("business_profile", 12345)
	val, ok := c.Get("business_profile")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != 12345 {
		t.Errorf("expected 12345, got %d", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[int64](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.New[int64](time.Minute, cache.WithClock(clock.Now))
	defer c.Close()

	c.Set("business_profile", 1)
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("business_profile"); !ok {
		t.Fatal("expected entry before ttl")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("business_profile"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := cache.New[string](0)
	defer c.Close()

	c.Set("key1", "value1")
	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected miss with caching disabled")
	}
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()

	c.Set("key1", "value1")
	if _, ok := c.Get("key1"); !ok {
		t.Fatal("expected cache to remain usable after Close")
	}
}
