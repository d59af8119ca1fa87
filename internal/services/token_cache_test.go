package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisTokenCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenCache(client, ttl), mr
}

func TestRedisTokenCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, 30*time.Second)
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)

	cache.Set(ctx, "hash-1", 42, expiresAt)

	userID, gotExpiry, ok := cache.Get(ctx, "hash-1")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if userID != 42 {
		t.Errorf("userID = %d, expected 42", userID)
	}
	if !gotExpiry.Equal(expiresAt) {
		t.Errorf("expiresAt = %v, expected %v", gotExpiry, expiresAt)
	}
}

func TestRedisTokenCache_Miss(t *testing.T) {
	cache, _ := newTestCache(t, 30*time.Second)

	if _, _, ok := cache.Get(context.Background(), "never-set"); ok {
		t.Error("expected a miss for an unknown hash")
	}
}

func TestRedisTokenCache_TTLCappedAtTokenLifetime(t *testing.T) {
	// Cache TTL 1h, token expires in 10s: the entry must not outlive the token.
	cache, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	cache.Set(ctx, "hash-2", 7, time.Now().Add(10*time.Second))

	ttl := mr.TTL("auth:at:hash-2")
	if ttl > 10*time.Second {
		t.Errorf("cache entry TTL = %v, must not exceed token lifetime", ttl)
	}
	if ttl <= 0 {
		t.Error("cache entry should carry a TTL")
	}
}

func TestRedisTokenCache_NeverStoresExpired(t *testing.T) {
	cache, _ := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	cache.Set(ctx, "hash-3", 7, time.Now().Add(-time.Minute))

	if _, _, ok := cache.Get(ctx, "hash-3"); ok {
		t.Error("expired token must not be cached")
	}
}

func TestRedisTokenCache_InvalidateUser(t *testing.T) {
	cache, _ := newTestCache(t, 30*time.Second)
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)

	cache.Set(ctx, "u9-a", 9, expiresAt)
	cache.Set(ctx, "u9-b", 9, expiresAt)
	cache.Set(ctx, "u10-a", 10, expiresAt)

	cache.InvalidateUser(ctx, 9)

	if _, _, ok := cache.Get(ctx, "u9-a"); ok {
		t.Error("user 9 entry a should be gone")
	}
	if _, _, ok := cache.Get(ctx, "u9-b"); ok {
		t.Error("user 9 entry b should be gone")
	}
	if _, _, ok := cache.Get(ctx, "u10-a"); !ok {
		t.Error("user 10 entry should survive")
	}
}

func TestRedisTokenCache_OutageReadsAsMiss(t *testing.T) {
	cache, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	cache.Set(ctx, "hash-4", 4, time.Now().Add(time.Hour))
	mr.Close()

	if _, _, ok := cache.Get(ctx, "hash-4"); ok {
		t.Error("an unreachable cache must read as a miss")
	}
}
