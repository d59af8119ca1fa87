package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache is an optional short-TTL read-through cache in front of access
// token validation. Entries never outlive the underlying record: the cache
// TTL is capped at the token's remaining lifetime, and revocation clears the
// user's entries eagerly.
type TokenCache interface {
	Get(ctx context.Context, hash string) (userID uint, expiresAt time.Time, ok bool)
	Set(ctx context.Context, hash string, userID uint, expiresAt time.Time)
	InvalidateUser(ctx context.Context, userID uint)
}

// RedisTokenCache backs TokenCache with redis. A per-user set indexes the
// hash keys so InvalidateUser can delete them without scanning.
type RedisTokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenCache(client *redis.Client, ttl time.Duration) *RedisTokenCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisTokenCache{client: client, ttl: ttl}
}

func cacheKey(hash string) string   { return "auth:at:" + hash }
func userSetKey(userID uint) string { return fmt.Sprintf("auth:uat:%d", userID) }

func (c *RedisTokenCache) Get(ctx context.Context, hash string) (uint, time.Time, bool) {
	val, err := c.client.Get(ctx, cacheKey(hash)).Result()
	if err != nil {
		// Miss and outage look the same to the caller; validation falls
		// through to the store either way.
		return 0, time.Time{}, false
	}

	parts := strings.SplitN(val, "|", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, false
	}
	userID, err1 := strconv.ParseUint(parts[0], 10, 64)
	unix, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, time.Time{}, false
	}

	expiresAt := time.Unix(unix, 0)
	if time.Now().After(expiresAt) {
		return 0, time.Time{}, false
	}
	return uint(userID), expiresAt, true
}

func (c *RedisTokenCache) Set(ctx context.Context, hash string, userID uint, expiresAt time.Time) {
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return
	}
	ttl := c.ttl
	if remaining < ttl {
		ttl = remaining
	}

	val := fmt.Sprintf("%d|%d", userID, expiresAt.Unix())
	pipe := c.client.Pipeline()
	pipe.Set(ctx, cacheKey(hash), val, ttl)
	pipe.SAdd(ctx, userSetKey(userID), hash)
	pipe.Expire(ctx, userSetKey(userID), ttl)
	_, _ = pipe.Exec(ctx)
}

func (c *RedisTokenCache) InvalidateUser(ctx context.Context, userID uint) {
	hashes, err := c.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, cacheKey(h))
	}
	keys = append(keys, userSetKey(userID))
	c.client.Del(ctx, keys...)
}
