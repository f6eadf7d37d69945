// Package cache holds Redis-backed caches in front of the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"accountsvc/internal/account"
)

const defaultPermTTL = 5 * time.Minute

// PermissionCache keeps resolved per-user permission-code sets in Redis.
// Best effort: a Redis failure degrades to the store, never to a wrong
// answer. With a nil client every call is a miss.
type PermissionCache struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ account.PermissionCache = (*PermissionCache)(nil)

// NewPermissionCache builds the cache. A non-positive ttl defaults to 5
// minutes; an empty namespace defaults to "perms".
func NewPermissionCache(rdb *redis.Client, ttl time.Duration, namespace string) *PermissionCache {
	if ttl <= 0 {
		ttl = defaultPermTTL
	}
	if namespace == "" {
		namespace = "perms"
	}
	return &PermissionCache{rdb: rdb, ttl: ttl, namespace: namespace}
}

func (c *PermissionCache) key(userID string) string {
	return c.namespace + ":" + userID
}

// Get returns the cached codes for the user; a miss is (nil, false, nil).
func (c *PermissionCache) Get(ctx context.Context, userID string) ([]int, bool, error) {
	if c.rdb == nil {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var codes []int
	if err := json.Unmarshal(raw, &codes); err != nil {
		// Corrupted entry; drop it and report a miss.
		_ = c.rdb.Del(ctx, c.key(userID)).Err()
		return nil, false, nil
	}
	return codes, true, nil
}

// Set stores the codes under the cache TTL. An empty set is cached too:
// "no permissions" is a valid answer worth remembering.
func (c *PermissionCache) Set(ctx context.Context, userID string, codes []int) error {
	if c.rdb == nil {
		return nil
	}
	if codes == nil {
		codes = []int{}
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(userID), raw, c.ttl).Err()
}

// Invalidate drops the user's entry after a role or deletion change.
func (c *PermissionCache) Invalidate(ctx context.Context, userID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key(userID)).Err()
}
