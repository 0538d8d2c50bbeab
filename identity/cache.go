package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is a transaction-scoped redis cache for role and quota decisions,
// avoiding a repeat portal round trip for every file in a transaction
// that touches the same (user, group), grounded on the teacher's
// db/repository/redis.go Set/GetCache pattern.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to redisURL and verifies connectivity with a ping.
// ttl bounds how long a role/quota decision is trusted before the portal
// is consulted again; defaults to 10 minutes, long enough to cover one
// transaction's lifetime without outliving a revoked grant for long.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse identity cache redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect identity cache: %w", err)
	}

	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Close releases the underlying redis client.
func (c *Cache) Close() error { return c.client.Close() }

func roleKey(transactionID uuid.UUID, user, group string) string {
	return fmt.Sprintf("nlds:role:%s:%s:%s", transactionID, user, group)
}

func quotaKey(group string) string {
	return fmt.Sprintf("nlds:quota:%s", group)
}

// CachedIsManagerOrDeputy looks up a previously cached role decision for
// (transactionID, user, group), reporting ok=false on a cache miss.
func (c *Cache) CachedIsManagerOrDeputy(ctx context.Context, transactionID uuid.UUID, user, group string) (value, ok bool) {
	raw, err := c.client.Get(ctx, roleKey(transactionID, user, group)).Result()
	if err != nil {
		return false, false
	}
	return raw == "1", true
}

// StoreIsManagerOrDeputy caches a role decision for the remainder of the
// transaction (or until ttl expires, whichever is sooner).
func (c *Cache) StoreIsManagerOrDeputy(ctx context.Context, transactionID uuid.UUID, user, group string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return c.client.Set(ctx, roleKey(transactionID, user, group), v, c.ttl).Err()
}

// CachedTapeQuotaBytes looks up a previously cached tape quota for group,
// reporting ok=false on a cache miss.
func (c *Cache) CachedTapeQuotaBytes(ctx context.Context, group string) (bytes int64, ok bool) {
	raw, err := c.client.Get(ctx, quotaKey(group)).Result()
	if err != nil {
		return 0, false
	}
	var v int64
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return 0, false
	}
	return v, true
}

// StoreTapeQuotaBytes caches a group's tape quota for ttl.
func (c *Cache) StoreTapeQuotaBytes(ctx context.Context, group string, bytes int64) error {
	data, err := json.Marshal(bytes)
	if err != nil {
		return fmt.Errorf("marshal cached tape quota: %w", err)
	}
	return c.client.Set(ctx, quotaKey(group), data, c.ttl).Err()
}
