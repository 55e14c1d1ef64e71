package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache holds vendor service snapshots in redis to keep the hot booking
// path off the catalog tables.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a redis-backed snapshot cache.
func NewCache(redisClient *redis.Client) *Cache {
	return &Cache{redis: redisClient, ttl: defaultCacheTTL}
}

// WithTTL overrides the snapshot TTL.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

func (c *Cache) key(storeID, serviceID uuid.UUID) string {
	return fmt.Sprintf("catalog:service:%s:%s", storeID, serviceID)
}

// Get returns the cached snapshot, or nil on a miss.
func (c *Cache) Get(ctx context.Context, storeID, serviceID uuid.UUID) (*VendorService, error) {
	data, err := c.redis.Get(ctx, c.key(storeID, serviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: cache get: %w", err)
	}
	var v VendorService
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("catalog: cache decode: %w", err)
	}
	return &v, nil
}

// Set stores the snapshot with the configured TTL.
func (c *Cache) Set(ctx context.Context, v *VendorService) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("catalog: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(v.StoreID, v.ServiceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("catalog: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot after a catalog edit.
func (c *Cache) Invalidate(ctx context.Context, storeID, serviceID uuid.UUID) error {
	if err := c.redis.Del(ctx, c.key(storeID, serviceID)).Err(); err != nil {
		return fmt.Errorf("catalog: cache invalidate: %w", err)
	}
	return nil
}
