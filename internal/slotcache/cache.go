// Package slotcache caches slot listings in Redis for a few seconds.
// Every provider has a version counter that is bumped on each committed write,
// so invalidation never has to enumerate keys.
package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

const keyPrefix = "slots"

// Cache implements scheduling.SlotCache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	group  singleflight.Group
}

var _ scheduling.SlotCache = (*Cache)(nil)

func New(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if client == nil {
		panic("slotcache: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Fetch returns the cached listing for key, loading and storing it on a miss.
// Concurrent misses for the same key share one load.
func (c *Cache) Fetch(ctx context.Context, key scheduling.SlotKey, load func(ctx context.Context) ([]scheduling.DaySlots, error)) ([]scheduling.DaySlots, error) {
	version, err := c.client.Get(ctx, versionKey(key.ProviderID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("slotcache: version lookup failed", "error", err, "provider_id", key.ProviderID)
		return load(ctx)
	}
	cacheKey := listingKey(key, version)

	raw, err := c.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var days []scheduling.DaySlots
		if err := json.Unmarshal(raw, &days); err == nil {
			return days, nil
		}
		c.logger.Warn("slotcache: dropping undecodable entry", "key", cacheKey)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("slotcache: get failed", "error", err, "key", cacheKey)
		return load(ctx)
	}

	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		days, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(days); err == nil {
			if err := c.client.Set(ctx, cacheKey, payload, c.ttl).Err(); err != nil {
				c.logger.Warn("slotcache: set failed", "error", err, "key", cacheKey)
			}
		}
		return days, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]scheduling.DaySlots), nil
}

// Invalidate makes every cached listing of the provider unreachable.
func (c *Cache) Invalidate(ctx context.Context, providerID uuid.UUID) {
	if err := c.client.Incr(ctx, versionKey(providerID)).Err(); err != nil {
		c.logger.Warn("slotcache: invalidate failed", "error", err, "provider_id", providerID)
	}
}

func versionKey(providerID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:version", keyPrefix, providerID)
}

func listingKey(key scheduling.SlotKey, version int64) string {
	return fmt.Sprintf("%s:%s:v%d:%s:%s:%d:%d", keyPrefix, key.ProviderID, version,
		key.Channel, key.Urgency, key.RangeStart.Unix(), key.RangeEnd.Unix())
}
