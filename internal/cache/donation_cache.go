package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mealbridge/rescue-service/internal/metrics"
	"github.com/mealbridge/rescue-service/internal/repository"
)

const defaultTTL = 5 * time.Minute

// DonationCache keeps hot donation rows in redis for the browse endpoints.
// Entries never outlive the donation's expiry deadline, so a stale cache can
// show at worst an already-expired donation, never a phantom fresh one.
type DonationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDonationCache(addr string, logger *zap.Logger) (*DonationCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationCache{client: client, ttl: defaultTTL, logger: logger}, nil
}

func (c *DonationCache) Close() error {
	return c.client.Close()
}

func donationKey(id string) string {
	return "donation:" + id
}

// ttlFor caps the cache TTL at the donation's remaining lifetime.
func ttlFor(d *repository.Donation, now time.Time, base time.Duration) time.Duration {
	left := d.ExpiryAt.Sub(now)
	if left <= 0 {
		return 0
	}
	if left < base {
		return left
	}
	return base
}

// Set caches the donation; expired or near-expiry rows are evicted instead.
func (c *DonationCache) Set(ctx context.Context, d *repository.Donation) {
	ttl := ttlFor(d, time.Now().UTC(), c.ttl)
	if ttl <= 0 {
		c.Delete(ctx, d.ID)
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		c.logger.Warn("marshal donation for cache failed",
			zap.String("donation_id", d.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, donationKey(d.ID), data, ttl).Err(); err != nil {
		c.logger.Warn("cache donation failed",
			zap.String("donation_id", d.ID), zap.Error(err))
		return
	}
	metrics.DonationCacheItems.Inc()
}

// Get returns the cached donation or nil on a miss. Cache errors degrade to a
// miss; the store is always authoritative.
func (c *DonationCache) Get(ctx context.Context, id string) *repository.Donation {
	data, err := c.client.Get(ctx, donationKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("donation_id", id), zap.Error(err))
		}
		return nil
	}
	var d repository.Donation
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("cache entry corrupt, evicting",
			zap.String("donation_id", id), zap.Error(err))
		c.Delete(ctx, id)
		return nil
	}
	return &d
}

func (c *DonationCache) Delete(ctx context.Context, id string) {
	deleted, err := c.client.Del(ctx, donationKey(id)).Result()
	if err != nil {
		c.logger.Warn("cache delete failed", zap.String("donation_id", id), zap.Error(err))
		return
	}
	if deleted > 0 {
		metrics.DonationCacheItems.Sub(float64(deleted))
	}
}
