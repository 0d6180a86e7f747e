package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
)

const statusKeyPrefix = "veristat:status:"

// RedisCache is the shared status cache for multi-instance deployments.
// Freshness is enforced by Redis key expiry, so a stale entry is physically
// gone rather than merely treated as absent; the observable contract is the
// same as the in-memory cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed status cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func statusKey(id domain.ClientID) string {
	return statusKeyPrefix + id.String()
}

func (c *RedisCache) Get(ctx context.Context, id domain.ClientID) (models.StatusInfo, error) {
	raw, err := c.client.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.StatusInfo{}, fmt.Errorf("status for client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.StatusInfo{}, fmt.Errorf("get status for client %s: %w", id, err)
	}

	var status models.StatusInfo
	if err := json.Unmarshal(raw, &status); err != nil {
		return models.StatusInfo{}, fmt.Errorf("decode status for client %s: %w", id, err)
	}
	return status, nil
}

func (c *RedisCache) Put(ctx context.Context, id domain.ClientID, status models.StatusInfo) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status for client %s: %w", id, err)
	}
	if err := c.client.Set(ctx, statusKey(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("put status for client %s: %w", id, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id domain.ClientID) error {
	if err := c.client.Del(ctx, statusKey(id)).Err(); err != nil {
		return fmt.Errorf("invalidate status for client %s: %w", id, err)
	}
	return nil
}

// Clear removes all status keys. SCAN keeps this safe on shared instances;
// FLUSHDB would take unrelated keys with it.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, statusKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("clear status cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("clear status cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Snapshot(ctx context.Context, ids []domain.ClientID) (map[domain.ClientID]models.StatusInfo, error) {
	if len(ids) == 0 {
		return map[domain.ClientID]models.StatusInfo{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = statusKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("snapshot status cache: %w", err)
	}

	out := make(map[domain.ClientID]models.StatusInfo, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var status models.StatusInfo
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			continue
		}
		out[ids[i]] = status
	}
	return out, nil
}
