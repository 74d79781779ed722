package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisStatsCache(client *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: 10 * time.Minute}
}

// RedisStatsCache keeps the last refreshed dashboard stats per seller.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisStatsCache) Get(ctx context.Context, sellerID string) (*domain.SellerStats, error) {
	data, err := r.client.Get(ctx, statsKey(sellerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s domain.SellerStats
	if err2 := json.Unmarshal(data, &s); err2 != nil {
		return nil, fmt.Errorf("unmarshal stats failed: %w", err2)
	}
	return &s, nil
}

func (r *RedisStatsCache) Set(ctx context.Context, stats domain.SellerStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats failed: %w", err)
	}
	if err := r.client.Set(ctx, statsKey(stats.SellerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func statsKey(sellerID string) string {
	return fmt.Sprintf("stats:seller:%s", sellerID)
}
