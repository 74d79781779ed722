package service

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

type StatsRemote interface {
	SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error)
}

// DashboardStats refreshes seller aggregates synchronously from the
// marketplace dashboard and keeps the latest copy in the stats cache.
type DashboardStats struct {
	remote StatsRemote
	cache  cache.StatsCache
	log    *zap.Logger
}

func NewDashboardStats(remote StatsRemote, statsCache cache.StatsCache, log *zap.Logger) *DashboardStats {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardStats{remote: remote, cache: statsCache, log: log}
}

func (d *DashboardStats) Refresh(ctx context.Context, sellerID, orderID string) error {
	stats, err := d.remote.SellerStats(ctx, sellerID)
	if err != nil {
		return err
	}
	if err := d.cache.Set(ctx, stats); err != nil {
		d.log.Warn("stats cache set failed", zap.String("seller_id", sellerID), zap.Error(err))
	}
	d.log.Debug("seller stats refreshed", zap.String("seller_id", sellerID), zap.String("order_id", orderID), zap.Int("orders_count", stats.OrdersCount))
	return nil
}

// Stats returns the cached aggregate of a seller, loading it on a miss.
func (d *DashboardStats) Stats(ctx context.Context, sellerID string) (domain.SellerStats, error) {
	cached, err := d.cache.Get(ctx, sellerID)
	if err == nil {
		return *cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		d.log.Warn("stats cache get failed", zap.String("seller_id", sellerID), zap.Error(err))
	}

	stats, err := d.remote.SellerStats(ctx, sellerID)
	if err != nil {
		return domain.SellerStats{}, err
	}
	if err := d.cache.Set(ctx, stats); err != nil {
		d.log.Warn("stats cache set failed", zap.String("seller_id", sellerID), zap.Error(err))
	}
	return stats, nil
}
