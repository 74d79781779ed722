package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// LocalCart holds cart lines the remote service has not accepted yet.
type LocalCart interface {
	Load(ctx context.Context, userID string) ([]domain.CartLine, error)
	Add(ctx context.Context, userID string, line domain.CartLine) ([]domain.CartLine, error)
	Save(ctx context.Context, userID string, lines []domain.CartLine) error
	Clear(ctx context.Context, userID string) error
}

type SessionStore interface {
	Save(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type StatsCache interface {
	Get(ctx context.Context, sellerID string) (*domain.SellerStats, error)
	Set(ctx context.Context, stats domain.SellerStats) error
}

type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, p domain.Product) error
}

var ErrCacheMiss = errors.New("cache miss")

var (
	_ LocalCart    = (*RedisLocalCart)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
	_ StatsCache   = (*RedisStatsCache)(nil)
	_ ProductCache = (*RedisProductCache)(nil)
)
