package service

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

type ProductRemote interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

// ProductCatalog reads products from the marketplace and keeps the last good
// copy of each in the cache. While the marketplace is unreachable the cached
// copy is served.
type ProductCatalog struct {
	remote ProductRemote
	cache  cache.ProductCache
	log    *zap.Logger
}

func NewProductCatalog(remote ProductRemote, productCache cache.ProductCache, log *zap.Logger) *ProductCatalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductCatalog{remote: remote, cache: productCache, log: log}
}

func (c *ProductCatalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	p, err := c.remote.GetProduct(ctx, productID)
	if err == nil {
		if errSet := c.cache.Set(ctx, p); errSet != nil {
			c.log.Warn("failed to cache product", zap.String("product_id", productID), zap.Error(errSet))
		}
		return p, nil
	}
	if !domain.IsNetworkError(err) {
		return domain.Product{}, err
	}

	cached, errGet := c.cache.Get(ctx, productID)
	if errGet != nil {
		if !errors.Is(errGet, cache.ErrCacheMiss) {
			c.log.Warn("product cache read failed", zap.String("product_id", productID), zap.Error(errGet))
		}
		return domain.Product{}, err
	}
	c.log.Info("marketplace unreachable, serving cached product", zap.String("product_id", productID))
	return *cached, nil
}

// CartRemote routes the product lookups of remote through the catalog.
func (c *ProductCatalog) CartRemote(remote CartRemote) CartRemote {
	return catalogCartRemote{CartRemote: remote, catalog: c}
}

type catalogCartRemote struct {
	CartRemote
	catalog *ProductCatalog
}

func (r catalogCartRemote) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	return r.catalog.GetProduct(ctx, productID)
}
