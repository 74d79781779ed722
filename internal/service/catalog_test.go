package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProductCache is an in-memory cache.ProductCache.
type MockProductCache struct {
	mu       sync.Mutex
	products map[string]domain.Product
	GetErr   error
}

func NewMockProductCache() *MockProductCache {
	return &MockProductCache{products: make(map[string]domain.Product)}
}

func (m *MockProductCache) Get(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &p, nil
}

func (m *MockProductCache) Set(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

type flakyProducts struct {
	*MockCartRemote
	down bool
}

func (f *flakyProducts) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if f.down {
		return domain.Product{}, networkErr("get product")
	}
	return f.MockCartRemote.GetProduct(ctx, productID)
}

func TestProductCatalog_ServesCachedCopyWhileUnreachable(t *testing.T) {
	rice := product("p-1", 50, 10, "s-1")
	remote := &flakyProducts{MockCartRemote: NewMockCartRemote(rice)}
	catalog := NewProductCatalog(remote, NewMockProductCache(), nil)

	got, err := catalog.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, rice.Name, got.Name)

	remote.down = true
	got, err = catalog.GetProduct(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, rice.Name, got.Name)
	assert.Equal(t, 10, got.Stock)

	_, err = catalog.GetProduct(context.Background(), "p-2")
	assert.True(t, domain.IsNetworkError(err), "a product never seen keeps the network error")
}

func TestProductCatalog_RejectionIsNotMasked(t *testing.T) {
	cached := NewMockProductCache()
	require.NoError(t, cached.Set(context.Background(), product("p-9", 10, 1, "s-1")))
	catalog := NewProductCatalog(NewMockCartRemote(), cached, nil)

	_, err := catalog.GetProduct(context.Background(), "p-9")
	assert.True(t, domain.IsNotFound(err))
}

func TestProductCatalog_CacheReadFailure(t *testing.T) {
	remote := &flakyProducts{MockCartRemote: NewMockCartRemote(), down: true}
	cached := NewMockProductCache()
	cached.GetErr = errors.New("redis down")
	catalog := NewProductCatalog(remote, cached, nil)

	_, err := catalog.GetProduct(context.Background(), "p-1")
	assert.True(t, domain.IsNetworkError(err))
}

func TestProductCatalog_CartRemoteUsesCatalog(t *testing.T) {
	rice := product("p-1", 50, 10, "s-1")
	remote := NewMockCartRemote(rice)
	remote.setItems(marketplace.CartItem{ProductID: "p-1", Quantity: 2})
	cached := NewMockProductCache()
	catalog := NewProductCatalog(remote, cached, nil)

	cart := NewCartManager(testSession, catalog.CartRemote(remote), NewMockLocalCart(), nil)
	res, err := cart.FetchCart(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Snapshot.Lines, 1)

	stored, err := cached.Get(context.Background(), "p-1")
	require.NoError(t, err, "lookups made while loading the cart fill the cache")
	assert.Equal(t, rice.Name, stored.Name)
}
