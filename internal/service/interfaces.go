package service

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/marketplace"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

type CartRemote interface {
	GetCart(ctx context.Context, userID string) ([]marketplace.CartItem, error)
	AddCartItem(ctx context.Context, userID, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, userID, productID string, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

type OrderRemote interface {
	Health(ctx context.Context) error
	CreateOrder(ctx context.Context, userID string, sub domain.OrderSubmission) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type CheckoutJournal interface {
	CreateCheckoutSession(ctx context.Context, session *repository.CheckoutSession) error
	UpdateCheckoutSessionStatus(ctx context.Context, id string, status domain.CheckoutStatus, orderID string) error
	GetCheckoutSessionByIdempotencyKey(ctx context.Context, key string) (*repository.CheckoutSession, error)
}

// StatsRefresher asks for a seller's dashboard aggregate to be recomputed
// after an order containing their products was placed.
type StatsRefresher interface {
	Refresh(ctx context.Context, sellerID, orderID string) error
}
