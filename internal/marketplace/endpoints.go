package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

func (c *Client) GetCart(ctx context.Context, userID string) ([]CartItem, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get cart", http.MethodGet, "/cart/"+url.PathEscape(userID), nil, nil, nil, &raw); err != nil {
		return nil, err
	}
	return normalizeCart(raw)
}

func (c *Client) AddCartItem(ctx context.Context, userID, productID string, quantity int) error {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	return c.do(ctx, "add cart item", http.MethodPost, "/cart/"+url.PathEscape(userID), nil, nil, body, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) error {
	path := "/cart/" + url.PathEscape(userID) + "/" + url.PathEscape(productID)
	query := url.Values{"quantity": []string{strconv.Itoa(quantity)}}
	return c.do(ctx, "update cart item", http.MethodPut, path, query, nil, nil, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, userID, productID string) error {
	path := "/cart/" + url.PathEscape(userID) + "/" + url.PathEscape(productID)
	return c.do(ctx, "remove cart item", http.MethodDelete, path, nil, nil, nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, userID string) error {
	return c.do(ctx, "clear cart", http.MethodDelete, "/cart/"+url.PathEscape(userID), nil, nil, nil, nil)
}

func (c *Client) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p productDTO
	if err := c.do(ctx, "get product", http.MethodGet, "/products/"+url.PathEscape(productID), nil, nil, nil, &p); err != nil {
		return domain.Product{}, err
	}
	out := p.toDomain()
	if out.ID == "" {
		out.ID = productID
	}
	return out, nil
}

// CreateOrder submits an order. A non-empty IdempotencyKey is forwarded so the
// service can recognise a resubmission.
func (c *Client) CreateOrder(ctx context.Context, userID string, sub domain.OrderSubmission) (domain.Order, error) {
	var headers http.Header
	if sub.IdempotencyKey != "" {
		headers = http.Header{idempotencyHeader: []string{sub.IdempotencyKey}}
	}
	var o orderDTO
	if err := c.do(ctx, "create order", http.MethodPost, "/orders/"+url.PathEscape(userID), nil, headers, sub, &o); err != nil {
		return domain.Order{}, err
	}
	order := o.toDomain()
	if order.UserID == "" {
		order.UserID = userID
	}
	return order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var o orderDTO
	if err := c.do(ctx, "get order", http.MethodGet, "/orders/detail/"+url.PathEscape(orderID), nil, nil, nil, &o); err != nil {
		return domain.Order{}, err
	}
	return o.toDomain(), nil
}

func (c *Client) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	var list []orderDTO
	if err := c.do(ctx, "list orders", http.MethodGet, "/orders/"+url.PathEscape(userID), nil, nil, nil, &list); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(list))
	for _, o := range list {
		orders = append(orders, o.toDomain())
	}
	return orders, nil
}

// SellerStats reads the dashboard aggregate of one seller.
func (c *Client) SellerStats(ctx context.Context, sellerID string) (domain.SellerStats, error) {
	var s retailerStatsDTO
	query := url.Values{"user_id": []string{sellerID}}
	if err := c.do(ctx, "seller stats", http.MethodGet, "/dashboard/retailer", query, nil, nil, &s); err != nil {
		return domain.SellerStats{}, err
	}
	return domain.SellerStats{
		SellerID:      sellerID,
		OrdersCount:   s.OrdersCount,
		TotalRevenue:  s.TotalRevenue,
		ProductsCount: s.ProductsCount,
	}, nil
}
