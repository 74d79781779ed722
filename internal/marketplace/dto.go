package marketplace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var errUnexpectedPayload = errors.New("unexpected payload shape")

// CartItem is a normalized server cart line. Product is nil when the service
// did not inline it.
type CartItem struct {
	ProductID string
	Quantity  int
	Product   *domain.Product
}

type productDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Unit     string          `json:"unit"`
	ImageURL string          `json:"image_url"`
	SellerID string          `json:"seller_id"`
}

func (p productDTO) toDomain() domain.Product {
	return domain.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		Unit:     p.Unit,
		ImageURL: p.ImageURL,
		SellerID: p.SellerID,
	}
}

type cartItemDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  json.RawMessage `json:"quantity"`
	Product   *productDTO     `json:"product"`
}

// normalizeCart accepts either a bare list of items or an {"items": [...]}
// envelope. Items without a product id are dropped and quantities that are
// missing, non-numeric or below one resolve to one.
func normalizeCart(raw []byte) ([]CartItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var items []cartItemDTO
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode cart list: %w", err)
		}
	case '{':
		var envelope struct {
			Items []cartItemDTO `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode cart envelope: %w", err)
		}
		items = envelope.Items
	default:
		return nil, fmt.Errorf("decode cart: %w", errUnexpectedPayload)
	}

	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			continue
		}
		ci := CartItem{ProductID: id, Quantity: parseQuantity(it.Quantity)}
		if it.Product != nil {
			p := it.Product.toDomain()
			if p.ID == "" {
				p.ID = id
			}
			ci.Product = &p
		}
		out = append(out, ci)
	}
	return out, nil
}

func parseQuantity(raw json.RawMessage) int {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 1
		}
		n = json.Number(strings.TrimSpace(s))
	}
	f, err := n.Float64()
	if err != nil || f < 1 {
		return 1
	}
	return int(f)
}

type orderItemDTO struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	SellerID    string          `json:"seller_id"`
}

type orderDTO struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	Items           []orderItemDTO  `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	OrderStatus     string          `json:"order_status"`
	CreatedAt       string          `json:"created_at"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp accepts ISO timestamps with or without a zone; zoneless
// values are taken as UTC.
func parseTimestamp(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (o orderDTO) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		total := it.Total
		if total.IsZero() {
			total = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		}
		items = append(items, domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Total:       total,
			SellerID:    it.SellerID,
		})
	}
	status := domain.OrderStatus(strings.ToLower(o.OrderStatus))
	if status == "" {
		status = domain.OrderStatusPlaced
	}
	id := o.ID
	if id == "" {
		id = o.OrderID
	}
	return domain.Order{
		ID:              id,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   domain.PaymentMethod(strings.ToLower(o.PaymentMethod)),
		PaymentStatus:   o.PaymentStatus,
		OrderStatus:     status,
		CreatedAt:       parseTimestamp(o.CreatedAt),
	}
}

type retailerStatsDTO struct {
	OrdersCount   int             `json:"orders_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	ProductsCount int             `json:"products_count"`
}
