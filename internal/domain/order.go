package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodCard
}

// ParsePaymentMethod accepts the method case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &ValidationError{Field: "payment_method", Message: "payment method must be cod or card"}
	}
	return m, nil
}

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderSubmission is the body of an order creation request. Card submissions
// carry the last four digits only.
type OrderSubmission struct {
	Items           []OrderItemRequest `json:"items"`
	DeliveryAddress string             `json:"delivery_address"`
	PaymentMethod   PaymentMethod      `json:"payment_method"`
	CardLast4       string             `json:"card_last4,omitempty"`
	IdempotencyKey  string             `json:"-"`
}

func NewOrderSubmission(lines []CartLine, address string, method PaymentMethod) OrderSubmission {
	items := make([]OrderItemRequest, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItemRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return OrderSubmission{
		Items:           items,
		DeliveryAddress: strings.TrimSpace(address),
		PaymentMethod:   method,
	}
}

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	SellerID    string          `json:"seller_id,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	OrderStatus     OrderStatus     `json:"order_status"`
	CreatedAt       time.Time       `json:"created_at"`
}
