package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/tracker"
	"github.com/go-chi/chi/v5"
)

type OrderSource interface {
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderSource
	timeout time.Duration
}

func NewOrdersHandler(orders OrderSource, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderResponseDTO struct {
	domain.Order
	Tracking tracker.Progress `json:"tracking"`
}

func convertOrder(o domain.Order) OrderResponseDTO {
	if o.Items == nil {
		o.Items = make([]domain.OrderItem, 0)
	}
	return OrderResponseDTO{Order: o, Tracking: tracker.Track(o.OrderStatus)}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	orders, err := h.orders.ListOrders(ctx, ws.Session.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, r, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, r, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	ws := getWorkspace(r.Context())
	owned, err := h.owns(ctx, ws.Session.UserID, order)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !owned {
		respondError(w, r, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, r, http.StatusOK, convertOrder(order))
}

// owns reports whether order belongs to userID. Orders returned without an
// owner are looked up in the user's own order list.
func (h *OrdersHandler) owns(ctx context.Context, userID string, order domain.Order) (bool, error) {
	if order.UserID != "" {
		return order.UserID == userID, nil
	}
	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.ID == order.ID {
			return true, nil
		}
	}
	return false, nil
}
