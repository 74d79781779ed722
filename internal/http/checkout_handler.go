package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/shopspring/decimal"
)

const historyLimit = 20

// CheckoutHistory lists journaled checkout attempts. It is nil when no
// database is configured.
type CheckoutHistory interface {
	ListCheckoutSessions(ctx context.Context, userID string, limit int) ([]*repository.CheckoutSession, error)
}

type CheckoutHandler struct {
	registry *service.Registry
	history  CheckoutHistory
	timeout  time.Duration
}

func NewCheckoutHandler(registry *service.Registry, history CheckoutHistory, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
		history:  history,
		timeout:  timeout,
	}
}

type UpdateDraftRequestDTO struct {
	DeliveryAddress *string `json:"delivery_address"`
	PaymentMethod   *string `json:"payment_method"`
}

type CheckoutSessionDTO struct {
	ID            string          `json:"id"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OrderID       *string         `json:"order_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	_, view, err := h.registry.StartCheckout(ctx, ws)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, view)
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	co := h.current(w, r)
	if co == nil {
		return
	}
	respondJSON(w, r, http.StatusOK, co.View())
}

// PUT /api/v1/checkout
func (h *CheckoutHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	co := h.current(w, r)
	if co == nil {
		return
	}

	var req UpdateDraftRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	var method *domain.PaymentMethod
	if req.PaymentMethod != nil {
		m, err := domain.ParsePaymentMethod(*req.PaymentMethod)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		method = &m
	}

	view, err := co.UpdateDraft(req.DeliveryAddress, method)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	co := h.current(w, r)
	if co == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := co.Submit(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// POST /api/v1/checkout/payment
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	co := h.current(w, r)
	if co == nil {
		return
	}

	var card service.CardDetails
	if err := decodeJSON(r, &card); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := co.PayByCard(ctx, card)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, view)
}

// DELETE /api/v1/checkout
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	co := h.current(w, r)
	if co == nil {
		return
	}
	if err := co.Abandon(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, co.View())
}

// GET /api/v1/checkout/history
func (h *CheckoutHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, r, http.StatusNotFound, "not_configured", "checkout history is not available")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	sessions, err := h.history.ListCheckoutSessions(ctx, ws.Session.UserID, historyLimit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	dtos := make([]CheckoutSessionDTO, 0, len(sessions))
	for _, s := range sessions {
		dtos = append(dtos, CheckoutSessionDTO{
			ID:            s.ID,
			Status:        s.Status.String(),
			PaymentMethod: string(s.PaymentMethod),
			TotalAmount:   s.TotalAmount,
			OrderID:       s.OrderID,
			CreatedAt:     s.CreatedAt,
			UpdatedAt:     s.UpdatedAt,
		})
	}
	respondJSON(w, r, http.StatusOK, dtos)
}

func (h *CheckoutHandler) current(w http.ResponseWriter, r *http.Request) *service.Checkout {
	ws := getWorkspace(r.Context())
	co := ws.Checkout()
	if co == nil {
		respondError(w, r, http.StatusNotFound, "no_checkout", "no checkout in progress")
		return nil
	}
	return co
}
