package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProductLookup interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}

type CartHandler struct {
	products ProductLookup
	timeout  time.Duration
}

func NewCartHandler(products ProductLookup, timeout time.Duration) *CartHandler {
	return &CartHandler{
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type EditBufferRequestDTO struct {
	Value string `json:"value"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	res, err := ws.Cart.FetchCart(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	// the add button sends no quantity
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ws := getWorkspace(r.Context())
	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		// while the marketplace is unreachable a line already in the cart
		// still knows its product
		line, ok := ws.Cart.Snapshot().Find(req.ProductID)
		if !domain.IsNetworkError(err) || !ok || line.Product.IsPlaceholder() {
			handleServiceError(w, r, err)
			return
		}
		product = line.Product
	}

	res, err := ws.Cart.AddItem(ctx, product, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, res)
}

// PUT /api/v1/cart/items/{product_id}/buffer
func (h *CartHandler) UpdateBuffer(w http.ResponseWriter, r *http.Request) {
	var req EditBufferRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ws := getWorkspace(r.Context())
	if err := ws.Cart.UpdateLocalQuantity(chi.URLParam(r, "product_id"), req.Value); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, ws.Cart.Result())
}

// POST /api/v1/cart/items/{product_id}/commit
func (h *CartHandler) CommitBuffer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	res, err := ws.Cart.CommitBuffer(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ws := getWorkspace(r.Context())
	res, err := ws.Cart.CommitQuantity(ctx, chi.URLParam(r, "product_id"), req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	res, err := ws.Cart.RemoveItem(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	res, err := ws.Cart.Clear(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// POST /api/v1/cart/reconcile
func (h *CartHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ws := getWorkspace(r.Context())
	res, err := ws.Cart.Reconcile(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}
