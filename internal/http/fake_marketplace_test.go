package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type fakeProduct struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	SellerID string  `json:"seller_id"`
}

type fakeCartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type fakeOrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	SellerID    string  `json:"seller_id"`
}

type fakeOrder struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []fakeOrderItem `json:"items"`
	TotalAmount     float64         `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address"`
	PaymentMethod   string          `json:"payment_method"`
	OrderStatus     string          `json:"order_status"`
	CreatedAt       string          `json:"created_at"`
}

// fakeMarketplace is an in-memory stand-in for the marketplace REST API.
type fakeMarketplace struct {
	mu       sync.Mutex
	products map[string]fakeProduct
	carts    map[string][]fakeCartItem
	orders   map[string]fakeOrder
	ordered  []string

	// cartDown aborts every cart request at the transport level.
	cartDown bool
	// anonymous orders are served by getOrder without a user_id.
	anonymous map[string]bool

	idempotencyKeys []string
	cardLast4       []string
	statsCalls      []string
}

func newFakeMarketplace(products ...fakeProduct) *fakeMarketplace {
	m := &fakeMarketplace{
		products: make(map[string]fakeProduct),
		carts:    make(map[string][]fakeCartItem),
		orders:   make(map[string]fakeOrder),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *fakeMarketplace) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeFake(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/cart/{user_id}", func(r chi.Router) {
		r.Use(m.cartOutage)
		r.Get("/", m.getCart)
		r.Post("/", m.addToCart)
		r.Delete("/", m.clearCart)
		r.Put("/{product_id}", m.updateCart)
		r.Delete("/{product_id}", m.removeFromCart)
	})

	r.Get("/products/{product_id}", m.getProduct)
	r.Post("/orders/{user_id}", m.createOrder)
	r.Get("/orders/detail/{order_id}", m.getOrder)
	r.Get("/orders/{user_id}", m.listOrders)
	r.Get("/dashboard/retailer", m.retailerStats)
	return r
}

func (m *fakeMarketplace) setCartDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cartDown = down
}

func (m *fakeMarketplace) cartOutage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		down := m.cartDown
		m.mu.Unlock()
		if down {
			panic(http.ErrAbortHandler)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *fakeMarketplace) quantity(userID, productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.carts[userID] {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

func (m *fakeMarketplace) getCart(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.carts[chi.URLParam(r, "user_id")]
	if items == nil {
		items = []fakeCartItem{}
	}
	writeFake(w, http.StatusOK, map[string]any{"items": items})
}

func (m *fakeMarketplace) addToCart(w http.ResponseWriter, r *http.Request) {
	var req fakeCartItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFake(w, http.StatusBadRequest, map[string]string{"detail": "Invalid body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[req.ProductID]; !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"detail": "Product not found"})
		return
	}
	userID := chi.URLParam(r, "user_id")
	for i := range m.carts[userID] {
		if m.carts[userID][i].ProductID == req.ProductID {
			m.carts[userID][i].Quantity += req.Quantity
			writeFake(w, http.StatusOK, map[string]string{"message": "Item added to cart"})
			return
		}
	}
	m.carts[userID] = append(m.carts[userID], req)
	writeFake(w, http.StatusOK, map[string]string{"message": "Item added to cart"})
}

func (m *fakeMarketplace) updateCart(w http.ResponseWriter, r *http.Request) {
	q, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		writeFake(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "quantity must be an integer"}}})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	userID, productID := chi.URLParam(r, "user_id"), chi.URLParam(r, "product_id")
	for i := range m.carts[userID] {
		if m.carts[userID][i].ProductID == productID {
			m.carts[userID][i].Quantity = q
			writeFake(w, http.StatusOK, map[string]string{"message": "Cart updated"})
			return
		}
	}
	writeFake(w, http.StatusNotFound, map[string]string{"detail": "Item not in cart"})
}

func (m *fakeMarketplace) removeFromCart(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, productID := chi.URLParam(r, "user_id"), chi.URLParam(r, "product_id")
	items := m.carts[userID]
	for i := range items {
		if items[i].ProductID == productID {
			m.carts[userID] = append(items[:i], items[i+1:]...)
			break
		}
	}
	writeFake(w, http.StatusOK, map[string]string{"message": "Item removed"})
}

func (m *fakeMarketplace) clearCart(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, chi.URLParam(r, "user_id"))
	writeFake(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (m *fakeMarketplace) getProduct(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[chi.URLParam(r, "product_id")]
	if !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"detail": "Product not found"})
		return
	}
	writeFake(w, http.StatusOK, p)
}

func (m *fakeMarketplace) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items           []fakeCartItem `json:"items"`
		DeliveryAddress string         `json:"delivery_address"`
		PaymentMethod   string         `json:"payment_method"`
		CardLast4       string         `json:"card_last4"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFake(w, http.StatusBadRequest, map[string]string{"detail": "Invalid body"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotencyKeys = append(m.idempotencyKeys, r.Header.Get("Idempotency-Key"))
	if req.CardLast4 != "" {
		m.cardLast4 = append(m.cardLast4, req.CardLast4)
	}

	userID := chi.URLParam(r, "user_id")
	order := fakeOrder{
		ID:              fmt.Sprintf("ord-%d", len(m.orders)+1),
		UserID:          userID,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   req.PaymentMethod,
		OrderStatus:     "placed",
		CreatedAt:       "2026-05-01T10:00:00",
	}
	for _, it := range req.Items {
		p := m.products[it.ProductID]
		order.Items = append(order.Items, fakeOrderItem{ProductID: p.ID, ProductName: p.Name, Quantity: it.Quantity, Price: p.Price, SellerID: p.SellerID})
		order.TotalAmount += p.Price * float64(it.Quantity)
	}
	m.orders[order.ID] = order
	m.ordered = append(m.ordered, order.ID)
	delete(m.carts, userID)
	writeFake(w, http.StatusOK, order)
}

func (m *fakeMarketplace) setOrderStatus(orderID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	o.OrderStatus = status
	m.orders[orderID] = o
}

func (m *fakeMarketplace) hideOrderOwner(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.anonymous == nil {
		m.anonymous = make(map[string]bool)
	}
	m.anonymous[orderID] = true
}

func (m *fakeMarketplace) getOrder(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[chi.URLParam(r, "order_id")]
	if !ok {
		writeFake(w, http.StatusNotFound, map[string]string{"detail": "Order not found"})
		return
	}
	if m.anonymous[o.ID] {
		o.UserID = ""
	}
	writeFake(w, http.StatusOK, o)
}

func (m *fakeMarketplace) listOrders(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID := chi.URLParam(r, "user_id")
	out := []fakeOrder{}
	for _, id := range m.ordered {
		if o := m.orders[id]; o.UserID == userID {
			out = append(out, o)
		}
	}
	writeFake(w, http.StatusOK, out)
}

func (m *fakeMarketplace) retailerStats(w http.ResponseWriter, r *http.Request) {
	sellerID := r.URL.Query().Get("user_id")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsCalls = append(m.statsCalls, sellerID)
	count := 0
	revenue := 0.0
	for _, o := range m.orders {
		for _, it := range o.Items {
			if strings.EqualFold(it.SellerID, sellerID) {
				count++
				revenue += it.Price * float64(it.Quantity)
			}
		}
	}
	writeFake(w, http.StatusOK, map[string]any{"orders_count": count, "total_revenue": revenue, "products_count": len(m.products)})
}

func (m *fakeMarketplace) stats() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.statsCalls...)
}

func (m *fakeMarketplace) submittedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.idempotencyKeys...)
}

func (m *fakeMarketplace) submittedCards() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cardLast4...)
}

func writeFake(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
