package service

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/marketplace"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/shopspring/decimal"
)

func networkErr(op string) error {
	return &domain.NetworkError{Op: op, Err: errors.New("connection refused")}
}

func product(id string, price int64, stock int, seller string) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price), Stock: stock, SellerID: seller}
}

// MockCartRemote keeps a server-side cart in memory.
type MockCartRemote struct {
	mu       sync.Mutex
	items    []marketplace.CartItem
	products map[string]domain.Product
	inline   bool

	GetErr    error
	AddErr    error
	UpdateErr error
	RemoveErr error
	ClearErr  error
	// AddErrFor rejects adds of specific products.
	AddErrFor map[string]error
	// OnUpdate runs before an update is applied, outside the lock.
	OnUpdate func(productID string, quantity int)

	AddCalls     int
	UpdateCalls  []int
	ProductCalls int
}

func NewMockCartRemote(products ...domain.Product) *MockCartRemote {
	m := &MockCartRemote{products: make(map[string]domain.Product), AddErrFor: make(map[string]error)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockCartRemote) GetCart(_ context.Context, _ string) ([]marketplace.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	out := make([]marketplace.CartItem, len(m.items))
	for i, it := range m.items {
		out[i] = marketplace.CartItem{ProductID: it.ProductID, Quantity: it.Quantity}
		if p, ok := m.products[it.ProductID]; ok && m.inline {
			out[i].Product = &p
		}
	}
	return out, nil
}

func (m *MockCartRemote) AddCartItem(_ context.Context, _ string, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	if m.AddErr != nil {
		return m.AddErr
	}
	if err := m.AddErrFor[productID]; err != nil {
		return err
	}
	for i := range m.items {
		if m.items[i].ProductID == productID {
			m.items[i].Quantity += quantity
			return nil
		}
	}
	m.items = append(m.items, marketplace.CartItem{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *MockCartRemote) UpdateCartItem(_ context.Context, _ string, productID string, quantity int) error {
	if hook := m.OnUpdate; hook != nil {
		hook(productID, quantity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, quantity)
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	for i := range m.items {
		if m.items[i].ProductID == productID {
			m.items[i].Quantity = quantity
		}
	}
	return nil
}

func (m *MockCartRemote) RemoveCartItem(_ context.Context, _ string, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	for i := range m.items {
		if m.items[i].ProductID == productID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockCartRemote) ClearCart(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.items = nil
	return nil
}

func (m *MockCartRemote) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProductCalls++
	p, ok := m.products[productID]
	if !ok {
		return domain.Product{}, &domain.RemoteRejection{Op: "get product", StatusCode: 404, Message: "Product not found"}
	}
	return p, nil
}

func (m *MockCartRemote) setItems(items ...marketplace.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

func (m *MockCartRemote) serverQuantity(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

func (m *MockCartRemote) setAddErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddErr = err
}

// MockLocalCart is an in-memory cache.LocalCart.
type MockLocalCart struct {
	mu      sync.Mutex
	lines   map[string][]domain.CartLine
	LoadErr error
	AddErr  error
}

func NewMockLocalCart() *MockLocalCart {
	return &MockLocalCart{lines: make(map[string][]domain.CartLine)}
}

func (m *MockLocalCart) Load(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := make([]domain.CartLine, len(m.lines[userID]))
	copy(out, m.lines[userID])
	return out, nil
}

func (m *MockLocalCart) Add(_ context.Context, userID string, line domain.CartLine) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return nil, m.AddErr
	}
	lines := m.lines[userID]
	for i := range lines {
		if lines[i].ProductID == line.ProductID {
			lines[i].Quantity += line.Quantity
			return lines, nil
		}
	}
	m.lines[userID] = append(lines, line)
	return m.lines[userID], nil
}

func (m *MockLocalCart) Save(_ context.Context, userID string, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[userID] = append([]domain.CartLine(nil), lines...)
	return nil
}

func (m *MockLocalCart) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, userID)
	return nil
}

var _ cache.LocalCart = (*MockLocalCart)(nil)

// MockOrderRemote records submissions.
type MockOrderRemote struct {
	mu          sync.Mutex
	HealthErr   error
	CreateErrs  []error
	Submissions []domain.OrderSubmission
	Orders      map[string]domain.Order
	// Block, when set, is waited on before an order is created.
	Block chan struct{}
	// Started is signalled when CreateOrder is entered.
	Started chan struct{}
}

func NewMockOrderRemote() *MockOrderRemote {
	return &MockOrderRemote{Orders: make(map[string]domain.Order)}
}

func (m *MockOrderRemote) Health(_ context.Context) error {
	return m.HealthErr
}

func (m *MockOrderRemote) CreateOrder(_ context.Context, userID string, sub domain.OrderSubmission) (domain.Order, error) {
	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submissions = append(m.Submissions, sub)
	if len(m.CreateErrs) > 0 {
		err := m.CreateErrs[0]
		m.CreateErrs = m.CreateErrs[1:]
		if err != nil {
			return domain.Order{}, err
		}
	}

	order := domain.Order{
		ID:              "order-" + sub.IdempotencyKey[:8],
		UserID:          userID,
		DeliveryAddress: sub.DeliveryAddress,
		PaymentMethod:   sub.PaymentMethod,
		OrderStatus:     domain.OrderStatusPlaced,
	}
	for _, it := range sub.Items {
		order.Items = append(order.Items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	m.Orders[order.ID] = order
	return order, nil
}

func (m *MockOrderRemote) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[orderID]
	if !ok {
		return domain.Order{}, &domain.RemoteRejection{Op: "get order", StatusCode: 404, Message: "Order not found"}
	}
	return o, nil
}

func (m *MockOrderRemote) submissions() []domain.OrderSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderSubmission(nil), m.Submissions...)
}

// MockIdempotencyStore mirrors the redis SETNX semantics.
type MockIdempotencyStore struct {
	mu      sync.Mutex
	locks   map[string]bool
	values  map[string]string
	LockErr error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{locks: make(map[string]bool), values: make(map[string]string)}
}

func (m *MockIdempotencyStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LockErr != nil {
		return false, m.LockErr
	}
	if m.locks[scope+":"+key] {
		return false, nil
	}
	m.locks[scope+":"+key] = true
	return true, nil
}

func (m *MockIdempotencyStore) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+":"+key)
	return nil
}

func (m *MockIdempotencyStore) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+":"+key] = value
	return nil
}

func (m *MockIdempotencyStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+":"+key]
	return v, ok, nil
}

// MockJournal captures checkout journal writes.
type MockJournal struct {
	mu       sync.Mutex
	Created  []*repository.CheckoutSession
	Statuses []domain.CheckoutStatus
	OrderIDs []string
}

func (m *MockJournal) CreateCheckoutSession(_ context.Context, s *repository.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, s)
	return nil
}

func (m *MockJournal) UpdateCheckoutSessionStatus(_ context.Context, _ string, status domain.CheckoutStatus, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, status)
	if orderID != "" {
		m.OrderIDs = append(m.OrderIDs, orderID)
	}
	return nil
}

func (m *MockJournal) GetCheckoutSessionByIdempotencyKey(_ context.Context, _ string) (*repository.CheckoutSession, error) {
	return nil, repository.ErrIdempotencyKeyNotFound
}

// MockStatsRefresher records refreshed seller ids.
type MockStatsRefresher struct {
	mu      sync.Mutex
	Sellers []string
	ErrFor  map[string]error
}

func (m *MockStatsRefresher) Refresh(_ context.Context, sellerID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sellers = append(m.Sellers, sellerID)
	return m.ErrFor[sellerID]
}

// MockSessionStore is an in-memory cache.SessionStore.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MockSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (m *MockSessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// MockStatsCache is an in-memory cache.StatsCache.
type MockStatsCache struct {
	mu    sync.Mutex
	stats map[string]domain.SellerStats
}

func (m *MockStatsCache) Get(_ context.Context, sellerID string) (*domain.SellerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[sellerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &s, nil
}

func (m *MockStatsCache) Set(_ context.Context, s domain.SellerStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stats == nil {
		m.stats = make(map[string]domain.SellerStats)
	}
	m.stats[s.SellerID] = s
	return nil
}
