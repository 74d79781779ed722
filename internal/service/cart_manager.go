package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/marketplace"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Mode tells whether cart writes reach the remote service.
type Mode string

const (
	ModeOnline   Mode = "online"
	ModeDegraded Mode = "degraded_local"
)

const productLookupLimit = 8

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a non-fatal message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// stockNotice turns a stock shortfall into a warning; the quantity has
// already been clamped by the caller.
func stockNotice(e *domain.StockExceededError) Notice {
	msg := e.Error()
	if e.Available > 0 {
		msg = fmt.Sprintf("Only %d items available in stock for %s", e.Available, e.ProductID)
	}
	return Notice{Level: NoticeWarning, Code: "stock_exceeded", Message: msg}
}

var degradedNotice = Notice{
	Level:   NoticeWarning,
	Code:    "degraded_local",
	Message: "Cannot connect to server. Your cart is saved on this device and will sync when the connection is back.",
}

type CartResult struct {
	Snapshot    domain.CartSnapshot `json:"snapshot"`
	Summary     pricing.Summary     `json:"summary"`
	Mode        Mode                `json:"mode"`
	EditBuffers map[string]string   `json:"edit_buffers"`
	PendingSync map[string]int      `json:"pending_sync,omitempty"`
	Notices     []Notice            `json:"notices,omitempty"`
	Superseded  bool                `json:"superseded,omitempty"`
	Replayed    int                 `json:"replayed,omitempty"`
}

// CartManager is the working copy of one session's cart. Remote calls are
// made without holding the lock; every line carries a version so that only
// the response of the latest quantity update is applied. Additions merged
// into a line are counted separately: a quantity update that raced with one
// refetches the cart instead of overwriting the merged quantity.
type CartManager struct {
	userID string
	remote CartRemote
	local  cache.LocalCart
	log    *zap.Logger
	sfg    singleflight.Group

	mu       sync.Mutex
	snapshot domain.CartSnapshot
	buffers  map[string]string
	visible  map[string]bool
	versions map[string]uint64
	touched  map[string]uint64
	pending  map[string]int
	mode     Mode
}

func NewCartManager(session *domain.Session, remote CartRemote, local cache.LocalCart, log *zap.Logger) *CartManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartManager{
		userID:   session.UserID,
		remote:   remote,
		local:    local,
		log:      log.With(zap.String("user_id", session.UserID)),
		buffers:  make(map[string]string),
		visible:  make(map[string]bool),
		versions: make(map[string]uint64),
		touched:  make(map[string]uint64),
		pending:  make(map[string]int),
		mode:     ModeOnline,
	}
}

// RestorePending picks up lines left in the local cart by an earlier session
// of the same user. When there are any the cart starts degraded so the next
// fetch or write replays them.
func (m *CartManager) RestorePending(ctx context.Context) error {
	lines, err := m.local.Load(ctx, m.userID)
	if err != nil {
		return fmt.Errorf("load local cart: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		m.snapshot.Upsert(l)
		m.pending[l.ProductID] = l.Quantity
		m.buffers[l.ProductID] = strconv.Itoa(l.Quantity)
		m.visible[l.ProductID] = true
	}
	m.mode = ModeDegraded
	m.log.Info("unsynced local cart found, cart starts degraded", zap.Int("lines", len(lines)))
	return nil
}

// AddItem adds quantity units of product. The quantity is clamped so the line
// never exceeds stock; a line already at stock is left as is with a notice.
// When the remote is unreachable the addition is kept in
// the local cart and reported as a success with a warning.
func (m *CartManager) AddItem(ctx context.Context, product domain.Product, quantity int) (*CartResult, error) {
	if strings.TrimSpace(product.ID) == "" {
		return nil, &domain.ValidationError{Field: "product_id", Message: "product id is required"}
	}
	if quantity < 1 {
		return nil, &domain.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}

	m.mu.Lock()
	existing := 0
	if line, ok := m.snapshot.Find(product.ID); ok {
		existing = line.Quantity
	}
	degraded := m.mode == ModeDegraded
	available := product.Stock - existing
	if available <= 0 {
		defer m.mu.Unlock()
		m.log.Debug("add skipped, no stock left", zap.String("product_id", product.ID), zap.Int("in_cart", existing), zap.Int("stock", product.Stock))
		return m.resultLocked([]Notice{stockNotice(&domain.StockExceededError{ProductID: product.ID, Requested: existing + quantity, Available: product.Stock})}), nil
	}
	m.mu.Unlock()

	var notices []Notice
	if quantity > available {
		notices = append(notices, stockNotice(&domain.StockExceededError{ProductID: product.ID, Requested: existing + quantity, Available: product.Stock}))
		quantity = available
	}

	if degraded {
		if _, err := m.Reconcile(ctx); err != nil {
			if domain.IsNetworkError(err) {
				return m.addLocal(ctx, product, quantity, notices)
			}
			m.log.Warn("reconcile before add failed", zap.Error(err))
		}
	}

	if err := m.remote.AddCartItem(ctx, m.userID, product.ID, quantity); err != nil {
		if domain.IsNetworkError(err) {
			m.enterDegraded(err)
			return m.addLocal(ctx, product, quantity, notices)
		}
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeLocked(product, quantity)
	return m.resultLocked(notices), nil
}

func (m *CartManager) addLocal(ctx context.Context, product domain.Product, quantity int, notices []Notice) (*CartResult, error) {
	line := domain.CartLine{ProductID: product.ID, Quantity: quantity, Product: product}
	if _, err := m.local.Add(ctx, m.userID, line); err != nil {
		m.log.Error("local cart save failed", zap.String("product_id", product.ID), zap.Error(err))
		return nil, fmt.Errorf("save local cart: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeLocked(product, quantity)
	m.pending[product.ID] += quantity
	m.log.Info("cart item saved locally", zap.String("product_id", product.ID), zap.Int("quantity", quantity))
	return m.resultLocked(append(notices, degradedNotice)), nil
}

func (m *CartManager) mergeLocked(product domain.Product, quantity int) {
	line, ok := m.snapshot.Find(product.ID)
	if !ok {
		line = domain.CartLine{ProductID: product.ID}
	}
	line.Quantity += quantity
	line.Product = product
	m.snapshot.Upsert(line)
	m.visible[product.ID] = true
	m.buffers[product.ID] = strconv.Itoa(line.Quantity)
	m.touched[product.ID]++
}

// UpdateLocalQuantity stores raw input in the line's edit buffer. The
// committed quantity is not touched.
func (m *CartManager) UpdateLocalQuantity(productID, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshot.Find(productID); !ok {
		return fmt.Errorf("update buffer of %s: %w", productID, domain.ErrLineNotFound)
	}
	m.buffers[productID] = raw
	return nil
}

// ParseQuantityInput resolves free text to a quantity; blank, non-numeric and
// non-positive input gives 1.
func ParseQuantityInput(raw string) int {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || q < 1 {
		return 1
	}
	return q
}

// CommitBuffer commits whatever the edit buffer of the line holds.
func (m *CartManager) CommitBuffer(ctx context.Context, productID string) (*CartResult, error) {
	m.mu.Lock()
	if _, ok := m.snapshot.Find(productID); !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("commit buffer of %s: %w", productID, domain.ErrLineNotFound)
	}
	raw := m.buffers[productID]
	m.mu.Unlock()

	return m.CommitQuantity(ctx, productID, ParseQuantityInput(raw))
}

// CommitQuantity sets the line quantity on the remote and applies it locally
// once accepted. A response overtaken by a newer update is discarded.
func (m *CartManager) CommitQuantity(ctx context.Context, productID string, quantity int) (*CartResult, error) {
	if quantity < 1 {
		return nil, &domain.ValidationError{Field: "quantity", Message: "quantity must be a positive integer"}
	}
	if err := m.ensureOnline(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	line, ok := m.snapshot.Find(productID)
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("commit quantity of %s: %w", productID, domain.ErrLineNotFound)
	}
	var notices []Notice
	if stock := line.Product.Stock; stock > 0 && quantity > stock {
		notices = append(notices, stockNotice(&domain.StockExceededError{ProductID: productID, Requested: quantity, Available: stock}))
		quantity = stock
	}
	m.versions[productID]++
	version := m.versions[productID]
	touched := m.touched[productID]
	m.mu.Unlock()

	err := m.remote.UpdateCartItem(ctx, m.userID, productID, quantity)

	m.mu.Lock()
	if m.versions[productID] != version {
		defer m.mu.Unlock()
		m.log.Debug("discarding superseded quantity update", zap.String("product_id", productID), zap.Uint64("version", version))
		res := m.resultLocked(nil)
		res.Superseded = true
		return res, nil
	}
	if err != nil {
		defer m.mu.Unlock()
		if domain.IsNetworkError(err) {
			m.enterDegradedLocked(err)
		}
		return nil, err
	}
	if m.touched[productID] != touched {
		m.mu.Unlock()
		m.log.Debug("line changed during quantity update, refetching cart", zap.String("product_id", productID))
		res, errRefresh := m.refresh(ctx)
		if errRefresh != nil {
			if domain.IsNetworkError(errRefresh) {
				m.enterDegraded(errRefresh)
			}
			return nil, errRefresh
		}
		res.Notices = append(res.Notices, notices...)
		return res, nil
	}
	defer m.mu.Unlock()

	if cur, ok := m.snapshot.Find(productID); ok {
		line = cur
	}
	line.Quantity = quantity
	m.snapshot.Upsert(line)
	m.buffers[productID] = strconv.Itoa(quantity)
	return m.resultLocked(notices), nil
}

func (m *CartManager) RemoveItem(ctx context.Context, productID string) (*CartResult, error) {
	if err := m.ensureOnline(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.snapshot.Find(productID); !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("remove %s: %w", productID, domain.ErrLineNotFound)
	}
	m.versions[productID]++
	m.mu.Unlock()

	err := m.remote.RemoveCartItem(ctx, m.userID, productID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if domain.IsNetworkError(err) {
			m.enterDegradedLocked(err)
		}
		return nil, err
	}
	m.dropLocked(productID)
	return m.resultLocked(nil), nil
}

func (m *CartManager) dropLocked(productID string) {
	m.snapshot.Remove(productID)
	delete(m.buffers, productID)
	delete(m.visible, productID)
	delete(m.pending, productID)
	m.versions[productID]++
}

// Clear empties the cart on the remote and locally.
func (m *CartManager) Clear(ctx context.Context) (*CartResult, error) {
	if err := m.ensureOnline(ctx); err != nil {
		return nil, err
	}
	if err := m.remote.ClearCart(ctx, m.userID); err != nil {
		if domain.IsNetworkError(err) {
			m.enterDegraded(err)
		}
		return nil, err
	}
	if err := m.local.Clear(ctx, m.userID); err != nil {
		m.log.Warn("local cart clear failed", zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return m.resultLocked(nil), nil
}

// resetAfterOrder empties the working copy once the remote has turned the cart
// into an order.
func (m *CartManager) resetAfterOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *CartManager) resetLocked() {
	for _, l := range m.snapshot.Lines {
		m.versions[l.ProductID]++
	}
	m.snapshot = domain.CartSnapshot{}
	m.buffers = make(map[string]string)
	m.visible = make(map[string]bool)
	m.pending = make(map[string]int)
}

// FetchCart reloads the cart from the remote. Lines whose product is not
// inlined are enriched by product lookups; a failed lookup yields a
// placeholder product. When the remote is unreachable the last known cart,
// or the local cart, is served in degraded mode.
func (m *CartManager) FetchCart(ctx context.Context) (*CartResult, error) {
	if m.Mode() == ModeDegraded {
		res, err := m.Reconcile(ctx)
		if err == nil {
			return res, nil
		}
		if !domain.IsNetworkError(err) {
			return nil, err
		}
		return m.serveDegraded(ctx), nil
	}

	res, err := m.refresh(ctx)
	if err != nil {
		if domain.IsNetworkError(err) {
			m.enterDegraded(err)
			return m.serveDegraded(ctx), nil
		}
		return nil, err
	}
	return res, nil
}

func (m *CartManager) refresh(ctx context.Context) (*CartResult, error) {
	items, err := m.remote.GetCart(ctx, m.userID)
	if err != nil {
		if !domain.IsNotFound(err) {
			return nil, err
		}
		items = nil
	}

	lines := m.resolveProducts(ctx, items)

	m.mu.Lock()
	defer m.mu.Unlock()
	var snapshot domain.CartSnapshot
	for _, l := range lines {
		if prev, ok := snapshot.Find(l.ProductID); ok {
			l.Quantity += prev.Quantity
		}
		snapshot.Upsert(l)
	}

	var notices []Notice
	m.snapshot = snapshot
	m.buffers = make(map[string]string, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		m.buffers[l.ProductID] = strconv.Itoa(l.Quantity)
		m.visible[l.ProductID] = true
		if stock := l.Product.Stock; stock > 0 && l.Quantity > stock {
			notices = append(notices, stockNotice(&domain.StockExceededError{ProductID: l.ProductID, Requested: l.Quantity, Available: stock}))
		}
	}
	return m.resultLocked(notices), nil
}

func (m *CartManager) resolveProducts(ctx context.Context, items []marketplace.CartItem) []domain.CartLine {
	lines := make([]domain.CartLine, len(items))

	var g errgroup.Group
	g.SetLimit(productLookupLimit)
	for i, it := range items {
		if it.Product != nil {
			lines[i] = domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, Product: *it.Product}
			continue
		}
		g.Go(func() error {
			lines[i] = domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, Product: m.lookupProduct(ctx, it.ProductID)}
			return nil
		})
	}
	_ = g.Wait()
	return lines
}

func (m *CartManager) lookupProduct(ctx context.Context, productID string) domain.Product {
	// Use singleflight so concurrent loads share one lookup per product
	v, err, _ := m.sfg.Do("product:"+productID, func() (interface{}, error) {
		return m.remote.GetProduct(ctx, productID)
	})
	if err != nil {
		m.log.Warn("product lookup failed, using placeholder", zap.String("product_id", productID), zap.Error(err))
		return domain.PlaceholderProduct(productID)
	}
	return v.(domain.Product)
}

func (m *CartManager) serveDegraded(ctx context.Context) *CartResult {
	lines, err := m.local.Load(ctx, m.userID)
	if err != nil {
		m.log.Warn("local cart load failed", zap.Error(err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.IsEmpty() {
		m.pending = make(map[string]int, len(lines))
		for _, l := range lines {
			m.snapshot.Upsert(l)
			m.pending[l.ProductID] = l.Quantity
			m.buffers[l.ProductID] = strconv.Itoa(l.Quantity)
			m.visible[l.ProductID] = true
		}
	}
	return m.resultLocked([]Notice{degradedNotice})
}

// Reconcile replays the local cart to the remote and returns to online mode.
// Lines the remote rejects are dropped with a notice; an unreachable remote
// keeps the cart degraded with the unreplayed lines stored locally.
func (m *CartManager) Reconcile(ctx context.Context) (*CartResult, error) {
	v, err, _ := m.sfg.Do("reconcile", func() (interface{}, error) {
		return m.reconcile(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CartResult), nil
}

func (m *CartManager) reconcile(ctx context.Context) (*CartResult, error) {
	lines, err := m.local.Load(ctx, m.userID)
	if err != nil {
		return nil, fmt.Errorf("load local cart: %w", err)
	}

	var notices []Notice
	replayed := 0
	for i, l := range lines {
		errAdd := m.remote.AddCartItem(ctx, m.userID, l.ProductID, l.Quantity)
		if errAdd == nil {
			replayed++
			continue
		}
		if domain.IsNetworkError(errAdd) {
			if errSave := m.local.Save(ctx, m.userID, lines[i:]); errSave != nil {
				m.log.Error("local cart save failed", zap.Error(errSave))
			}
			m.enterDegraded(errAdd)
			return nil, errAdd
		}
		m.log.Warn("remote rejected local cart line", zap.String("product_id", l.ProductID), zap.Error(errAdd))
		notices = append(notices, Notice{
			Level:   NoticeWarning,
			Code:    "line_dropped",
			Message: fmt.Sprintf("%s could not be added to your cart: %s", l.Product.Name, domain.UserMessage(errAdd, "rejected by server")),
		})
	}

	if err := m.local.Clear(ctx, m.userID); err != nil {
		m.log.Warn("local cart clear failed", zap.Error(err))
	}

	m.mu.Lock()
	m.pending = make(map[string]int)
	if m.mode != ModeOnline {
		m.log.Info("cart back online", zap.Int("replayed", replayed))
	}
	m.mode = ModeOnline
	m.mu.Unlock()

	res, err := m.refresh(ctx)
	if err != nil {
		if domain.IsNetworkError(err) {
			m.enterDegraded(err)
		}
		return nil, err
	}
	if replayed > 0 {
		notices = append(notices, Notice{Level: NoticeInfo, Code: "cart_synced", Message: fmt.Sprintf("%d saved item(s) synced to your cart", replayed)})
	}
	res.Notices = append(res.Notices, notices...)
	res.Replayed = replayed
	return res, nil
}

func (m *CartManager) ensureOnline(ctx context.Context) error {
	if m.Mode() != ModeDegraded {
		return nil
	}
	if _, err := m.Reconcile(ctx); err != nil {
		return err
	}
	return nil
}

func (m *CartManager) enterDegraded(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enterDegradedLocked(cause)
}

func (m *CartManager) enterDegradedLocked(cause error) {
	if m.mode == ModeDegraded {
		return
	}
	m.mode = ModeDegraded
	m.log.Warn("remote unreachable, cart switched to degraded-local mode", zap.Error(cause))
}

func (m *CartManager) resultLocked(notices []Notice) *CartResult {
	snapshot := m.snapshot.Clone()
	buffers := make(map[string]string, len(m.buffers))
	for k, v := range m.buffers {
		buffers[k] = v
	}
	var pending map[string]int
	if len(m.pending) > 0 {
		pending = make(map[string]int, len(m.pending))
		for k, v := range m.pending {
			pending[k] = v
		}
	}
	return &CartResult{
		Snapshot:    snapshot,
		Summary:     pricing.Summarize(snapshot.Lines),
		Mode:        m.mode,
		EditBuffers: buffers,
		PendingSync: pending,
		Notices:     notices,
	}
}

func (m *CartManager) Snapshot() domain.CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// Result returns the current state without contacting the remote.
func (m *CartManager) Result() *CartResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultLocked(nil)
}

func (m *CartManager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *CartManager) EditBuffer(productID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.buffers[productID]
	return v, ok
}

func (m *CartManager) QuantityBoxVisible(productID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible[productID]
}
