package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgOrderFailed   = "Failed to place order"
	msgPaymentFailed = "Payment failed. Please try again."
)

type CheckoutDeps struct {
	Orders      OrderRemote
	Stats       StatsRefresher
	Idempotency IdempotencyStore
	Journal     CheckoutJournal
	Log         *zap.Logger
	// HealthCheck pings the remote before the cart is loaded.
	HealthCheck  bool
	PaymentDelay time.Duration
}

// Checkout drives one checkout attempt from entry to a terminal state. It
// owns a single idempotency key used for every submission it makes.
type Checkout struct {
	id             string
	idempotencyKey string
	session        *domain.Session
	cart           *CartManager
	deps           CheckoutDeps
	log            *zap.Logger

	mu      sync.Mutex
	status  domain.CheckoutStatus
	draft   domain.CheckoutDraft
	order   *domain.Order
	lastErr string
}

type CheckoutView struct {
	ID      string                `json:"id"`
	Status  domain.CheckoutStatus `json:"status"`
	Draft   domain.CheckoutDraft  `json:"draft"`
	Summary pricing.Summary       `json:"summary"`
	Total   string                `json:"total_display"`
	Handoff *PaymentHandoff       `json:"payment_handoff,omitempty"`
	Order   *domain.Order         `json:"order,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func NewCheckout(session *domain.Session, cart *CartManager, deps CheckoutDeps) *Checkout {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Checkout{
		id:             id,
		idempotencyKey: uuid.NewString(),
		session:        session,
		cart:           cart,
		deps:           deps,
		log:            log.With(zap.String("checkout_id", id), zap.String("user_id", session.UserID)),
	}
}

func (c *Checkout) ID() string {
	return c.id
}

func (c *Checkout) IdempotencyKey() string {
	return c.idempotencyKey
}

// Begin loads the cart and enters editing, or redirect_to_cart when the cart
// is empty.
func (c *Checkout) Begin(ctx context.Context) (*CheckoutView, error) {
	c.mu.Lock()
	if c.status != "" {
		defer c.mu.Unlock()
		return nil, fmt.Errorf("%w: checkout already started", domain.ErrIllegalTransition)
	}
	c.mu.Unlock()

	if c.deps.HealthCheck && c.deps.Orders != nil {
		if err := c.deps.Orders.Health(ctx); err != nil {
			c.log.Warn("marketplace health check failed", zap.Error(err))
			return nil, err
		}
	}

	res, err := c.cart.FetchCart(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if res.Snapshot.IsEmpty() {
		c.status = domain.CheckoutStatusRedirectToCart
		c.mu.Unlock()
		c.log.Info("checkout entered with empty cart, redirecting to cart")
		return c.View(), nil
	}
	c.status = domain.CheckoutStatusEditing
	c.draft = domain.CheckoutDraft{
		Lines:           res.Snapshot.Lines,
		DeliveryAddress: c.session.Address,
		PaymentMethod:   domain.PaymentMethodCOD,
	}
	total := pricing.ComputeTotal(c.draft.Lines)
	c.mu.Unlock()

	if c.deps.Journal != nil {
		errJournal := c.deps.Journal.CreateCheckoutSession(ctx, &repository.CheckoutSession{
			ID:             c.id,
			UserID:         c.session.UserID,
			IdempotencyKey: c.idempotencyKey,
			Status:         domain.CheckoutStatusEditing,
			PaymentMethod:  domain.PaymentMethodCOD,
			TotalAmount:    total,
		})
		if errJournal != nil {
			c.log.Error("failed to journal checkout session", zap.Error(errJournal))
		}
	}

	c.log.Info("checkout started", zap.Int("lines", len(res.Snapshot.Lines)))
	return c.View(), nil
}

// UpdateDraft edits the delivery address and/or payment method. Nil arguments
// are left unchanged. Editing is allowed until a submission starts.
func (c *Checkout) UpdateDraft(address *string, method *domain.PaymentMethod) (*CheckoutView, error) {
	c.mu.Lock()
	switch c.status {
	case domain.CheckoutStatusEditing, domain.CheckoutStatusValidating, domain.CheckoutStatusAwaitingPayment:
	default:
		status := c.status
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot edit checkout in status %s", domain.ErrIllegalTransition, status)
	}
	if method != nil && !method.Valid() {
		c.mu.Unlock()
		return nil, &domain.ValidationError{Field: "payment_method", Message: "payment method must be cod or card"}
	}

	if address != nil {
		c.draft.DeliveryAddress = *address
	}
	if method != nil {
		c.draft.PaymentMethod = *method
	}
	c.status = domain.CheckoutStatusEditing
	c.lastErr = ""
	c.mu.Unlock()

	return c.View(), nil
}

// Submit validates the draft. Cash on delivery is submitted straight away;
// card payment hands off to PayByCard.
func (c *Checkout) Submit(ctx context.Context) (*CheckoutView, error) {
	c.mu.Lock()
	if err := c.checkCanSubmitLocked(domain.CheckoutStatusEditing, domain.CheckoutStatusValidating); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.status = domain.CheckoutStatusValidating
	c.draft.Lines = c.cart.Snapshot().Lines
	c.draft.DeliveryAddress = strings.TrimSpace(c.draft.DeliveryAddress)
	if err := c.draft.Validate(); err != nil {
		c.lastErr = domain.UserMessage(err, msgOrderFailed)
		c.mu.Unlock()
		return nil, err
	}

	if c.draft.PaymentMethod == domain.PaymentMethodCard {
		c.status = domain.CheckoutStatusAwaitingPayment
		c.lastErr = ""
		c.mu.Unlock()
		c.journalStatus(ctx, domain.CheckoutStatusAwaitingPayment, "")
		return c.View(), nil
	}

	sub := domain.NewOrderSubmission(c.draft.Lines, c.draft.DeliveryAddress, domain.PaymentMethodCOD)
	c.status = domain.CheckoutStatusSubmitting
	c.mu.Unlock()

	return c.place(ctx, sub, domain.CheckoutStatusValidating, msgOrderFailed)
}

// PayByCard completes a card checkout. The card is validated locally and
// only its last four digits are submitted.
func (c *Checkout) PayByCard(ctx context.Context, card CardDetails) (*CheckoutView, error) {
	c.mu.Lock()
	if err := c.checkCanSubmitLocked(domain.CheckoutStatusAwaitingPayment); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := card.Validate(); err != nil {
		c.lastErr = domain.UserMessage(err, msgPaymentFailed)
		c.mu.Unlock()
		return nil, err
	}
	sub := domain.NewOrderSubmission(c.draft.Lines, c.draft.DeliveryAddress, domain.PaymentMethodCard)
	sub.CardLast4 = card.Last4()
	c.status = domain.CheckoutStatusSubmitting
	c.mu.Unlock()

	if c.deps.PaymentDelay > 0 {
		select {
		case <-time.After(c.deps.PaymentDelay):
		case <-ctx.Done():
			c.fail(domain.CheckoutStatusAwaitingPayment, msgPaymentFailed)
			return nil, ctx.Err()
		}
	}

	return c.place(ctx, sub, domain.CheckoutStatusAwaitingPayment, msgPaymentFailed)
}

func (c *Checkout) checkCanSubmitLocked(allowed ...domain.CheckoutStatus) error {
	for _, s := range allowed {
		if c.status == s {
			return nil
		}
	}
	if c.status == domain.CheckoutStatusSubmitting {
		return domain.ErrSubmissionInFlight
	}
	return fmt.Errorf("%w: cannot submit checkout in status %s", domain.ErrIllegalTransition, c.status)
}

// place creates the order. On failure the checkout returns to fallback with
// the error surfaced; nothing is retried.
func (c *Checkout) place(ctx context.Context, sub domain.OrderSubmission, fallback domain.CheckoutStatus, failMsg string) (*CheckoutView, error) {
	scope := c.session.UserID

	if order, ok := c.recallPlaced(ctx); ok {
		c.log.Info("order already placed for this checkout", zap.String("order_id", order.ID))
		c.complete(ctx, order, false)
		return c.View(), nil
	}

	locked := false
	if c.deps.Idempotency != nil {
		ok, err := c.deps.Idempotency.TryLock(ctx, scope, c.idempotencyKey)
		switch {
		case err != nil:
			c.log.Warn("idempotency lock unavailable", zap.Error(err))
		case !ok:
			c.fail(fallback, domain.ErrSubmissionInFlight.Error())
			return nil, domain.ErrSubmissionInFlight
		default:
			locked = true
		}
	}

	sub.IdempotencyKey = c.idempotencyKey
	order, err := c.deps.Orders.CreateOrder(ctx, c.session.UserID, sub)
	if err != nil {
		if locked {
			if errRelease := c.deps.Idempotency.Release(context.WithoutCancel(ctx), scope, c.idempotencyKey); errRelease != nil {
				c.log.Warn("failed to release idempotency lock", zap.Error(errRelease))
			}
		}
		c.log.Warn("order submission failed", zap.String("payment_method", string(sub.PaymentMethod)), zap.Error(err))
		c.fail(fallback, domain.UserMessage(err, failMsg))
		c.journalStatus(ctx, fallback, "")
		return nil, err
	}

	if c.deps.Idempotency != nil {
		if errRemember := c.deps.Idempotency.Remember(ctx, scope, c.idempotencyKey, order.ID); errRemember != nil {
			c.log.Warn("failed to remember placed order", zap.Error(errRemember))
		}
	}

	c.complete(ctx, order, true)
	return c.View(), nil
}

// recallPlaced finds an order already placed under this checkout's key.
func (c *Checkout) recallPlaced(ctx context.Context) (domain.Order, bool) {
	var orderID string
	if c.deps.Idempotency != nil {
		id, found, err := c.deps.Idempotency.Recall(ctx, c.session.UserID, c.idempotencyKey)
		if err != nil {
			c.log.Warn("idempotency recall failed", zap.Error(err))
		}
		if found {
			orderID = id
		}
	}
	if orderID == "" && c.deps.Journal != nil {
		s, err := c.deps.Journal.GetCheckoutSessionByIdempotencyKey(ctx, c.idempotencyKey)
		if err != nil && !errors.Is(err, repository.ErrIdempotencyKeyNotFound) {
			c.log.Warn("checkout journal lookup failed", zap.Error(err))
		}
		if err == nil && s.Status == domain.CheckoutStatusPlaced && s.OrderID != nil {
			orderID = *s.OrderID
		}
	}
	if orderID == "" {
		return domain.Order{}, false
	}

	order, err := c.deps.Orders.GetOrder(ctx, orderID)
	if err != nil {
		c.log.Warn("failed to load previously placed order", zap.String("order_id", orderID), zap.Error(err))
		order = domain.Order{ID: orderID, UserID: c.session.UserID, OrderStatus: domain.OrderStatusPlaced}
	}
	return order, true
}

func (c *Checkout) complete(ctx context.Context, order domain.Order, fresh bool) {
	c.mu.Lock()
	c.status = domain.CheckoutStatusPlaced
	c.order = &order
	c.lastErr = ""
	lines := c.draft.Lines
	c.mu.Unlock()

	c.cart.resetAfterOrder()
	c.journalStatus(ctx, domain.CheckoutStatusPlaced, order.ID)
	c.log.Info("order placed", zap.String("order_id", order.ID), zap.String("total", order.TotalAmount.String()))

	if fresh {
		c.refreshSellerStats(ctx, lines, order)
	}
}

func (c *Checkout) fail(status domain.CheckoutStatus, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.lastErr = msg
}

// refreshSellerStats asks for a stats refresh of every distinct seller in the
// order. Failures are logged only.
func (c *Checkout) refreshSellerStats(ctx context.Context, lines []domain.CartLine, order domain.Order) {
	if c.deps.Stats == nil {
		return
	}
	ids := domain.CartSnapshot{Lines: lines}.SellerIDs()
	for _, it := range order.Items {
		ids = append(ids, it.SellerID)
	}

	seen := make(map[string]struct{})
	for _, id := range ids {
		if id == "" || id == "unknown" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if err := c.deps.Stats.Refresh(ctx, id, order.ID); err != nil {
			c.log.Warn("seller stats refresh failed", zap.String("seller_id", id), zap.Error(err))
		}
	}
}

// Abandon ends the checkout without placing an order.
func (c *Checkout) Abandon(ctx context.Context) error {
	c.mu.Lock()
	if !c.status.CanTransitionTo(domain.CheckoutStatusAbandoned) {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot abandon checkout in status %s", domain.ErrIllegalTransition, status)
	}
	c.status = domain.CheckoutStatusAbandoned
	c.mu.Unlock()

	c.journalStatus(ctx, domain.CheckoutStatusAbandoned, "")
	return nil
}

func (c *Checkout) Status() domain.CheckoutStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Checkout) View() *CheckoutView {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]domain.CartLine, len(c.draft.Lines))
	copy(lines, c.draft.Lines)
	summary := pricing.Summarize(lines)
	v := &CheckoutView{
		ID:     c.id,
		Status: c.status,
		Draft: domain.CheckoutDraft{
			Lines:           lines,
			DeliveryAddress: c.draft.DeliveryAddress,
			PaymentMethod:   c.draft.PaymentMethod,
		},
		Summary: summary,
		Total:   pricing.FormatINR(summary.Total),
		Order:   c.order,
		Error:   c.lastErr,
	}
	if c.status == domain.CheckoutStatusAwaitingPayment {
		v.Handoff = &PaymentHandoff{
			CheckoutID:      c.id,
			Items:           lines,
			DeliveryAddress: c.draft.DeliveryAddress,
			Total:           summary.Total,
			TotalDisplay:    pricing.FormatINR(summary.Total),
		}
	}
	return v
}

func (c *Checkout) journalStatus(ctx context.Context, status domain.CheckoutStatus, orderID string) {
	if c.deps.Journal == nil {
		return
	}
	if err := c.deps.Journal.UpdateCheckoutSessionStatus(ctx, c.id, status, orderID); err != nil {
		c.log.Error("failed to journal checkout status", zap.String("status", status.String()), zap.Error(err))
	}
}
