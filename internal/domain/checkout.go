package domain

import "strings"

type CheckoutStatus string

const (
	CheckoutStatusEditing         CheckoutStatus = "editing"
	CheckoutStatusValidating      CheckoutStatus = "validating"
	CheckoutStatusAwaitingPayment CheckoutStatus = "awaiting_payment"
	CheckoutStatusSubmitting      CheckoutStatus = "submitting"
	CheckoutStatusPlaced          CheckoutStatus = "placed"
	CheckoutStatusRedirectToCart  CheckoutStatus = "redirect_to_cart"
	CheckoutStatusAbandoned       CheckoutStatus = "abandoned"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusPlaced || s == CheckoutStatusRedirectToCart || s == CheckoutStatusAbandoned
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusEditing:         {CheckoutStatusValidating, CheckoutStatusAbandoned},
	CheckoutStatusValidating:      {CheckoutStatusEditing, CheckoutStatusValidating, CheckoutStatusSubmitting, CheckoutStatusAwaitingPayment, CheckoutStatusAbandoned},
	CheckoutStatusAwaitingPayment: {CheckoutStatusSubmitting, CheckoutStatusEditing, CheckoutStatusAbandoned},
	CheckoutStatusSubmitting:      {CheckoutStatusPlaced, CheckoutStatusValidating, CheckoutStatusAwaitingPayment},
}

func (s CheckoutStatus) CanTransitionTo(next CheckoutStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type CheckoutDraft struct {
	Lines           []CartLine    `json:"lines"`
	DeliveryAddress string        `json:"delivery_address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
}

// Validate checks the draft before any network call is made.
func (d CheckoutDraft) Validate() error {
	if strings.TrimSpace(d.DeliveryAddress) == "" {
		return &ValidationError{Field: "delivery_address", Message: "please enter delivery address"}
	}
	if len(d.Lines) == 0 {
		return &ValidationError{Field: "lines", Message: "your cart is empty", Err: ErrEmptyCart}
	}
	if !d.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Message: "payment method must be cod or card"}
	}
	return nil
}
