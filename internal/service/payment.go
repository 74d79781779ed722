package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)

var cardMessages = map[string]string{
	"card_number": "Please enter a valid 16-digit card number",
	"card_name":   "Please enter cardholder name",
	"expiry":      "Please enter valid expiry date (MM/YY)",
	"cvv":         "Please enter valid CVV",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = v.RegisterValidation("expiry", func(fl validator.FieldLevel) bool {
		return expiryPattern.MatchString(fl.Field().String())
	})
	return v
}

// CardDetails is what the payment step collects. Only the last four digits
// ever leave this package.
type CardDetails struct {
	Number string `json:"card_number" validate:"required,len=16,number"`
	Name   string `json:"card_name" validate:"required"`
	Expiry string `json:"expiry" validate:"required,expiry"`
	CVV    string `json:"cvv" validate:"required,len=3,number"`
}

func (c CardDetails) normalized() CardDetails {
	return CardDetails{
		Number: strings.ReplaceAll(strings.TrimSpace(c.Number), " ", ""),
		Name:   strings.TrimSpace(c.Name),
		Expiry: strings.TrimSpace(c.Expiry),
		CVV:    strings.TrimSpace(c.CVV),
	}
}

func (c CardDetails) Validate() error {
	err := validate.Struct(c.normalized())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		return &domain.ValidationError{Field: field, Message: cardMessages[field]}
	}
	return &domain.ValidationError{Field: "card", Message: err.Error()}
}

func (c CardDetails) Last4() string {
	n := c.normalized().Number
	if len(n) < 4 {
		return n
	}
	return n[len(n)-4:]
}

// PaymentHandoff is the data the card payment step receives from checkout.
type PaymentHandoff struct {
	CheckoutID      string            `json:"checkout_id"`
	Items           []domain.CartLine `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	Total           decimal.Decimal   `json:"total"`
	TotalDisplay    string            `json:"total_display"`
}
