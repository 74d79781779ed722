// Package pricing derives totals from cart lines. Delivery is free, so the
// total equals the subtotal.
package pricing

import (
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type Summary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"item_count"`
}

// ComputeTotal returns the sum of price x quantity over lines.
func ComputeTotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func Summarize(lines []domain.CartLine) Summary {
	subtotal := ComputeTotal(lines)
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return Summary{
		Subtotal:    subtotal,
		DeliveryFee: decimal.Zero,
		Total:       subtotal,
		ItemCount:   count,
	}
}

// FormatINR renders amount with Indian digit grouping, e.g. ₹1,23,456.00.
func FormatINR(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	return sign + "₹" + groupIndian(intPart) + "." + frac
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(groups, ",") + "," + tail
}
