// Package tracker maps an order status onto the linear fulfilment progression.
package tracker

import "github.com/fjod/go_cart/storefront/internal/domain"

var steps = []struct {
	status domain.OrderStatus
	label  string
}{
	{domain.OrderStatusPlaced, "Order Placed"},
	{domain.OrderStatusConfirmed, "Confirmed"},
	{domain.OrderStatusShipped, "Shipped"},
	{domain.OrderStatusDelivered, "Delivered"},
}

type Step struct {
	Key       domain.OrderStatus `json:"key"`
	Label     string             `json:"label"`
	Completed bool               `json:"completed"`
	Current   bool               `json:"current"`
}

// Progress is the rendering model of an order's status. Cancelled orders sit
// outside the progression: Index is -1 and no step is completed.
type Progress struct {
	Status    domain.OrderStatus `json:"status"`
	Index     int                `json:"index"`
	Steps     []Step             `json:"steps"`
	Cancelled bool               `json:"cancelled"`
	Terminal  bool               `json:"terminal"`
}

// StepIndex returns the position of status in the progression, or -1.
func StepIndex(status domain.OrderStatus) int {
	for i, s := range steps {
		if s.status == status {
			return i
		}
	}
	return -1
}

func Track(status domain.OrderStatus) Progress {
	idx := StepIndex(status)
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = Step{
			Key:       s.status,
			Label:     s.label,
			Completed: idx >= 0 && i <= idx,
			Current:   i == idx,
		}
	}
	return Progress{
		Status:    status,
		Index:     idx,
		Steps:     out,
		Cancelled: status == domain.OrderStatusCancelled,
		Terminal:  status.IsTerminal(),
	}
}
