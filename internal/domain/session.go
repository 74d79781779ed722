package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRetailer   Role = "retailer"
	RoleWholesaler Role = "wholesaler"
)

// minUserIDLength mirrors the marketplace check on user ids.
const minUserIDLength = 5

// Session is one logged-in user's context. It is created at login and
// destroyed at logout.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Token     string    `json:"token,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) Validate() error {
	if len(strings.TrimSpace(s.UserID)) < minUserIDLength {
		return &ValidationError{Field: "user_id", Message: fmt.Sprintf("user id must be at least %d characters", minUserIDLength)}
	}
	switch s.Role {
	case RoleCustomer, RoleRetailer, RoleWholesaler:
	default:
		return &ValidationError{Field: "role", Message: "unknown role"}
	}
	return nil
}
