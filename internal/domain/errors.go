package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrLineNotFound       = errors.New("cart line not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
	ErrSubmissionInFlight = errors.New("order submission already in progress")
)

const (
	msgCannotConnect = "Cannot connect to server. Please check your connection."
	msgServerError   = "Server error. Please try again later."
	msgRequestFailed = "Request failed. Please try again."
)

// ValidationError is raised locally, before any network call.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StockExceededError reports a requested quantity above available stock.
type StockExceededError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("product %s is out of stock", e.ProductID)
	}
	return fmt.Sprintf("not enough stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// NetworkError means the remote service could not be reached.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) UserMessage() string {
	return msgCannotConnect
}

// RemoteRejection is a non-success response from the remote service.
type RemoteRejection struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("%s: remote rejected request with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// UserMessage prefers the remote detail and falls back to a generic text.
func (e *RemoteRejection) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode >= http.StatusInternalServerError {
		return msgServerError
	}
	return msgRequestFailed
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsNotFound(err error) bool {
	var rr *RemoteRejection
	return errors.As(err, &rr) && rr.StatusCode == http.StatusNotFound
}

// UserMessage returns the text to show for err, or fallback when err carries none.
func UserMessage(err error, fallback string) string {
	var (
		ve *ValidationError
		se *StockExceededError
		ne *NetworkError
		rr *RemoteRejection
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.As(err, &se):
		return se.Error()
	case errors.As(err, &ne):
		return ne.UserMessage()
	case errors.As(err, &rr):
		if rr.Message == "" && rr.StatusCode < http.StatusInternalServerError {
			return fallback
		}
		return rr.UserMessage()
	}
	return fallback
}
