package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context(), nil).Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleServiceError converts errors of the service layer to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		se *domain.StockExceededError
		ne *domain.NetworkError
		rr *domain.RemoteRejection
	)

	switch {
	case errors.As(err, &ve):
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: ve.Message, Code: "validation_failed", Details: ve.Field})
	case errors.As(err, &se):
		respondError(w, r, http.StatusConflict, "stock_exceeded", se.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "session not found or expired")
	case errors.Is(err, domain.ErrLineNotFound):
		respondError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrSubmissionInFlight):
		respondError(w, r, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, r, http.StatusConflict, "illegal_transition", err.Error())
	case errors.As(err, &ne):
		respondJSON(w, r, http.StatusServiceUnavailable, ErrorResponse{Error: ne.UserMessage(), Code: "service_unavailable", Details: ne.Op})
	case errors.As(err, &rr):
		status := rr.StatusCode
		if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		respondJSON(w, r, status, ErrorResponse{Error: rr.UserMessage(), Code: "remote_rejected", Details: rr.Op})
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context(), nil).Error("unhandled service error", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
